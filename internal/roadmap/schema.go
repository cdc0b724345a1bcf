package roadmap

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var draftSchema string

var schemaLoader = gojsonschema.NewStringLoader(draftSchema)

// CheckSchema validates raw generator output against the draft schema.
// Structural mismatches are reported as a *ValidationError.
func CheckSchema(raw string) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		problems = append(problems, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return &ValidationError{Problems: problems}
}
