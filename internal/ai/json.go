package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips markdown fences and surrounding prose from model output.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	if raw == "" || raw[0] == '{' || raw[0] == '[' {
		return raw
	}
	start := strings.IndexAny(raw, "{[")
	end := strings.LastIndexAny(raw, "}]")
	if start == -1 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

// DecodeJSON unmarshals model output into target, wrapping failures as ErrGenerationMalformed.
func DecodeJSON(raw string, target any) error {
	cleaned := ExtractJSON(raw)
	if cleaned == "" {
		return fmt.Errorf("%w: empty response", ErrGenerationMalformed)
	}
	if target == nil {
		if !json.Valid([]byte(cleaned)) {
			return fmt.Errorf("%w: invalid json", ErrGenerationMalformed)
		}
		return nil
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationMalformed, err)
	}
	return nil
}

// Render substitutes {{KEY}} placeholders in template.
func Render(template string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// CoerceStrings accepts a JSON array or a comma separated string.
func CoerceStrings(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case []string:
		for _, s := range val {
			add(s)
		}
	case string:
		for _, s := range strings.Split(val, ",") {
			add(s)
		}
	}
	return out
}
