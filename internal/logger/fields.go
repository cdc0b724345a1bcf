package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldUserID identifies the user a run or progress update belongs to.
	FieldUserID = "user_id"
	// FieldRunID identifies a single orchestration run.
	FieldRunID = "run_id"
	// FieldItemID identifies a catalog item within a run.
	FieldItemID = "item_id"
	// FieldNamespace is the catalog namespace of an item.
	FieldNamespace = "namespace"
	// FieldSavedItemID identifies a saved item whose roadmap progress is tracked.
	FieldSavedItemID = "saved_item_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// ForRun scopes a logger to one orchestration run of one user.
func ForRun(logger *zap.Logger, runID, userID string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldRunID, Value: runID},
		StringField{Key: FieldUserID, Value: userID},
	)...)
}

// ForItem scopes a logger to one catalog item.
func ForItem(logger *zap.Logger, namespace, itemID string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldNamespace, Value: namespace},
		StringField{Key: FieldItemID, Value: itemID},
	)...)
}
