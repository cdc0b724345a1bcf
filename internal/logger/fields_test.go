package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  Gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
	enriched.Info("does not panic")
}

func TestForRunAndItem(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	scoped := ForItem(ForRun(log, "run-1", "user-1"), "job", "job-42")
	scoped.Info("enriched")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	want := map[string]string{
		FieldRunID:     "run-1",
		FieldUserID:    "user-1",
		FieldNamespace: "job",
		FieldItemID:    "job-42",
	}
	for key, value := range want {
		if ctx[key] != value {
			t.Fatalf("expected %s=%q, got %v", key, value, ctx[key])
		}
	}
}

func TestForRunSkipsEmptyValues(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	ForRun(zap.New(core), "", "user-1").Info("x")

	ctx := observed.All()[0].ContextMap()
	if _, ok := ctx[FieldRunID]; ok {
		t.Fatalf("empty run id should be omitted")
	}
}

func TestWithCommonFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithCommonFields(zap.New(core), "gemini", "model-x").Info("test log")

	ctx := observed.All()[0].ContextMap()
	if ctx[FieldProvider] != "gemini" || ctx[FieldModel] != "model-x" {
		t.Fatalf("unexpected fields: %v", ctx)
	}
}
