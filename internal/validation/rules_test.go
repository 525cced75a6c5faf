package validation

import (
	"testing"
	"time"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func textConfig(rules *model.ValidationRules) model.FieldConfiguration {
	return model.FieldConfiguration{
		FieldName:  "invoice_number",
		FieldLabel: "Invoice Number",
		FieldType:  model.FieldTypeText,
		Rules:      rules,
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  bool
	}{
		{"nil", nil, true},
		{"blank string", "   ", true},
		{"empty slice", []interface{}{}, true},
		{"empty string slice", []string{}, true},
		{"empty map", map[string]interface{}{}, true},
		{"zero number", 0, false},
		{"false", false, false},
		{"non-blank string", "x", false},
		{"populated slice", []interface{}{"a"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmpty(tt.value))
		})
	}
}

func TestTextRules(t *testing.T) {
	three, ten := 3, 10

	t.Run("length bounds", func(t *testing.T) {
		cfg := textConfig(&model.ValidationRules{MinLength: &three, MaxLength: &ten})

		assert.Empty(t, Evaluate(cfg, "INV-01"))
		assert.Equal(t, []string{"Invoice Number must be at least 3 characters"}, Evaluate(cfg, "ab"))
		assert.Equal(t, []string{"Invoice Number must be at most 10 characters"}, Evaluate(cfg, "abcdefghijk"))
	})

	t.Run("pattern", func(t *testing.T) {
		cfg := textConfig(&model.ValidationRules{Pattern: `^INV-\d{4}$`})

		assert.Empty(t, Evaluate(cfg, "INV-2041"))
		assert.Equal(t, []string{"Invoice Number does not match the required format"}, Evaluate(cfg, "2041"))
	})

	t.Run("invalid pattern reported, not panicked", func(t *testing.T) {
		cfg := textConfig(&model.ValidationRules{Pattern: `([`})
		assert.Equal(t, []string{"Invoice Number has an invalid validation pattern"}, Evaluate(cfg, "INV-2041"))
	})

	t.Run("non-string value", func(t *testing.T) {
		cfg := textConfig(nil)
		assert.Equal(t, []string{"Invoice Number must be text"}, Evaluate(cfg, 42))
	})

	t.Run("violations accumulate", func(t *testing.T) {
		cfg := textConfig(&model.ValidationRules{MinLength: &ten, Pattern: `^INV-\d{4}$`})
		errs := Evaluate(cfg, "x")
		assert.Len(t, errs, 2)
	})
}

func TestNumberRules(t *testing.T) {
	min, max := 1.0, 50000.0
	cfg := model.FieldConfiguration{
		FieldName:  "gross_weight",
		FieldLabel: "Gross Weight",
		FieldType:  model.FieldTypeNumber,
		Rules:      &model.ValidationRules{MinValue: &min, MaxValue: &max},
	}

	assert.Empty(t, Evaluate(cfg, 1500.5))
	assert.Empty(t, Evaluate(cfg, 1500))
	assert.Empty(t, Evaluate(cfg, "1500.5"))
	assert.Equal(t, []string{"Gross Weight must be at least 1"}, Evaluate(cfg, 0.2))
	assert.Equal(t, []string{"Gross Weight must be at most 50000"}, Evaluate(cfg, 60000))
	assert.Equal(t, []string{"Gross Weight must be a number"}, Evaluate(cfg, "heavy"))
}

func TestDateRules(t *testing.T) {
	cfg := model.FieldConfiguration{
		FieldName:  "dispatch_date",
		FieldLabel: "Dispatch Date",
		FieldType:  model.FieldTypeDate,
	}

	assert.Empty(t, Evaluate(cfg, time.Now()))
	assert.Empty(t, Evaluate(cfg, "2026-03-15"))
	assert.Empty(t, Evaluate(cfg, "2026-03-15T10:00:00Z"))
	assert.Equal(t, []string{"Dispatch Date must be a valid date"}, Evaluate(cfg, "15/03/2026"))
	assert.Equal(t, []string{"Dispatch Date must be a valid date"}, Evaluate(cfg, 20260315))
}

func TestBooleanRules(t *testing.T) {
	cfg := model.FieldConfiguration{
		FieldName:  "seal_intact",
		FieldLabel: "Seal Intact",
		FieldType:  model.FieldTypeBoolean,
	}

	assert.Empty(t, Evaluate(cfg, true))
	assert.Empty(t, Evaluate(cfg, "false"))
	assert.Empty(t, Evaluate(cfg, "TRUE"))
	assert.Equal(t, []string{"Seal Intact must be true or false"}, Evaluate(cfg, "yes"))
	assert.Equal(t, []string{"Seal Intact must be true or false"}, Evaluate(cfg, 1))
}

func TestAllowedValues(t *testing.T) {
	cfg := model.FieldConfiguration{
		FieldName:  "inspection_result",
		FieldLabel: "Inspection Result",
		FieldType:  model.FieldTypeSelect,
		Rules:      &model.ValidationRules{AllowedValues: []string{"PASS", "FAIL", "PARTIAL"}},
	}

	assert.Empty(t, Evaluate(cfg, "PASS"))
	assert.Equal(t,
		[]string{"Inspection Result must be one of: PASS, FAIL, PARTIAL"},
		Evaluate(cfg, "MAYBE"))
}

func TestFieldNameFallsBackWhenLabelMissing(t *testing.T) {
	cfg := model.FieldConfiguration{
		FieldName: "batch_code",
		FieldType: model.FieldTypeText,
	}

	assert.Equal(t, []string{"batch_code must be text"}, Evaluate(cfg, 7))
}
