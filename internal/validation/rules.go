package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"backend/internal/model"
)

// IsEmpty reports whether a submitted value should be treated as missing for
// required-field checks: nil, blank string, or an empty slice/map.
func IsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]interface{}:
		return len(v) == 0
	default:
		return false
	}
}

// ruleEvaluator checks a present value against the type-specific subset of a
// field's validation rules.
type ruleEvaluator interface {
	evaluate(cfg model.FieldConfiguration, value interface{}) []string
}

var evaluators = map[string]ruleEvaluator{
	model.FieldTypeText:    textEvaluator{},
	model.FieldTypeNumber:  numberEvaluator{},
	model.FieldTypeDate:    dateEvaluator{},
	model.FieldTypeBoolean: booleanEvaluator{},
	model.FieldTypeSelect:  selectEvaluator{},
}

// Evaluate runs the declared field type's rule set against a present value
// and returns every violation. Allowed-value membership applies to all types.
func Evaluate(cfg model.FieldConfiguration, value interface{}) []string {
	var errs []string

	ev, ok := evaluators[cfg.FieldType]
	if !ok {
		ev = textEvaluator{}
	}
	errs = append(errs, ev.evaluate(cfg, value)...)

	if cfg.Rules != nil && len(cfg.Rules.AllowedValues) > 0 {
		if !containsValue(cfg.Rules.AllowedValues, value) {
			errs = append(errs, fmt.Sprintf("%s must be one of: %s", fieldLabel(cfg), strings.Join(cfg.Rules.AllowedValues, ", ")))
		}
	}

	return errs
}

func fieldLabel(cfg model.FieldConfiguration) string {
	if cfg.FieldLabel != "" {
		return cfg.FieldLabel
	}
	return cfg.FieldName
}

func containsValue(allowed []string, value interface{}) bool {
	rendered := fmt.Sprintf("%v", value)
	for _, a := range allowed {
		if a == rendered {
			return true
		}
	}
	return false
}

type textEvaluator struct{}

func (textEvaluator) evaluate(cfg model.FieldConfiguration, value interface{}) []string {
	label := fieldLabel(cfg)

	s, ok := value.(string)
	if !ok {
		return []string{fmt.Sprintf("%s must be text", label)}
	}

	rules := cfg.Rules
	if rules == nil {
		return nil
	}

	var errs []string
	if rules.MinLength != nil && len(s) < *rules.MinLength {
		errs = append(errs, fmt.Sprintf("%s must be at least %d characters", label, *rules.MinLength))
	}
	if rules.MaxLength != nil && len(s) > *rules.MaxLength {
		errs = append(errs, fmt.Sprintf("%s must be at most %d characters", label, *rules.MaxLength))
	}
	if rules.Pattern != "" {
		re, err := regexp.Compile(rules.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s has an invalid validation pattern", label))
		} else if !re.MatchString(s) {
			errs = append(errs, fmt.Sprintf("%s does not match the required format", label))
		}
	}
	return errs
}

type numberEvaluator struct{}

func (numberEvaluator) evaluate(cfg model.FieldConfiguration, value interface{}) []string {
	label := fieldLabel(cfg)

	n, ok := toFloat(value)
	if !ok {
		return []string{fmt.Sprintf("%s must be a number", label)}
	}

	rules := cfg.Rules
	if rules == nil {
		return nil
	}

	var errs []string
	if rules.MinValue != nil && n < *rules.MinValue {
		errs = append(errs, fmt.Sprintf("%s must be at least %v", label, *rules.MinValue))
	}
	if rules.MaxValue != nil && n > *rules.MaxValue {
		errs = append(errs, fmt.Sprintf("%s must be at most %v", label, *rules.MaxValue))
	}
	return errs
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

type dateEvaluator struct{}

// Accepts time.Time values directly, or RFC3339 / YYYY-MM-DD strings.
func (dateEvaluator) evaluate(cfg model.FieldConfiguration, value interface{}) []string {
	label := fieldLabel(cfg)

	switch v := value.(type) {
	case time.Time:
		return nil
	case string:
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return nil
		}
		if _, err := time.Parse("2006-01-02", v); err == nil {
			return nil
		}
		return []string{fmt.Sprintf("%s must be a valid date", label)}
	default:
		return []string{fmt.Sprintf("%s must be a valid date", label)}
	}
}

type booleanEvaluator struct{}

func (booleanEvaluator) evaluate(cfg model.FieldConfiguration, value interface{}) []string {
	switch v := value.(type) {
	case bool:
		return nil
	case string:
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "true" || lower == "false" {
			return nil
		}
	}
	return []string{fmt.Sprintf("%s must be true or false", fieldLabel(cfg))}
}

type selectEvaluator struct{}

// Membership against the allowed-value set is handled generically in Evaluate;
// a SELECT field carries no other type-specific rules.
func (selectEvaluator) evaluate(cfg model.FieldConfiguration, value interface{}) []string {
	return nil
}
