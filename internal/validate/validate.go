// Package validate decodes and checks item request bodies.
//
// Bodies are decoded key by key so that a wrong JSON type, an explicit null
// and a missing key can each be reported against the field that caused it.
// Range and length constraints are expressed as validator tags.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/integration-api/internal/model"
)

// Violation describes why a single field was rejected.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Errors is a non-empty list of violations.
type Errors []Violation

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, v := range e {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

// check runs the struct validator and converts its errors into violations.
func check(s any) Errors {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{{Field: "body", Reason: err.Error()}}
	}
	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, Violation{Field: fe.Field(), Reason: reason(fe)})
	}
	return out
}

func reason(fe validator.FieldError) string {
	text := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		if text {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if text {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	default:
		return "failed " + fe.Tag() + " constraint"
	}
}

// fields splits a JSON object body into its top-level keys.
func fields(body []byte) (map[string]json.RawMessage, Errors) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, Errors{{Field: "body", Reason: "request body required"}}
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, Errors{{Field: "body", Reason: "must be a JSON object"}}
	}
	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// decodeInteger accepts integral JSON numbers, including forms like 5.0.
func decodeInteger(raw json.RawMessage) (int64, bool) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

// decodeField fills f from raw using dec, reporting type errors under name.
func decodeField[T any](f *model.Field[T], name string, raw json.RawMessage, ok bool, dec func(json.RawMessage) (T, bool), want string, errs *Errors) {
	if !ok {
		return
	}
	if isNull(raw) {
		*f = model.Null[T]()
		return
	}
	val, good := dec(raw)
	if !good {
		*errs = append(*errs, Violation{Field: name, Reason: "must be " + want})
		return
	}
	*f = model.Some(val)
}
