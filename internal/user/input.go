package user

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Field identifies one updatable user attribute. Lookups and single-field
// updates go through this enum instead of untyped key/value maps.
type Field string

const (
	FieldName       Field = "name"
	FieldEmail      Field = "email"
	FieldNationalID Field = "national_id"
	FieldPassword   Field = "password"
)

// FieldValue pairs a field with the value to look up or assign.
type FieldValue struct {
	Field Field
	Value string
}

// Input is the untrusted write-path payload. Every field is optional; the
// validate tags carry the full schema so the constraints live in one place.
type Input struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=3,max=100"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email,max=100"`
	NationalID *string `json:"national_id,omitempty" validate:"omitempty,len=11"`
	Password   *string `json:"password,omitempty" validate:"omitempty,min=6,max=16"`
}

var (
	validate  = newValidator()
	sanitizer = bluemonday.StrictPolicy()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report violations under the json field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every present field against its schema constraint and
// returns a *ValidationError listing each violation. Absent fields pass;
// the zero Input is valid.
func (in Input) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}
	ve := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return ve
}

// Sanitize strips embedded markup from every present field and returns a new
// Input with the same fields set. Values that carry no markup pass through
// unchanged apart from entity escaping.
func (in Input) Sanitize() Input {
	var out Input
	out.Name = sanitized(in.Name)
	out.Email = sanitized(in.Email)
	out.NationalID = sanitized(in.NationalID)
	out.Password = sanitized(in.Password)
	return out
}

func sanitized(v *string) *string {
	if v == nil {
		return nil
	}
	s := sanitizer.Sanitize(*v)
	return &s
}

// Fields returns the present fields in declaration order, ready for
// single-field application.
func (in Input) Fields() []FieldValue {
	out := make([]FieldValue, 0, 4)
	if in.Name != nil {
		out = append(out, FieldValue{FieldName, *in.Name})
	}
	if in.Email != nil {
		out = append(out, FieldValue{FieldEmail, *in.Email})
	}
	if in.NationalID != nil {
		out = append(out, FieldValue{FieldNationalID, *in.NationalID})
	}
	if in.Password != nil {
		out = append(out, FieldValue{FieldPassword, *in.Password})
	}
	return out
}

// FieldError describes a single schema violation.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError reports every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("input validation failed")
	for i, fe := range e.Fields {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field)
		b.WriteString(" violates ")
		b.WriteString(fe.Rule)
		if fe.Param != "" {
			b.WriteString("=")
			b.WriteString(fe.Param)
		}
	}
	return b.String()
}
