package validation

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every error returned from [Result.Err].
var ErrInvalid = errors.New("validation failed")

const tagPasswordStrength = "pwstrength"

var engine = newEngine()

func newEngine() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation(tagPasswordStrength, func(fl validator.FieldLevel) bool {
		var letter, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsLetter(r):
				letter = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return letter && digit
	})
	return v
}

// Field is the rule list for one input key. Methods return a new Field and
// never modify the receiver.
type Field struct {
	name     string
	tags     []string
	trim     bool
	messages map[string]string
}

// NewField starts an empty rule list for name.
func NewField(name string) Field {
	return Field{name: name}
}

func (f Field) with(tag, msg string) Field {
	out := f
	out.tags = append(f.tags[:len(f.tags):len(f.tags)], tag)
	out.messages = make(map[string]string, len(f.messages)+1)
	for k, v := range f.messages {
		out.messages[k] = v
	}
	out.messages[tagName(tag)] = msg
	return out
}

// Trimmed strips surrounding whitespace before the rules run.
func (f Field) Trimmed() Field {
	out := f
	out.trim = true
	return out
}

func (f Field) Required() Field {
	return f.with("required", "This field is required")
}

func (f Field) MinLength(n int) Field {
	return f.with("min="+strconv.Itoa(n), fmt.Sprintf("Must be at least %d characters long", n))
}

func (f Field) MaxLength(n int) Field {
	return f.with("max="+strconv.Itoa(n), fmt.Sprintf("Must not exceed %d characters", n))
}

func (f Field) Email() Field {
	return f.with("email", "Invalid email format")
}

// PasswordStrength requires at least one letter and one digit.
func (f Field) PasswordStrength() Field {
	return f.with(tagPasswordStrength, "Password must contain a letter and a digit")
}

func (f Field) tag() string {
	if len(f.tags) == 0 {
		return ""
	}
	// Optional fields skip the remaining rules when empty.
	if f.tags[0] != "required" {
		return "omitempty," + strings.Join(f.tags, ",")
	}
	return strings.Join(f.tags, ",")
}

func tagName(tag string) string {
	if i := strings.IndexByte(tag, '='); i >= 0 {
		return tag[:i]
	}
	return tag
}

// RuleSet validates a map of named string inputs.
type RuleSet struct {
	fields []Field
}

// NewRuleSet freezes fields into a RuleSet.
func NewRuleSet(fields ...Field) RuleSet {
	return RuleSet{fields: append([]Field(nil), fields...)}
}

// Validate runs every field rule against input. Each field reports at most
// its first failing rule.
func (rs RuleSet) Validate(input map[string]string) *Result {
	res := &Result{}
	for _, f := range rs.fields {
		tag := f.tag()
		if tag == "" {
			continue
		}
		value := input[f.name]
		if f.trim {
			value = strings.TrimSpace(value)
		}
		err := engine.Var(value, tag)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg, ok := f.messages[verrs[0].Tag()]
			if !ok {
				msg = "Invalid value"
			}
			res.Add(f.name, msg)
			continue
		}
		res.Add(f.name, err.Error())
	}
	return res
}

// Result collects field errors from one Validate call.
type Result struct {
	fields map[string][]string
}

// Add records msg against field.
func (r *Result) Add(field, msg string) {
	if r.fields == nil {
		r.fields = make(map[string][]string)
	}
	r.fields[field] = append(r.fields[field], msg)
}

func (r *Result) Valid() bool {
	return r == nil || len(r.fields) == 0
}

// FieldErrors returns a copy of the collected errors.
func (r *Result) FieldErrors() map[string][]string {
	out := make(map[string][]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// First returns "field: message" for the alphabetically first failing field.
func (r *Result) First() string {
	if r.Valid() {
		return ""
	}
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0] + ": " + r.fields[keys[0]][0]
}

// Err returns nil for a valid result, otherwise an *Error wrapping ErrInvalid.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &Error{Fields: r.FieldErrors(), first: r.First()}
}

// Error carries per-field messages.
type Error struct {
	Fields map[string][]string
	first  string
}

func (e *Error) Error() string {
	return "validation failed: " + e.first
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}
