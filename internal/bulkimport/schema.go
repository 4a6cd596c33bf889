package bulkimport

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FieldType is the expected type of a record field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInteger
	FieldNumber
	FieldDate
	FieldEnum
	FieldBool
)

// FieldSpec declares the constraints for one record field.
type FieldSpec struct {
	Name     string         // Record key
	Type     FieldType      // Expected type
	Required bool           // Value must be present and non-empty
	Default  any            // Used when the value is absent or empty
	MinLen   int            // Minimum length in characters (text)
	MaxLen   int            // Maximum length in characters (text), 0 for no limit
	Pattern  *regexp.Regexp // Text must match
	Min      *float64       // Lower bound (integer, number)
	Max      *float64       // Upper bound (integer, number)
	Enum     []string       // Allowed values (enum), matched case-insensitively
	Layouts  []string       // Accepted date layouts (date), DefaultDateLayouts when empty
	Message  string         // Replaces the pattern mismatch message
}

// Limit returns a pointer to v for FieldSpec.Min and FieldSpec.Max.
func Limit(v float64) *float64 { return &v }

// Schema validates untyped records and builds typed values from them.
type Schema[T any] struct {
	Fields []FieldSpec

	// Strict rejects records carrying keys that no field declares.
	Strict bool

	// Build converts coerced values into T. Values holds only the fields that
	// were present or defaulted: strings, int64, float64, time.Time or bool.
	Build func(Values) (T, error)
}

// Validation is the partition produced by Schema.Validate.
type Validation[T any] struct {
	Valid  []Entry[T]
	Errors []RecordError
}

// FieldError attributes a Build failure to a field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

// Validate checks every record against the schema. Records are never
// reordered. A malformed record only produces a RecordError; an error is
// returned only when the schema itself is unusable.
func (s *Schema[T]) Validate(raw []Record) (Validation[T], error) {
	if s == nil || s.Build == nil {
		return Validation[T]{}, ErrNilSchema
	}

	var out Validation[T]
	for i, rec := range raw {
		row := i + 1
		entry, rerr := s.validateOne(row, rec)
		if rerr != nil {
			out.Errors = append(out.Errors, *rerr)
			continue
		}
		out.Valid = append(out.Valid, entry)
	}
	return out, nil
}

type issue struct {
	field   string
	message string
}

func (s *Schema[T]) validateOne(row int, rec Record) (entry Entry[T], rerr *RecordError) {
	defer func() {
		if r := recover(); r != nil {
			rerr = &RecordError{Row: row, Data: rec, Message: fmt.Sprintf("invalid record: %v", r)}
		}
	}()

	values := make(Values, len(s.Fields))
	var issues []issue

	for _, f := range s.Fields {
		v, present := rec[f.Name]
		if !present || isBlank(v) {
			switch {
			case f.Default != nil:
				values[f.Name] = f.Default
			case f.Required:
				issues = append(issues, issue{f.Name, "required"})
			}
			continue
		}

		coerced, err := f.check(v)
		if err != nil {
			issues = append(issues, issue{f.Name, err.Error()})
			continue
		}
		values[f.Name] = coerced
	}

	if s.Strict {
		issues = append(issues, s.unknownKeys(rec)...)
	}

	if len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, is := range issues {
			msgs[i] = is.field + ": " + is.message
		}
		return Entry[T]{}, &RecordError{
			Row:     row,
			Data:    rec,
			Message: strings.Join(msgs, ", "),
			Field:   issues[0].field,
		}
	}

	value, err := s.Build(values)
	if err != nil {
		re := &RecordError{Row: row, Data: rec, Message: err.Error()}
		var fe *FieldError
		if errors.As(err, &fe) {
			re.Field = fe.Field
		}
		return Entry[T]{}, re
	}

	return Entry[T]{Row: row, Raw: rec, Values: values, Value: value}, nil
}

func (s *Schema[T]) unknownKeys(rec Record) []issue {
	known := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = true
	}
	var extra []string
	for k := range rec {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	issues := make([]issue, len(extra))
	for i, k := range extra {
		issues[i] = issue{k, "unrecognized field"}
	}
	return issues
}

// check coerces a non-blank value and applies the field's constraints.
func (f FieldSpec) check(v any) (any, error) {
	switch f.Type {
	case FieldText:
		s, err := coerceText(v)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(s)
		if f.MinLen > 0 && n < f.MinLen {
			return nil, fmt.Errorf("must be at least %d characters", f.MinLen)
		}
		if f.MaxLen > 0 && n > f.MaxLen {
			return nil, fmt.Errorf("must be at most %d characters", f.MaxLen)
		}
		if f.Pattern != nil && !f.Pattern.MatchString(s) {
			if f.Message != "" {
				return nil, fmt.Errorf("%s", f.Message)
			}
			return nil, fmt.Errorf("invalid format")
		}
		return s, nil

	case FieldInteger:
		n, err := coerceInteger(v)
		if err != nil {
			return nil, err
		}
		if err := f.checkRange(float64(n)); err != nil {
			return nil, err
		}
		return n, nil

	case FieldNumber:
		n, err := coerceNumber(v)
		if err != nil {
			return nil, err
		}
		if err := f.checkRange(n); err != nil {
			return nil, err
		}
		return n, nil

	case FieldDate:
		return coerceDate(v, f.Layouts)

	case FieldEnum:
		s, err := coerceText(v)
		if err != nil {
			return nil, err
		}
		s = CleanCell(s)
		for _, allowed := range f.Enum {
			if strings.EqualFold(allowed, s) {
				return allowed, nil
			}
		}
		return nil, fmt.Errorf("must be one of: %s", strings.Join(f.Enum, ", "))

	case FieldBool:
		return coerceBool(v)
	}
	return nil, fmt.Errorf("unsupported field type %d", f.Type)
}

func (f FieldSpec) checkRange(n float64) error {
	if f.Min != nil && n < *f.Min {
		return fmt.Errorf("must be at least %s", formatBound(*f.Min))
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Errorf("must be at most %s", formatBound(*f.Max))
	}
	return nil
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Values holds the coerced fields of one record.
type Values map[string]any

// String returns the text value of key, or "" when absent.
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Int returns the integer value of key, or 0 when absent.
func (v Values) Int(key string) int64 {
	switch n := v[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

// Float returns the numeric value of key, or 0 when absent.
func (v Values) Float(key string) float64 {
	switch n := v[key].(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// Time returns the date value of key and whether it was present.
func (v Values) Time(key string) (time.Time, bool) {
	t, ok := v[key].(time.Time)
	return t, ok
}

// Bool returns the boolean value of key, or false when absent.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// Has reports whether key was present or defaulted.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}
