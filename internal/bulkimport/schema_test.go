package bulkimport

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

type member struct {
	ID     string
	Name   string
	Age    int64
	Joined time.Time
	Status string
}

func memberSchema() *Schema[member] {
	return &Schema[member]{
		Fields: []FieldSpec{
			{Name: "id", Type: FieldText, Required: true, Pattern: regexp.MustCompile(`^[0-9]+$`), Message: "must be numeric"},
			{Name: "name", Type: FieldText, Required: true, MinLen: 2, MaxLen: 20},
			{Name: "age", Type: FieldInteger, Min: Limit(0), Max: Limit(130)},
			{Name: "joined", Type: FieldDate, Layouts: []string{"2006-01-02"}},
			{Name: "status", Type: FieldEnum, Enum: []string{"active", "inactive"}, Default: "active"},
		},
		Strict: true,
		Build: func(v Values) (member, error) {
			m := member{
				ID:     v.String("id"),
				Name:   v.String("name"),
				Age:    v.Int("age"),
				Status: v.String("status"),
			}
			if t, ok := v.Time("joined"); ok {
				m.Joined = t
			}
			return m, nil
		},
	}
}

func TestSchemaValidate_Partition(t *testing.T) {
	raw := []Record{
		{"id": "1", "name": "Ayşe", "age": "34"},
		{"id": "x", "name": "A", "age": "-1"},
		{"id": "3", "name": "  Mehmet  ", "joined": "2024-03-01", "status": "INACTIVE"},
		{"name": "Nobody"},
		{"id": "5", "name": "Zeynep", "nickname": "zz"},
	}

	v, err := memberSchema().Validate(raw)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if len(v.Valid) != 2 {
		t.Fatalf("len(Valid) = %d, want 2", len(v.Valid))
	}
	if got := v.Valid[0].Value; got.Name != "Ayşe" || got.Age != 34 || got.Status != "active" {
		t.Errorf("Valid[0] = %+v", got)
	}
	if got := v.Valid[1]; got.Row != 3 || got.Value.Name != "Mehmet" || got.Value.Status != "inactive" {
		t.Errorf("Valid[1] = row %d %+v", got.Row, got.Value)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !v.Valid[1].Value.Joined.Equal(want) {
		t.Errorf("Joined = %v, want %v", v.Valid[1].Value.Joined, want)
	}

	wantErrs := []struct {
		row     int
		field   string
		message string
	}{
		{2, "id", "id: must be numeric, name: must be at least 2 characters, age: must be at least 0"},
		{4, "id", "id: required"},
		{5, "nickname", "nickname: unrecognized field"},
	}
	if len(v.Errors) != len(wantErrs) {
		t.Fatalf("len(Errors) = %d, want %d: %+v", len(v.Errors), len(wantErrs), v.Errors)
	}
	for i, want := range wantErrs {
		got := v.Errors[i]
		if got.Row != want.row || got.Field != want.field || got.Message != want.message {
			t.Errorf("Errors[%d] = {%d %q %q}, want {%d %q %q}",
				i, got.Row, got.Field, got.Message, want.row, want.field, want.message)
		}
		if got.Data == nil {
			t.Errorf("Errors[%d].Data is nil", i)
		}
	}
}

func TestSchemaValidate_Idempotent(t *testing.T) {
	raw := []Record{
		{"id": "1", "name": "Ali"},
		{"id": "", "name": "B"},
		{"id": "3", "name": "Can", "age": 41.0},
		{"id": "4", "name": "Deniz", "age": "4.5"},
	}
	s := memberSchema()

	first, err := s.Validate(raw)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Validate(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Validate is not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}

	prev := 0
	for _, e := range first.Errors {
		if e.Row <= prev {
			t.Errorf("error rows not strictly increasing: %d after %d", e.Row, prev)
		}
		prev = e.Row
	}
}

func TestSchemaValidate_SystemicErrors(t *testing.T) {
	var nilSchema *Schema[member]
	if _, err := nilSchema.Validate([]Record{{}}); !errors.Is(err, ErrNilSchema) {
		t.Errorf("nil schema error = %v, want ErrNilSchema", err)
	}
	noBuild := &Schema[member]{Fields: memberSchema().Fields}
	if _, err := noBuild.Validate([]Record{{}}); !errors.Is(err, ErrNilSchema) {
		t.Errorf("missing Build error = %v, want ErrNilSchema", err)
	}
}

func TestSchemaValidate_BuildFailures(t *testing.T) {
	s := memberSchema()
	s.Build = func(v Values) (member, error) {
		switch v.String("id") {
		case "1":
			panic("boom")
		case "2":
			return member{}, &FieldError{Field: "name", Message: "reserved"}
		case "3":
			return member{}, fmt.Errorf("build member: %w", &FieldError{Field: "status", Message: "locked"})
		}
		return member{ID: v.String("id")}, nil
	}

	v, err := s.Validate([]Record{
		{"id": "1", "name": "Ali"},
		{"id": "2", "name": "Admin"},
		{"id": "3", "name": "Ece"},
		{"id": "4", "name": "Can"},
	})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(v.Valid) != 1 || v.Valid[0].Row != 4 {
		t.Fatalf("Valid = %+v, want only row 4", v.Valid)
	}
	if len(v.Errors) != 3 {
		t.Fatalf("len(Errors) = %d, want 3", len(v.Errors))
	}
	if !strings.Contains(v.Errors[0].Message, "boom") {
		t.Errorf("panic message = %q", v.Errors[0].Message)
	}
	if v.Errors[1].Field != "name" {
		t.Errorf("FieldError field = %q, want name", v.Errors[1].Field)
	}
	if v.Errors[2].Field != "status" {
		t.Errorf("wrapped FieldError field = %q, want status", v.Errors[2].Field)
	}
}

func TestFieldSpecCheck(t *testing.T) {
	tests := []struct {
		name    string
		spec    FieldSpec
		in      any
		want    any
		wantErr bool
	}{
		{"text from float", FieldSpec{Type: FieldText}, 12345678901.0, "12345678901", false},
		{"text from json number", FieldSpec{Type: FieldText}, json.Number("42"), "42", false},
		{"text too long", FieldSpec{Type: FieldText, MaxLen: 3}, "abcd", nil, true},
		{"text counts runes", FieldSpec{Type: FieldText, MaxLen: 3}, "çşğ", "çşğ", false},
		{"integer from string", FieldSpec{Type: FieldInteger}, " 7 ", int64(7), false},
		{"integer rejects fraction", FieldSpec{Type: FieldInteger}, "7.5", nil, true},
		{"integer above max", FieldSpec{Type: FieldInteger, Max: Limit(20)}, 21, nil, true},
		{"integer exponent overflow", FieldSpec{Type: FieldInteger}, "1e30", nil, true},
		{"integer just past int64", FieldSpec{Type: FieldInteger}, 1e19, nil, true},
		{"integer long digits", FieldSpec{Type: FieldInteger}, "99999999999999999999", nil, true},
		{"integer negative overflow", FieldSpec{Type: FieldInteger}, "-1e30", nil, true},
		{"number with currency", FieldSpec{Type: FieldNumber}, "₺1,250.50", 1250.5, false},
		{"number accounting negative", FieldSpec{Type: FieldNumber}, "(10)", -10.0, false},
		{"number below min", FieldSpec{Type: FieldNumber, Min: Limit(0)}, "-1", nil, true},
		{"number garbage", FieldSpec{Type: FieldNumber}, "abc", nil, true},
		{"enum case folded", FieldSpec{Type: FieldEnum, Enum: []string{"active"}}, "Active", "active", false},
		{"enum unknown", FieldSpec{Type: FieldEnum, Enum: []string{"active"}}, "gone", nil, true},
		{"bool turkish", FieldSpec{Type: FieldBool}, "evet", true, false},
		{"bool invalid", FieldSpec{Type: FieldBool}, "maybe", nil, true},
		{"date excel prefix", FieldSpec{Type: FieldDate}, `="2024-01-31"`, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), false},
		{"date wrong layout", FieldSpec{Type: FieldDate, Layouts: []string{"2006-01-02"}}, "31.01.2024", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.check(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("check(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("check(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFieldSpecCheck_IntegerOutOfRange(t *testing.T) {
	spec := FieldSpec{Type: FieldInteger, Min: Limit(1), Max: Limit(20)}
	_, err := spec.check("1e30")
	if err == nil || err.Error() != "number is out of range" {
		t.Errorf("check(1e30) error = %v, want number is out of range", err)
	}
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  plain  ", "plain"},
		{`="00123"`, "00123"},
		{"=SUM", "SUM"},
		{`"quoted"`, "quoted"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanCell(tt.in); got != tt.want {
			t.Errorf("CleanCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
