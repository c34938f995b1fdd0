package form

import (
	"reflect"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		fields  []Field
		valid   bool
		errors  []string
		invalid []string
	}{
		{
			name:   "all good",
			fields: []Field{{Name: "host", Value: "edge-01", Required: true}, {Name: "mail", Type: "email", Value: "ops@example.com", Required: true}},
			valid:  true,
		},
		{
			name:    "blank required",
			fields:  []Field{{Name: "host", Value: "   ", Required: true}},
			errors:  []string{"host is required"},
			invalid: []string{"host"},
		},
		{
			name:    "bad email",
			fields:  []Field{{Name: "mail", Type: "email", Value: "ops@example", Required: true}},
			errors:  []string{"Invalid email"},
			invalid: []string{"mail"},
		},
		{
			name: "number bounds",
			fields: []Field{
				{Name: "low", Type: "number", Value: "1", Min: ptr(5), Required: true},
				{Name: "high", Type: "number", Value: "12.5", Max: ptr(10), Required: true},
				{Name: "ok", Type: "number", Value: "7", Min: ptr(5), Max: ptr(10), Required: true},
			},
			errors:  []string{"low must be greater than 5", "high must be less than 10"},
			invalid: []string{"low", "high"},
		},
		{
			name:   "unparseable number skips bounds",
			fields: []Field{{Name: "n", Type: "number", Value: "abc", Min: ptr(1), Required: true}},
			valid:  true,
		},
		{
			name: "optional fields are not checked",
			fields: []Field{
				{Name: "mail", Type: "email", Value: "not-an-email"},
				{Name: "n", Type: "number", Value: "0", Min: ptr(1)},
				{Name: "note"},
			},
			valid: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Validate(tt.fields)
			if got.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (%v)", got.Valid, tt.valid, got.Errors)
			}
			if !reflect.DeepEqual(got.Errors, tt.errors) {
				t.Fatalf("Errors = %v, want %v", got.Errors, tt.errors)
			}
			if !reflect.DeepEqual(got.Invalid, tt.invalid) {
				t.Fatalf("Invalid = %v, want %v", got.Invalid, tt.invalid)
			}
		})
	}
}
