// Package form validates submitted dashboard forms.
package form

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Field struct {
	Name     string   `json:"name"`
	Type     string   `json:"type,omitempty"` // "text" (default), "email", "number"
	Value    string   `json:"value"`
	Required bool     `json:"required,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

type Result struct {
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// Validate checks the fields marked required: blank values fail, and non-empty
// email and number values must pass their format rules. Optional fields are
// not checked.
func Validate(fields []Field) Result {
	res := Result{Valid: true}
	for _, f := range fields {
		errs := check(f)
		if len(errs) == 0 {
			continue
		}
		res.Valid = false
		res.Errors = append(res.Errors, errs...)
		res.Invalid = append(res.Invalid, f.Name)
	}
	return res
}

func check(f Field) []string {
	if !f.Required {
		return nil
	}
	var errs []string
	if strings.TrimSpace(f.Value) == "" {
		errs = append(errs, fmt.Sprintf("%s is required", f.Name))
	}
	if f.Value == "" {
		return errs
	}
	switch strings.ToLower(f.Type) {
	case "email":
		if !emailRe.MatchString(f.Value) {
			errs = append(errs, "Invalid email")
		}
	case "number":
		// Unparseable values skip the bounds, so they pass.
		v, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err != nil {
			break
		}
		if f.Min != nil && v < *f.Min {
			errs = append(errs, fmt.Sprintf("%s must be greater than %s", f.Name, num(*f.Min)))
		}
		if f.Max != nil && v > *f.Max {
			errs = append(errs, fmt.Sprintf("%s must be less than %s", f.Name, num(*f.Max)))
		}
	}
	return errs
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
