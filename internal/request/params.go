package request

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Location says where a parameter is placed on the wire.
type Location int

const (
	InQuery Location = iota
	InPath
)

// Kind is the semantic type of a parameter.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindEnum
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindEnum:
		return "enum"
	case KindDate:
		return "date"
	}
	return "string"
}

// DateLayout is the wire format for date parameters.
const DateLayout = "2006-01-02"

var iataPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Param describes one path or query parameter.
type Param struct {
	Name     string
	In       Location
	Kind     Kind
	Required bool

	// Min and Max bound integer parameters when non-nil.
	Min, Max *int

	// Enum lists the allowed values of an enum parameter.
	Enum []string

	// Pattern further constrains string parameters.
	Pattern *regexp.Regexp
}

// Params maps parameter names to caller values. A nil value is treated
// as absent.
type Params map[string]any

// normalize validates v against p and returns its wire form.
func (p Param) normalize(v any) (string, error) {
	switch p.Kind {
	case KindInteger:
		n, err := toInt(v)
		if err != nil {
			return "", err
		}
		if p.Min != nil && n < *p.Min {
			return "", fmt.Errorf("must be >= %d, got %d", *p.Min, n)
		}
		if p.Max != nil && n > *p.Max {
			return "", fmt.Errorf("must be <= %d, got %d", *p.Max, n)
		}
		return strconv.Itoa(n), nil

	case KindEnum:
		s, err := toString(v)
		if err != nil {
			return "", err
		}
		if !slices.Contains(p.Enum, s) {
			return "", fmt.Errorf("must be one of [%s], got %q", strings.Join(p.Enum, ", "), s)
		}
		return s, nil

	case KindDate:
		return toDate(v)

	default:
		s, err := toString(v)
		if err != nil {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("must not be empty")
		}
		if p.Pattern != nil && !p.Pattern.MatchString(s) {
			return "", fmt.Errorf("must match %s, got %q", p.Pattern, s)
		}
		return s, nil
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", n)
		}
		return i, nil
	}
	if rv := reflect.ValueOf(v); rv.CanInt() {
		return int(rv.Int()), nil
	}
	return 0, fmt.Errorf("must be an integer, got %T", v)
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), nil
	}
	return "", fmt.Errorf("must be a string, got %T", v)
}

func toDate(v any) (string, error) {
	switch d := v.(type) {
	case time.Time:
		if d.IsZero() {
			return "", fmt.Errorf("must not be the zero date")
		}
		return d.Format(DateLayout), nil
	case string:
		if _, err := time.Parse(DateLayout, d); err != nil {
			return "", fmt.Errorf("must be a date in YYYY-MM-DD form, got %q", d)
		}
		return d, nil
	case fmt.Stringer:
		s := d.String()
		if _, err := time.Parse(DateLayout, s); err != nil {
			return "", fmt.Errorf("must be a date in YYYY-MM-DD form, got %q", s)
		}
		return s, nil
	}
	return "", fmt.Errorf("must be a date, got %T", v)
}
