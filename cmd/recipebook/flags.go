package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// Set implements pflag.Value.
func (f *OutputFormat) Set(v string) error {
	switch OutputFormat(v) {
	case OutputText, OutputJSON, OutputYAML:
		*f = OutputFormat(v)
	default:
		return fmt.Errorf("invalid value %q, valid values are %q, %q or %q", v, OutputText, OutputJSON, OutputYAML)
	}
	return nil
}

// String implements pflag.Value.
func (f *OutputFormat) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

// Type implements pflag.Value.
func (f *OutputFormat) Type() string {
	return "OutputFormat"
}

// MatchFlag chooses whether a search needs any or all of its ingredients.
type MatchFlag string

const (
	MatchAny MatchFlag = "any"
	MatchAll MatchFlag = "all"
)

func (m *MatchFlag) Set(v string) error {
	switch MatchFlag(v) {
	case MatchAny, MatchAll:
		*m = MatchFlag(v)
	default:
		return fmt.Errorf("invalid value %q, valid values are %q or %q", v, MatchAny, MatchAll)
	}
	return nil
}

func (m *MatchFlag) String() string {
	if m == nil {
		return ""
	}
	return string(*m)
}

func (m *MatchFlag) Type() string {
	return "MatchFlag"
}

// DayFlag is a weekday given as a number (0 = Sunday) or an English name.
type DayFlag int

func (d *DayFlag) Set(v string) error {
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n > 6 {
			return fmt.Errorf("day %d is out of range 0-6", n)
		}
		*d = DayFlag(n)
		return nil
	}
	v = strings.ToLower(strings.TrimSpace(v))
	for day := time.Sunday; day <= time.Saturday; day++ {
		name := strings.ToLower(day.String())
		if v == name || (len(v) >= 3 && strings.HasPrefix(name, v)) {
			*d = DayFlag(day)
			return nil
		}
	}
	return fmt.Errorf("invalid day %q", v)
}

func (d *DayFlag) String() string {
	if d == nil {
		return ""
	}
	return time.Weekday(*d).String()
}

func (d *DayFlag) Type() string {
	return "DayFlag"
}

var (
	_ pflag.Value = (*OutputFormat)(nil)
	_ pflag.Value = (*MatchFlag)(nil)
	_ pflag.Value = (*DayFlag)(nil)
)

// render prints v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format OutputFormat, v any, text func() error) error {
	switch format {
	case OutputJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case OutputYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return text()
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
