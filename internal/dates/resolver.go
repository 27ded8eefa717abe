// Package dates resolves the set of in-scope calendar days from a declarative
// policy. All dates are UTC day keys in YYYY-MM-DD form, returned newest
// first with no duplicates.
package dates

import (
	"fmt"
	"sort"
	"time"
)

// Layout is the canonical day-key format.
const Layout = "2006-01-02"

// Policy modes.
const (
	ModeRolling = "rolling"
	ModeRange   = "range"
	ModeList    = "list"
)

// Policy is the declarative date selection configuration.
type Policy struct {
	Mode    string        `yaml:"mode"`
	Rolling RollingPolicy `yaml:"rolling"`
	Range   RangePolicy   `yaml:"range"`
	List    []string      `yaml:"list"`
}

// RollingPolicy selects Window consecutive days ending yesterday, optionally
// floored at Start (inclusive).
type RollingPolicy struct {
	Window int    `yaml:"window"`
	Start  string `yaml:"start"`
}

// RangePolicy selects every day in [Start, End] inclusive. End defaults to
// yesterday when empty.
type RangePolicy struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// ConfigError reports an invalid policy. It is fatal and raised before any
// pipeline I/O.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "date policy: " + e.Msg }

// Resolve computes the in-scope day keys for a policy, newest first.
//
// An explicit override date short-circuits policy evaluation and yields a
// single-element list.
func Resolve(p Policy, today time.Time, override string) ([]string, error) {
	if override != "" {
		if _, err := time.Parse(Layout, override); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid override date %q", override)}
		}
		return []string{override}, nil
	}

	day := today.UTC().Truncate(24 * time.Hour)
	yesterday := day.AddDate(0, 0, -1)

	switch p.Mode {
	case ModeRolling:
		return resolveRolling(p.Rolling, day)
	case ModeRange:
		return resolveRange(p.Range, yesterday)
	case ModeList:
		return resolveList(p.List)
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unknown mode %q", p.Mode)}
	}
}

func resolveRolling(p RollingPolicy, today time.Time) ([]string, error) {
	if p.Window <= 0 {
		return nil, &ConfigError{Msg: "rolling window must be positive"}
	}

	var floor time.Time
	if p.Start != "" {
		t, err := time.Parse(Layout, p.Start)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid rolling start %q", p.Start)}
		}
		floor = t
	}

	out := make([]string, 0, p.Window)
	for i := 1; i <= p.Window; i++ {
		d := today.AddDate(0, 0, -i)
		if !floor.IsZero() && d.Before(floor) {
			break
		}
		out = append(out, d.Format(Layout))
	}
	return out, nil
}

func resolveRange(p RangePolicy, yesterday time.Time) ([]string, error) {
	start, err := time.Parse(Layout, p.Start)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("invalid range start %q", p.Start)}
	}

	end := yesterday
	if p.End != "" {
		end, err = time.Parse(Layout, p.End)
		if err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid range end %q", p.End)}
		}
	}
	if start.After(end) {
		return nil, &ConfigError{Msg: fmt.Sprintf("range start %s after end %s", p.Start, end.Format(Layout))}
	}

	var out []string
	for d := end; !d.Before(start); d = d.AddDate(0, 0, -1) {
		out = append(out, d.Format(Layout))
	}
	return out, nil
}

func resolveList(list []string) ([]string, error) {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, d := range list {
		if _, err := time.Parse(Layout, d); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("invalid list date %q", d)}
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}
