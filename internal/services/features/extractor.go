// Package features derives the per-row values that get CDF-normalized.
package features

import (
	"fmt"
	"math"
)

// Transform combines a column with its base column.
type Transform string

const (
	// Sub yields column - base.
	Sub Transform = "sub"
	// LogRatio yields ln(column / base).
	LogRatio Transform = "log_ratio"
	// LogReturn yields ln(x[i] / x[i-1]) of a single column; the first row is NaN.
	LogReturn Transform = "log_return"
)

// Spec describes one normalized feature.
type Spec struct {
	Name      string    `yaml:"name" validate:"required"`
	Column    string    `yaml:"column" validate:"required"`
	Base      string    `yaml:"base"`
	Transform Transform `yaml:"transform" validate:"omitempty,oneof=sub log_ratio log_return"`
	// Diff takes the first difference within a row group; the first row is NaN.
	Diff bool `yaml:"diff"`
}

// OutputColumn is the column the normalized values are written to.
func (s Spec) OutputColumn() string { return "cdf_" + s.Name }

// Source exposes numeric columns by name.
type Source interface {
	Numeric(name string) ([]float64, error)
}

// Extract computes the raw feature values of spec from src.
func Extract(src Source, spec Spec) ([]float64, error) {
	col, err := src.Numeric(spec.Column)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", spec.Name, err)
	}
	out := make([]float64, len(col))
	copy(out, col)

	if spec.Transform == LogReturn {
		if len(out) > 0 {
			out[0] = math.NaN()
		}
		copy(out[1:], ComputeLogReturns(col))
	} else if spec.Base != "" {
		base, err := src.Numeric(spec.Base)
		if err != nil {
			return nil, fmt.Errorf("feature %s base: %w", spec.Name, err)
		}
		if len(base) != len(col) {
			return nil, fmt.Errorf("feature %s: base has %d rows, column %d", spec.Name, len(base), len(col))
		}
		switch spec.Transform {
		case LogRatio:
			for i := range out {
				out[i] = logRatio(col[i], base[i])
			}
		default:
			for i := range out {
				out[i] = col[i] - base[i]
			}
		}
	}

	if spec.Diff {
		out = FirstDifference(out)
	}
	return out, nil
}

// FirstDifference returns x[i]-x[i-1] with NaN in the first slot.
func FirstDifference(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i] - x[i-1]
	}
	return out
}

// ComputeLogReturns computes r_t = ln(x_t / x_{t-1}); non-positive inputs
// yield 0. It returns nil for fewer than two points.
func ComputeLogReturns(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, 0, len(x)-1)
	for i := 1; i < len(x); i++ {
		out = append(out, logRatio(x[i], x[i-1]))
	}
	return out
}

func logRatio(cur, prev float64) float64 {
	if prev <= 0 || cur <= 0 {
		return 0
	}
	return math.Log(cur / prev)
}

// Resolutions are the bar resolutions carried by every dataset row.
var Resolutions = []string{"1s", "1m", "5m"}

// DefaultSpecs normalizes high, low and close against the open of the same
// bar at every resolution. One-second columns are unsuffixed.
func DefaultSpecs() []Spec {
	var specs []Spec
	for _, res := range Resolutions {
		suffix := "_" + res
		if res == "1s" {
			suffix = ""
		}
		for _, field := range []string{"high", "low", "close"} {
			specs = append(specs, Spec{
				Name:      field + "_" + res,
				Column:    field + suffix,
				Base:      "open" + suffix,
				Transform: LogRatio,
			})
		}
	}
	return specs
}

// Lookup reports whether a column exists and is numeric.
type Lookup func(name string) bool

// Validate checks that names are unique and every referenced column exists.
func Validate(specs []Spec, has Lookup) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" || s.Column == "" {
			return fmt.Errorf("feature spec needs name and column: %+v", s)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate feature %s", s.Name)
		}
		seen[s.Name] = true
		if !has(s.Column) {
			return fmt.Errorf("feature %s: unknown column %s", s.Name, s.Column)
		}
		if s.Base != "" && !has(s.Base) {
			return fmt.Errorf("feature %s: unknown base column %s", s.Name, s.Base)
		}
		switch s.Transform {
		case "", Sub, LogRatio:
		case LogReturn:
			if s.Base != "" {
				return fmt.Errorf("feature %s: log_return takes no base column", s.Name)
			}
		default:
			return fmt.Errorf("feature %s: unknown transform %q", s.Name, s.Transform)
		}
		if has(s.OutputColumn()) {
			return fmt.Errorf("feature %s: output column %s already exists", s.Name, s.OutputColumn())
		}
	}
	return nil
}
