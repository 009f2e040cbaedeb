// Package alert evaluates pass/fail criteria against the metrics map
// of a finished run.
package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ballast/internal/core"
)

// criterion is one parsed "<metric> <op> <number>" expression.
type criterion struct {
	expr   string
	metric string
	op     string
	value  float64
}

// Longer operators listed first so ">=" is not read as ">".
var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?[\d.]+)$`)

func parseCriterion(expr string) (criterion, error) {
	matches := exprPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if len(matches) != 4 {
		return criterion{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("criteria expression %q is not of the form \"<metric> <op> <number>\"", expr))
	}

	value, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return criterion{}, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("criteria expression %q: threshold %q: %w", expr, matches[3], err))
	}

	return criterion{
		expr:   strings.TrimSpace(expr),
		metric: matches[1],
		op:     matches[2],
		value:  value,
	}, nil
}

func (c criterion) holds(actual float64) bool {
	switch c.op {
	case ">":
		return actual > c.value
	case "<":
		return actual < c.value
	case ">=":
		return actual >= c.value
	case "<=":
		return actual <= c.value
	case "==":
		return actual == c.value
	case "!=":
		return actual != c.value
	default:
		return false
	}
}
