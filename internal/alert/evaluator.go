package alert

// Verdict is the outcome of checking one criterion.
type Verdict struct {
	Expression string  `json:"expression"`
	Passed     bool    `json:"passed"`
	Actual     float64 `json:"actual"`
	Reason     string  `json:"reason,omitempty"`
}

// Result aggregates the verdicts of a full criteria set.
type Result struct {
	Passed   bool      `json:"passed"`
	Verdicts []Verdict `json:"verdicts"`
}

// Criteria is an ordered set of parsed pass/fail expressions.
type Criteria struct {
	rules []criterion
}

// Parse builds a Criteria set from expressions like "sharpe > 0.5".
// Any malformed expression fails the whole set with ErrConfigInvalid.
func Parse(exprs []string) (*Criteria, error) {
	rules := make([]criterion, 0, len(exprs))
	for _, expr := range exprs {
		rule, err := parseCriterion(expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &Criteria{rules: rules}, nil
}

// Default returns the stock acceptance criteria applied when the
// user configures none.
func Default() *Criteria {
	criteria, err := Parse([]string{
		"total_return > 0",
		"sharpe > 0.5",
		"max_drawdown > -0.30",
		"win_rate >= 0.5",
	})
	if err != nil {
		panic(err) // expressions above are constants
	}
	return criteria
}

// Evaluate checks every criterion against the metrics map. A metric
// missing from the map fails its criterion but does not stop the rest
// from being checked.
func (c *Criteria) Evaluate(metrics map[string]float64) Result {
	result := Result{
		Passed:   true,
		Verdicts: make([]Verdict, 0, len(c.rules)),
	}

	for _, rule := range c.rules {
		actual, ok := metrics[rule.metric]
		if !ok {
			result.Passed = false
			result.Verdicts = append(result.Verdicts, Verdict{
				Expression: rule.expr,
				Passed:     false,
				Reason:     "metric not found",
			})
			continue
		}

		passed := rule.holds(actual)
		if !passed {
			result.Passed = false
		}
		result.Verdicts = append(result.Verdicts, Verdict{
			Expression: rule.expr,
			Passed:     passed,
			Actual:     actual,
		})
	}

	return result
}

// Expressions returns the original expression strings, in order.
func (c *Criteria) Expressions() []string {
	exprs := make([]string, len(c.rules))
	for i, rule := range c.rules {
		exprs[i] = rule.expr
	}
	return exprs
}
