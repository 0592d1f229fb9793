package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Knetic/govaluate"
)

// allowedExprChars is the character set accepted by the calculator, besides
// whitespace. Anything else is rejected before evaluation.
const allowedExprChars = "0123456789+-*/()."

// Calculator evaluates arithmetic expressions.
type Calculator struct {
	latency time.Duration
}

// NewCalculator creates a calculator handler. latency simulates computation
// delay; pass zero for none.
func NewCalculator(latency time.Duration) *Calculator {
	return &Calculator{latency: latency}
}

func (c *Calculator) Name() string { return "calculator" }

func (c *Calculator) Description() string {
	return "Evaluates an arithmetic expression, e.g. 2+3*4"
}

// Invoke evaluates the expression and returns the numeric result as a
// string, using the shortest decimal representation ("6", not "6.000000").
func (c *Calculator) Invoke(ctx context.Context, input string) (string, error) {
	if err := simulateLatency(ctx, c.latency); err != nil {
		return "", err
	}

	for _, r := range input {
		if unicode.IsSpace(r) || strings.ContainsRune(allowedExprChars, r) {
			continue
		}
		return "", fmt.Errorf("expression contains disallowed character %q", r)
	}

	expr, err := govaluate.NewEvaluableExpression(input)
	if err != nil {
		return "", fmt.Errorf("invalid expression: %w", err)
	}

	value, err := expr.Evaluate(nil)
	if err != nil {
		return "", fmt.Errorf("evaluation failed: %w", err)
	}

	num, ok := value.(float64)
	if !ok {
		return "", fmt.Errorf("expression did not evaluate to a number (got %T)", value)
	}

	return strconv.FormatFloat(num, 'f', -1, 64), nil
}
