// Package arith implements the arithmetic tool provider: four integer operations
// served over MCP.
package arith

import "errors"

var ErrDivisionByZero = errors.New("division by zero")

func Add(a, b int64) int64 {
	return a + b
}

func Subtract(a, b int64) int64 {
	return a - b
}

func Multiply(a, b int64) int64 {
	return a * b
}

// Divide returns a/b. With zeroCompat set a zero divisor yields 0 instead of
// ErrDivisionByZero, which is what existing callers of the provider rely on.
func Divide(a, b int64, zeroCompat bool) (float64, error) {
	if b == 0 {
		if zeroCompat {
			return 0, nil
		}
		return 0, ErrDivisionByZero
	}
	return float64(a) / float64(b), nil
}
