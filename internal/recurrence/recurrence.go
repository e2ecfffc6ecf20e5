// Package recurrence parses cron-style recurrence rules and computes
// occurrence timing. It is pure: no clocks, no I/O.
package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression is wrapped around every parse failure so callers can
// branch with errors.Is.
var ErrInvalidExpression = errors.New("invalid recurrence expression")

// five-field standard cron: minute hour dom month dow
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate reports whether the expression parses.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return nil
}

// Next computes the first occurrence of expr strictly after the given
// instant.
func Next(expr string, after time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return sched.Next(after), nil
}
