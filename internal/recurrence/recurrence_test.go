package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextWeekdayMorning(t *testing.T) {
	// 9am on weekdays
	const expr = "0 9 * * 1-5"

	// Monday 08:00 -> same day 09:00
	monday := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	next, err := Next(expr, monday)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), next)

	// Friday 10:00 -> following Monday 09:00
	friday := time.Date(2025, 6, 6, 10, 0, 0, 0, time.UTC)
	next, err = Next(expr, friday)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC), next)
}

func TestNextIsStrictlyAfter(t *testing.T) {
	// exactly at an occurrence, the next one is a day later
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	next, err := Next("0 9 * * *", at)
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.NoError(t, Validate("0 9 * * 1-5"))

	for _, expr := range []string{"", "not a cron", "61 * * * *", "* * * *"} {
		err := Validate(expr)
		assert.Error(t, err, "expression %q should not parse", expr)
		assert.True(t, errors.Is(err, ErrInvalidExpression))
	}
}

func TestNextInvalidExpression(t *testing.T) {
	_, err := Next("bogus", time.Now())
	assert.True(t, errors.Is(err, ErrInvalidExpression))
}
