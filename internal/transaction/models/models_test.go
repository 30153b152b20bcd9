package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tradeledger/pkg/domain-errors"
)

var allStatuses = []Status{StatusOpen, StatusInProgress, StatusCompleted, StatusDisputed, StatusCancelled}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus(" in_progress ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st)

	_, err = ParseStatus("SHIPPED")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = ParseStatus("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestTransitionTable(t *testing.T) {
	allowed := map[Status][]Status{
		StatusOpen:       {StatusInProgress, StatusDisputed, StatusCancelled},
		StatusInProgress: {StatusCompleted, StatusDisputed, StatusCancelled},
		StatusDisputed:   {StatusInProgress, StatusCancelled},
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		tx := &Transaction{Status: terminal}
		for _, to := range allStatuses {
			err := tx.ValidateTransition(to)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "%s -> %s", terminal, to)
		}
	}
	assert.False(t, StatusOpen.IsTerminal())
	assert.False(t, Status("BOGUS").IsTerminal())
}

func TestValidateTransitionRejectsSelfAndUnknown(t *testing.T) {
	tx := &Transaction{Status: StatusOpen}
	assert.Error(t, tx.ValidateTransition(StatusOpen))
	assert.Error(t, tx.ValidateTransition(Status("SHIPPED")))
	assert.NoError(t, tx.ValidateTransition(StatusInProgress))
}

func TestAllowedNextIsACopy(t *testing.T) {
	next := StatusOpen.AllowedNext()
	next[0] = StatusCompleted
	assert.False(t, StatusOpen.CanTransitionTo(StatusCompleted))
}

func TestCountByStatus(t *testing.T) {
	c := CountByStatus([]*Transaction{
		{Status: StatusDisputed}, {Status: StatusCancelled}, {Status: StatusCompleted},
		{Status: StatusCompleted}, {Status: StatusOpen},
	})
	assert.Equal(t, Counts{Total: 5, Disputed: 1, Cancelled: 1, Completed: 2}, c)
}
