package recalc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tradeledger/pkg/domain-errors"
)

func TestDecodeTask(t *testing.T) {
	task, err := DecodeTask([]byte(`{"user_id":"7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b","trigger":"verification"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempt)
	assert.Equal(t, "7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b", task.UserID.String())

	for name, raw := range map[string]string{
		"not json":        `nope`,
		"missing user":    `{"trigger":"manual"}`,
		"unknown trigger": `{"user_id":"7f1c2a9e-3b4d-4e5f-8a6b-9c0d1e2f3a4b","trigger":"cron"}`,
	} {
		_, err := DecodeTask([]byte(raw))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), name)
	}
}
