package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "tradeledger/pkg/domain-errors"
)

func TestGenerateProducesDistinctSecrets(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, ValidateHash(hash))

	assert.NoError(t, Verify("s3cret", hash))
	assert.True(t, dErrors.HasCode(Verify("guess", hash), dErrors.CodeUnauthorized))
	assert.True(t, dErrors.HasCode(Verify("", hash), dErrors.CodeUnauthorized))
}

func TestHashRejectsEmptySecret(t *testing.T) {
	_, err := Hash("", bcrypt.MinCost)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestValidateHashRejectsPlaintext(t *testing.T) {
	assert.Error(t, ValidateHash("not-a-hash"))
}
