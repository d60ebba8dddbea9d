package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase", 4)
	require.NoError(t, err)

	assert.NoError(t, ComparePassword(hash, "s3cret-passphrase"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func TestHashPasswordOutOfRangeCostFallsBack(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase", 0)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret-passphrase"))

	hash, err = HashPassword("s3cret-passphrase", 99)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret-passphrase"))
}
