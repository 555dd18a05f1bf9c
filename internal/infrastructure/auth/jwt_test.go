package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := IssueToken("acct-42", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	accountID, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "acct-42", accountID)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken("acct-42", "secret")
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	require.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not-a-token", "secret")
	require.Error(t, err)
}
