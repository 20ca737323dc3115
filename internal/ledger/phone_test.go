package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone("(201) 555-0123", "us")
	require.NoError(t, err)
	assert.Equal(t, "+12015550123", got)

	got, err = NormalizePhone("07400 123456", "GB")
	require.NoError(t, err)
	assert.Equal(t, "+447400123456", got)

	got, err = NormalizePhone("+1 201 555 0123", "GB")
	require.NoError(t, err)
	assert.Equal(t, "+12015550123", got, "explicit country code wins over region")
}

func TestNormalizePhoneRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "not a phone", "12"} {
		_, err := NormalizePhone(raw, "US")
		require.ErrorIs(t, err, ErrInvalidPhone, raw)
	}
}
