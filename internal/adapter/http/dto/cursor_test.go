package dto

import (
	"encoding/base64"
	"testing"
	"time"

	"coin-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTripKeepsNanoseconds(t *testing.T) {
	in := &ports.TransactionCursor{
		Timestamp: time.Date(2026, 4, 1, 8, 0, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
	assert.Equal(t, in.ID, out.ID)
}

func TestCursor_Empty(t *testing.T) {
	assert.Equal(t, "", EncodeCursor(nil))

	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDecodeCursor_Malformed(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	for _, token := range []string{
		"***",
		enc("no-separator"),
		enc("yesterday|" + uuid.NewString()),
		enc("2026-04-01T08:00:00Z|not-a-uuid"),
	} {
		_, err := DecodeCursor(token)
		assert.Error(t, err, "token %q", token)
	}
}
