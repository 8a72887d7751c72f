package dto

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"coin-ledger/internal/core/ports"

	"github.com/google/uuid"
)

var errBadCursor = errors.New("malformed cursor")

// EncodeCursor renders a history cursor as an opaque URL-safe token.
func EncodeCursor(c *ports.TransactionCursor) string {
	if c == nil {
		return ""
	}
	raw := c.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token
// yields a nil cursor.
func DecodeCursor(token string) (*ports.TransactionCursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errBadCursor
	}
	tsPart, idPart, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, errBadCursor
	}
	ts, err := time.Parse(time.RFC3339Nano, tsPart)
	if err != nil {
		return nil, errBadCursor
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return nil, errBadCursor
	}
	return &ports.TransactionCursor{Timestamp: ts, ID: id}, nil
}
