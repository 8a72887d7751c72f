package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := PurchaseRequest{
		UserID:    "  user-1  ",
		PackageID: " coins_100 ",
		Platform:  "android",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "user-1", req.UserID)
	assert.Equal(t, "coins_100", req.PackageID)
}

func TestSanitizeStruct_LeavesOpaqueFieldsUntouched(t *testing.T) {
	purchase := PurchaseRequest{
		UserID:        "user-1",
		PurchaseToken: " tok&en='a<b>' ",
	}
	SanitizeStruct(&purchase)
	assert.Equal(t, " tok&en='a<b>' ", purchase.PurchaseToken)

	credit := CreditRequest{
		UserID:         "user-1",
		ReasonDetail:   "a & b",
		IdempotencyKey: "refund:o'brien&co",
	}
	SanitizeStruct(&credit)
	assert.Equal(t, "refund:o'brien&co", credit.IdempotencyKey)
	assert.Equal(t, "a &amp; b", credit.ReasonDetail)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := CreditRequest{
		UserID:       "user-1",
		ReasonDetail: "support <script>alert('x')</script> refund",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.ReasonDetail, "&lt;script&gt;")
	assert.NotContains(t, req.ReasonDetail, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	note := "  hello  "
	v := struct {
		Note *string
		Skip *string
	}{Note: &note}
	SanitizeStruct(&v)

	assert.Equal(t, "hello", *v.Note)
	assert.Nil(t, v.Skip)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"user-001",
		"USER_002",
		"a.b.c",
		"superLike",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"user 001",    // space
		"user<001>",   // angle brackets
		"user;DROP",   // semicolon
		"",            // empty
		"hello world", // space
		"user\n001",   // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
