package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username:     "  alice  ",
		Password:     "  pass1234  ",
		MerchantName: " My Shop ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
	assert.Equal(t, "My Shop", req.MerchantName)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	reason := "customer <script>alert('x')</script> request"
	req := CreateRefundRequest{
		TransactionID: "7b0decb6-62a0-4af3-9b46-2f2c7e3f29e1",
		Amount:        100,
		Reason:        reason,
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Reason, "&lt;script&gt;")
	assert.NotContains(t, req.Reason, "<script>")
}

func TestSanitizeStruct_CreateTransactionRequest(t *testing.T) {
	req := CreateTransactionRequest{
		IdempotencyKey: "  order-001  ",
		PaymentKey:     " pk_abc ",
		Currency:       " USD ",
		Description:    "  some notes <b>bold</b>  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "order-001", req.IdempotencyKey)
	assert.Equal(t, "pk_abc", req.PaymentKey)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "some notes &lt;b&gt;bold&lt;/b&gt;", req.Description)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"order-001",
		"ORD_002",
		"a.b.c",
		"simple123",
		"ABC-def_GHI.123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"order 001",   // space
		"order<001>",  // angle brackets
		"order;DROP",  // semicolon
		"",            // empty
		"hello world", // space
		"order\n001",  // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}
