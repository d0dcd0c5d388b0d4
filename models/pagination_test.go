package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 15, 8, 30, 0, 123456789, time.UTC)
	cursor := EncodeCompositeCursor(at, 42)

	got, id, ok := DecodeCompositeCursor(&cursor)
	require.True(t, ok)
	assert.True(t, at.Equal(got))
	assert.Equal(t, 42, id)
}

func TestDecodeCompositeCursor_Malformed(t *testing.T) {
	for _, c := range []string{"", "not-base64!", "bm9waXBl", "MjAyNi0wMS0xNXxhYmM="} {
		c := c
		_, _, ok := DecodeCompositeCursor(&c)
		assert.False(t, ok, c)
	}
	_, _, ok := DecodeCompositeCursor(nil)
	assert.False(t, ok)
}

func TestPageInputLimit(t *testing.T) {
	assert.Equal(t, defaultPageLimit, PageInput{}.limit())
	assert.Equal(t, defaultPageLimit, PageInput{Limit: -3}.limit())
	assert.Equal(t, 7, PageInput{Limit: 7}.limit())
	assert.Equal(t, maxPageLimit, PageInput{Limit: 5000}.limit())
}

func TestConnectionNodes(t *testing.T) {
	a, b := &Client{ID: 1}, &Client{ID: 2}
	conn := Connection[Client]{Edges: []Edge[Client]{{Node: a}, {Node: b}}}

	assert.Equal(t, []*Client{a, b}, conn.Nodes())
}

func TestFormatSequence(t *testing.T) {
	assert.Equal(t, "ACME-CASE-000001", FormatSequence("ACME", SequenceKindCase, 1))
	assert.Equal(t, "ACME-INV-000123", FormatSequence("ACME", SequenceKindInvoice, 123))
	assert.Equal(t, "ACME-CLIENT-1234567", FormatSequence("ACME", SequenceKindClient, 1234567))
}

func TestSequenceKindIsValid(t *testing.T) {
	assert.True(t, SequenceKindCase.IsValid())
	assert.True(t, SequenceKindInvoice.IsValid())
	assert.False(t, SequenceKind("ORDER").IsValid())
}
