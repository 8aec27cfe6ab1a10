package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityRoundTrip(t *testing.T) {
	for _, label := range []Priority{PriorityForce, PriorityHigh, PriorityNormal, PriorityLow} {
		code, err := label.Code()
		require.NoError(t, err)

		back, err := PriorityFromCode(code)
		require.NoError(t, err)
		assert.Equal(t, label, back)
	}
}

func TestPriorityCanonicalCodes(t *testing.T) {
	expected := map[Priority]int{
		PriorityForce:  2,
		PriorityHigh:   1,
		PriorityNormal: 0,
		PriorityLow:    -1,
	}

	for label, code := range expected {
		got, err := label.Code()
		require.NoError(t, err)
		assert.Equal(t, code, got, "code for %s", label)
	}
}

func TestParsePriorityRejectsUnknown(t *testing.T) {
	_, err := ParsePriority("paused")
	assert.ErrorIs(t, err, ErrUnknownPriority)

	_, err = ParsePriority("")
	assert.ErrorIs(t, err, ErrUnknownPriority)

	_, err = PriorityFromCode(3)
	assert.ErrorIs(t, err, ErrUnknownPriority)

	_, err = PriorityFromCode(-100)
	assert.ErrorIs(t, err, ErrUnknownPriority)
}

func TestParsePriorityCaseInsensitive(t *testing.T) {
	p, err := ParsePriority("High")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	p, err = ParsePriority(" FORCE ")
	require.NoError(t, err)
	assert.Equal(t, PriorityForce, p)
}

func TestNormalizePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, NormalizePriority("High"))
	assert.Equal(t, PriorityForce, NormalizePriority("2"))
	assert.Equal(t, PriorityLow, NormalizePriority("-1"))
	// Default code and garbage fall back to normal
	assert.Equal(t, PriorityNormal, NormalizePriority("-100"))
	assert.Equal(t, PriorityNormal, NormalizePriority(""))
	assert.Equal(t, PriorityNormal, NormalizePriority("whatever"))
}
