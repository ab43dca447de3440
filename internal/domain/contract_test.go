package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundsFromOpen(t *testing.T) {
	c := BoundsFromOpen(4475.3)
	assert.Equal(t, 4450.0, c.Lower)
	assert.Equal(t, 4499.99, c.Upper)

	// An open right on a band edge starts a fresh band.
	c = BoundsFromOpen(4500.0)
	assert.Equal(t, 4500.0, c.Lower)
	assert.Equal(t, 4549.99, c.Upper)
}

func TestRangeContract_Outcome(t *testing.T) {
	c := RangeContract{Lower: 4450, Upper: 4499.99}

	assert.Equal(t, Yes, c.Outcome(4450))
	assert.Equal(t, Yes, c.Outcome(4475))
	assert.Equal(t, Yes, c.Outcome(4499.99))
	assert.Equal(t, No, c.Outcome(4449.99))
	assert.Equal(t, No, c.Outcome(4500))

	assert.True(t, c.Contains(4475))
	assert.False(t, c.Contains(4500))
}
