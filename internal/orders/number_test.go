package orders

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numberPattern = regexp.MustCompile(`^ORD-\d{14}-[0-9a-f]{8}$`)

func TestNewNumber(t *testing.T) {
	n := NewNumber()
	require.Regexp(t, numberPattern, n)
}

func TestNewNumberUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := NewNumber()
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}
