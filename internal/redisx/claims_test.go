package redisx

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaims(t *testing.T) (*PaymentClaims, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &PaymentClaims{R: rdb}, mr
}

func TestPaymentClaims(t *testing.T) {
	ctx := context.Background()

	t.Run("only one claim wins", func(t *testing.T) {
		c, _ := newClaims(t)
		ok, err := c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("release frees the order for another attempt", func(t *testing.T) {
		c, _ := newClaims(t)
		ok, err := c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		require.True(t, ok)

		c.Release(ctx, "ord-1")

		ok, err = c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("record keeps the transaction id under the claim key", func(t *testing.T) {
		c, mr := newClaims(t)
		ok, err := c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		require.True(t, ok)

		c.Record(ctx, "ord-1", "TXN-42")

		v, err := mr.Get(fmt.Sprintf(KeyIdemPayment, "ord-1"))
		require.NoError(t, err)
		assert.Equal(t, "TXN-42", v)

		// the recorded marker still blocks new claims
		ok, err = c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("claims are per order", func(t *testing.T) {
		c, _ := newClaims(t)
		ok, err := c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = c.Claim(ctx, "ord-2")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("claim carries the idempotency TTL", func(t *testing.T) {
		c, mr := newClaims(t)
		ok, err := c.Claim(ctx, "ord-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, TTLIdempotency, mr.TTL(fmt.Sprintf(KeyIdemPayment, "ord-1")))
	})
}

func TestNewClientTimeouts(t *testing.T) {
	c := New("localhost:6379")
	defer c.Close()
	opts := c.Options()
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
}
