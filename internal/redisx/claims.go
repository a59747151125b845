package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const claimPending = "processing"

// PaymentClaims serializes payment attempts per order with a SETNX marker, so
// concurrent requests cannot both reach the gateway. A released claim (decline
// or gateway trouble) lets the customer retry; a successful charge overwrites
// the marker with its transaction id and keeps it for the idempotency window.
type PaymentClaims struct {
	R *redis.Client
}

func (c *PaymentClaims) Claim(ctx context.Context, orderID string) (bool, error) {
	key := fmt.Sprintf(KeyIdemPayment, orderID)
	return c.R.SetNX(ctx, key, claimPending, TTLIdempotency).Result()
}

func (c *PaymentClaims) Record(ctx context.Context, orderID, transactionID string) {
	key := fmt.Sprintf(KeyIdemPayment, orderID)
	_ = c.R.Set(ctx, key, transactionID, TTLIdempotency).Err()
}

func (c *PaymentClaims) Release(ctx context.Context, orderID string) {
	key := fmt.Sprintf(KeyIdemPayment, orderID)
	_ = c.R.Del(ctx, key).Err()
}
