package redisx

import "time"

const (
	// Cache of an order's status pair, scoped to its owner:
	// order_status:{user_id}:{order_id} ->
	// {"status": "...", "payment_status": "..."}
	KeyOrderStatus = "order_status:%s:%s"

	// Payment claim and idempotency marker: idem:payment:{order_id} holds
	// "processing" while a charge is in flight and the transaction id after
	// success. The orders row stays authoritative.
	KeyIdemPayment = "idem:payment:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLIdempotency = 24 * time.Hour
)
