package redisx

import "time"

const (
	// Idempotent checkout fast path: idem:checkout:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart hash per user: cart:{user_id}, field = product_id
	KeyCart = "cart:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCart        = 7 * 24 * time.Hour
)
