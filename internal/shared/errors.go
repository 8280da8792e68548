package shared

import "github.com/odyssey-erp/stockroom/internal/platform/httpx"

var (
	// ErrIdempotencyConflict indicates a duplicate key.
	ErrIdempotencyConflict = httpx.NewError(httpx.ErrConflict, "idempotent request already processed")
	// ErrActorRequired is returned when a mutation carries no acting user.
	ErrActorRequired = httpx.NewError(httpx.ErrValidation, "userId and userEmail are required")
)
