package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side browser session. Only the SHA-256 digest of the
// opaque token is stored.
type Session struct {
	TokenHash string    `json:"-"`
	AccountID uuid.UUID `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
