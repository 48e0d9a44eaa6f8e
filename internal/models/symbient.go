package models

import (
	"time"

	"github.com/google/uuid"
)

// Symbient is the paired agent identity acting on behalf of one account.
// Exactly one symbient per account; the unique index on account_id enforces
// it under concurrent creation.
//
// APIKeyHash is the bcrypt hash of the symbient's credential; APIKeyPrefix is
// the short public slice of the plaintext stored for indexed lookup. Rows
// keyed before prefix indexing existed have a hash but a NULL prefix.
type Symbient struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	Website      *string   `json:"website,omitempty"`
	APIKeyHash   *string   `json:"-"`
	APIKeyPrefix *string   `json:"-"`

	// DailyPostCount is only meaningful when DailyPostDate falls on the
	// current UTC day; otherwise the effective count is zero (lazy reset).
	DailyPostCount int        `json:"-"`
	DailyPostDate  *time.Time `json:"-"`

	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
