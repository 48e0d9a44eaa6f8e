package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote is one account's upvote on a post. The unique (account_id, post_id)
// pair makes the toggle idempotent under concurrent requests.
type Vote struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	PostID    uuid.UUID `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
