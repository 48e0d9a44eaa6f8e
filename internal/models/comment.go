package models

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID          uuid.UUID `json:"id"`
	PostID      uuid.UUID `json:"post_id"`
	SymbientID  uuid.UUID `json:"symbient_id"`
	Body        string    `json:"body"`
	AuthoredVia string    `json:"authored_via"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
