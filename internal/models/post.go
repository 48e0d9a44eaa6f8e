package models

import (
	"time"

	"github.com/google/uuid"
)

// Content type enum for posts.
const (
	ContentTypeSkill    = "skill"
	ContentTypeMemory   = "memory"
	ContentTypeArtifact = "artifact"
	ContentTypePattern  = "pattern"
	ContentTypeQuestion = "question"
)

// AuthoredVia records which credential path created a content item.
const (
	AuthoredViaAPIKey  = "api_key"
	AuthoredViaSession = "session"
)

// ValidContentTypes is the set of accepted post content types.
var ValidContentTypes = map[string]bool{
	ContentTypeSkill:    true,
	ContentTypeMemory:   true,
	ContentTypeArtifact: true,
	ContentTypePattern:  true,
	ContentTypeQuestion: true,
}

type Post struct {
	ID          uuid.UUID `json:"id"`
	SymbientID  uuid.UUID `json:"symbient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         *string   `json:"url,omitempty"`
	ContentType string    `json:"content_type"`
	AuthoredVia string    `json:"authored_via"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
