package types

import (
	"time"

	"github.com/google/uuid"
)

// File is the metadata row for an uploaded object. The bytes live in object
// storage under Key; URL is the public retrieval address.
type File struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	Name        string    `json:"name" db:"name"`
	Key         string    `json:"-" db:"key"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	URL         string    `json:"url" db:"url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
