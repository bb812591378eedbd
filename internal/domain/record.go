package domain

import (
	"fmt"
	"time"
)

// RecordType identifies the table a sluggable record lives in.
type RecordType string

const (
	RecordPost     RecordType = "post"
	RecordCategory RecordType = "category"
	RecordTag      RecordType = "tag"
)

// RecordTypes lists every sluggable type.
var RecordTypes = []RecordType{RecordPost, RecordCategory, RecordTag}

// ParseRecordType accepts the singular or the plural (route) form.
func ParseRecordType(s string) (RecordType, error) {
	switch s {
	case "post", "posts":
		return RecordPost, nil
	case "category", "categories":
		return RecordCategory, nil
	case "tag", "tags":
		return RecordTag, nil
	}
	return "", fmt.Errorf("unknown record type %q: %w", s, ErrBadRequest)
}

// Record is any content entity addressed by a slug.
// Slug is unique per Type among records whose DeletedAt is nil.
type Record struct {
	ID        string     `json:"id"`
	Type      RecordType `json:"type"`
	Title     string     `json:"title"`
	Slug      string     `json:"slug"`
	CreatedAt time.Time  `json:"created"`
	UpdatedAt time.Time  `json:"updated"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type CreateRecordRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

type RenameRecordRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

type SlugsTakenRequest struct {
	Slugs []string `json:"slugs" validate:"required,min=1,max=100,dive,required"`
}
