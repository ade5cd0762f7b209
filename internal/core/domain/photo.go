package domain

import "time"

// Photo holds the columns the AI pipeline reads and writes.
type Photo struct {
	ID                  string    `json:"id"`
	StoragePath         string    `json:"storage_path"`
	Title               string    `json:"title,omitempty"`
	Caption             string    `json:"caption,omitempty"`
	Tags                []string  `json:"tags,omitempty"`
	SemanticDescription string    `json:"semantic_description,omitempty"`
	UpdatedAt           time.Time `json:"updated_at"`
}
