package models

import "time"

// User is a person known through an external identity provider
type User struct {
	ID                int64     `json:"id"`
	ExternalSubjectID string    `json:"external_subject_id"`
	Email             string    `json:"email,omitempty"`
	DisplayName       string    `json:"display_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
