package models

import "time"

// Category classifies activities
type Category string

const (
	CategoryCare      Category = "care"
	CategoryHousehold Category = "household"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	return c == CategoryCare || c == CategoryHousehold
}

// ActivityStatus is the lifecycle state of an activity
type ActivityStatus string

const (
	StatusPending  ActivityStatus = "pending"
	StatusApproved ActivityStatus = "approved"
)

// CanApprove reports whether an activity in status s may move to approved
func (s ActivityStatus) CanApprove() bool {
	return s == StatusPending
}

// Activity is a scheduled chore assigned to one family member
type Activity struct {
	ID              int64          `json:"id"`
	FamilyID        int64          `json:"family_id"`
	CreatedBy       int64          `json:"created_by"`
	AssignedTo      int64          `json:"assigned_to"`
	Title           string         `json:"title"`
	Category        Category       `json:"category"`
	StartsAt        time.Time      `json:"starts_at"`
	EndsAt          time.Time      `json:"ends_at"`
	DurationMinutes int64          `json:"duration_minutes"`
	CoinValue       int64          `json:"coin_value"`
	Status          ActivityStatus `json:"status"`
	ApprovedBy      *int64         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
