package models

import "time"

// Role is a member's authority within one family
type Role string

const (
	RoleMainCaregiver Role = "main_caregiver"
	RoleCaregiver     Role = "caregiver"
	RoleMember        Role = "member"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleMainCaregiver, RoleCaregiver, RoleMember:
		return true
	}
	return false
}

// Rank orders roles by authority; unknown roles rank below member
func (r Role) Rank() int {
	switch r {
	case RoleMainCaregiver:
		return 3
	case RoleCaregiver:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Family is a group of users sharing one coin economy
type Family struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	MonthlyCoinBudget int64     `json:"monthly_coin_budget"`
	CreatedBy         int64     `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
}

// Membership is a user's role and coin balance within a family
type Membership struct {
	FamilyID    int64     `json:"family_id"`
	UserID      int64     `json:"user_id"`
	Role        Role      `json:"role"`
	CoinBalance int64     `json:"coin_balance"`
	JoinedAt    time.Time `json:"joined_at"`
}

// FamilySummary is a family as seen by one of its members
type FamilySummary struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	MonthlyCoinBudget int64  `json:"monthly_coin_budget"`
	Role              Role   `json:"role"`
	CoinBalance       int64  `json:"coin_balance"`
}
