package models

import "time"

// ReasonActivityApproved is the ledger reason written when an activity is approved
const ReasonActivityApproved = "activity_approved"

// LedgerEntry is one immutable coin movement
type LedgerEntry struct {
	ID         int64     `json:"id"`
	FamilyID   int64     `json:"family_id"`
	UserID     int64     `json:"user_id"`
	ActivityID int64     `json:"activity_id"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// BalanceCheck compares a cached membership balance with its ledger total
type BalanceCheck struct {
	FamilyID    int64 `json:"family_id"`
	UserID      int64 `json:"user_id"`
	CoinBalance int64 `json:"coin_balance"`
	LedgerTotal int64 `json:"ledger_total"`
}

// Consistent reports whether the cached balance matches the ledger
func (b BalanceCheck) Consistent() bool {
	return b.CoinBalance == b.LedgerTotal
}
