package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// BackupRecord holds the most recent financial-data snapshot for one user.
// Records are keyed by normalized email and overwrite each other, there is
// no history.
type BackupRecord struct {
	Email        string          `json:"email" gorm:"column:email"`
	Transactions json.RawMessage `json:"transactions,omitempty" gorm:"column:transactions"`
	FixedCosts   json.RawMessage `json:"fixed_costs,omitempty" gorm:"column:fixed_costs"`
	Payments     json.RawMessage `json:"payments,omitempty" gorm:"column:payments"`
	Version      string          `json:"version" gorm:"column:version"`
	LastBackup   time.Time       `json:"last_backup" gorm:"column:last_backup"`
}

// BackupSchemaVersion tags new snapshots so old clients can migrate on restore.
const BackupSchemaVersion = "1.0"

// NormalizeEmail canonicalizes an email for use as a vault key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BackupStats summarizes a snapshot for save/restore responses without
// shipping the payload back to the caller.
type BackupStats struct {
	Transactions int `json:"transactions"`
	FixedCosts   int `json:"fixed_costs"`
	Payments     int `json:"payments"`
}

// CountStats derives per-section element counts from the raw snapshot.
// Sections that are absent or not JSON arrays count as zero.
func (b *BackupRecord) CountStats() BackupStats {
	return BackupStats{
		Transactions: countArray(b.Transactions),
		FixedCosts:   countArray(b.FixedCosts),
		Payments:     countArray(b.Payments),
	}
}

func countArray(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0
	}
	return len(items)
}
