package storage

import "time"

// Invitation is a single-use registration token. The ID is issued
// out-of-band and carried as a query parameter in the registration link.
type Invitation struct {
	ID     string     `json:"id" db:"id"`
	Used   bool       `json:"used" db:"used"`
	UsedBy string     `json:"usedBy" db:"used_by"`
	UsedAt *time.Time `json:"usedAt" db:"used_at"`
}
