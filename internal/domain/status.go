package domain

import "strings"

// Status is the canonical workflow state of a transaction.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusBooked   Status = "BOOKED"
)

// Localized status labels as they appear in spreadsheet cells.
const (
	labelPending  = "待審核"
	labelApproved = "已審核"
	labelBooked   = "已入帳"
)

// NormalizeStatus maps a raw status token from any external source into the
// canonical tri-state status. It accepts enum tokens in any case and the
// localized labels. Unrecognized input, including the empty string, maps to
// PENDING: unknown is always the least-privileged state, never silently
// treated as further along.
func NormalizeStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(StatusApproved), labelApproved:
		return StatusApproved
	case string(StatusBooked), labelBooked:
		return StatusBooked
	default:
		return StatusPending
	}
}

// Localized returns the display label for a status.
func (s Status) Localized() string {
	switch s {
	case StatusApproved:
		return labelApproved
	case StatusBooked:
		return labelBooked
	default:
		return labelPending
	}
}

// rank orders the workflow states. Higher means further along.
func (s Status) rank() int {
	switch s {
	case StatusBooked:
		return 2
	case StatusApproved:
		return 1
	default:
		return 0
	}
}

// CanAdvanceTo reports whether moving from s to next is a forward workflow
// transition (PENDING -> APPROVED -> BOOKED, skipping allowed, never backward).
func (s Status) CanAdvanceTo(next Status) bool {
	return next.rank() > s.rank()
}
