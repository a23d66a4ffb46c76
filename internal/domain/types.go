package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies what a user is allowed to do.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
)

// TransactionType partitions transactions (and categories) into money in and money out.
type TransactionType string

const (
	TypeIncome  TransactionType = "INCOME"
	TypeExpense TransactionType = "EXPENSE"
)

// Sentinel foreign-key values for records reconciled from names-only remote
// rows. Real ids are UUIDs, so these can never collide with one.
const (
	SyncedID      = "synced"
	UnknownUserID = "unknown"
)

// User is an account that can record or review transactions.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	Avatar   string `json:"avatar"`
	Password string `json:"password,omitempty"`
}

// IsManager reports whether the user holds the manager role.
func (u User) IsManager() bool {
	return u.Role == RoleManager
}

// Category is an accounting category, partitioned by transaction type.
// Inactive categories are kept for historical display but excluded from
// new-entry pickers.
type Category struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     TransactionType `json:"type"`
	IsActive bool            `json:"isActive"`
}

// ProjectDept is a project or department a transaction is attributed to.
type ProjectDept struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// PaymentMethod describes how a transaction was paid.
type PaymentMethod struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

// Transaction is the central record. Foreign-key ids are authoritative
// whenever they resolve in the current reference lists; the *Name fields are
// display caches filled in by cloud reconciliation and are advisory only.
type Transaction struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Summary       string          `json:"summary"`
	AttachmentURL string          `json:"attachmentUrl,omitempty"`
	HasTaxID      bool            `json:"hasTaxId"`

	PaymentMethodID string `json:"paymentMethodId"`
	CategoryID      string `json:"categoryId"`
	ProjectDeptID   string `json:"projectDeptId"`
	RecordedByID    string `json:"recordedById"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	CategoryName   string `json:"categoryName,omitempty"`
	ProjectName    string `json:"projectName,omitempty"`
	MethodName     string `json:"methodName,omitempty"`
	RecordedByName string `json:"recordedByName,omitempty"`
}

// RecordedBy reports whether the transaction was recorded by the given user.
// The match is by id; the cached display name is consulted only when the
// record carries the unresolved sentinel, which happens for rows reconciled
// from a names-only remote snapshot.
func (t Transaction) RecordedBy(u User) bool {
	if t.RecordedByID == u.ID {
		return true
	}
	return t.RecordedByID == UnknownUserID && t.RecordedByName != "" && t.RecordedByName == u.Name
}

// DateOnly is the calendar-date wire format used throughout.
const DateOnly = "2006-01-02"
