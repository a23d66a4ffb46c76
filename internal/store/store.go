package store

import (
	"github.com/ctrlix/bookkeeper/internal/domain"
)

// Store is the single owner of persisted state within a client. The
// reconciliation engine and the sync protocol read and write exclusively
// through this interface, never through the persistence medium directly.
//
// List getters never fail: they return a copy of the collection in insertion
// order, empty if the partition is uninitialized. Save operations are
// insert-or-replace by id and idempotent; deletes are no-ops when the id is
// absent. Replace operations bulk-overwrite a collection but MUST be a no-op
// when handed an empty slice, so a failed remote fetch can never wipe good
// local data.
type Store interface {
	Transactions() []domain.Transaction
	Transaction(id string) (domain.Transaction, bool)
	SaveTransaction(tx domain.Transaction) error
	DeleteTransaction(id string) error

	Categories() []domain.Category
	SaveCategory(c domain.Category) error
	DeleteCategory(id string) error
	ReplaceCategories(list []domain.Category) error

	Projects() []domain.ProjectDept
	SaveProject(p domain.ProjectDept) error
	DeleteProject(id string) error
	ReplaceProjects(list []domain.ProjectDept) error

	PaymentMethods() []domain.PaymentMethod
	SavePaymentMethod(m domain.PaymentMethod) error
	ReplacePaymentMethods(list []domain.PaymentMethod) error

	Users() []domain.User
	SaveUser(u domain.User) error
	DeleteUser(id string) error
	ReplaceUsers(list []domain.User) error

	CurrentUser() (domain.User, bool)
	SetCurrentUser(u domain.User) error
	ClearCurrentUser() error

	// Endpoint returns the remote endpoint URL, empty when sync is disabled.
	// It is re-read at the start of every sync attempt, so a change takes
	// effect on the next operation without a restart.
	Endpoint() string
	SetEndpoint(url string) error
}

// CategoryName resolves the display name for a transaction's category.
// The foreign key is authoritative whenever it resolves in the current
// reference list; the cached shadow name is the fallback for records
// reconciled from names-only remote rows.
func CategoryName(s Store, t domain.Transaction) string {
	if t.CategoryID == domain.SyncedID && t.CategoryName != "" {
		return t.CategoryName
	}
	for _, c := range s.Categories() {
		if c.ID == t.CategoryID {
			return c.Name
		}
	}
	if t.CategoryName != "" {
		return t.CategoryName
	}
	return t.CategoryID
}

// ProjectName resolves the display name for a transaction's project or
// department, falling back to the shadow name like CategoryName.
func ProjectName(s Store, t domain.Transaction) string {
	if t.ProjectDeptID == domain.SyncedID && t.ProjectName != "" {
		return t.ProjectName
	}
	for _, p := range s.Projects() {
		if p.ID == t.ProjectDeptID {
			return p.Name
		}
	}
	if t.ProjectName != "" {
		return t.ProjectName
	}
	return t.ProjectDeptID
}

// MethodName resolves the display name for a transaction's payment method.
func MethodName(s Store, t domain.Transaction) string {
	if t.PaymentMethodID == domain.SyncedID && t.MethodName != "" {
		return t.MethodName
	}
	for _, m := range s.PaymentMethods() {
		if m.ID == t.PaymentMethodID {
			return m.Name
		}
	}
	if t.MethodName != "" {
		return t.MethodName
	}
	return t.PaymentMethodID
}

// RecordedByName resolves the display name of the user who recorded the
// transaction. The cached name wins when present because remote snapshots
// carry names, not user ids.
func RecordedByName(s Store, t domain.Transaction) string {
	if t.RecordedByName != "" {
		return t.RecordedByName
	}
	for _, u := range s.Users() {
		if u.ID == t.RecordedByID {
			return u.Name
		}
	}
	return t.RecordedByID
}
