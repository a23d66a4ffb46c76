package inmemory

import (
	"sync"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/store"
)

// Store is an in-memory implementation of store.Store. It keeps collections
// as slices so insertion order survives round-trips, and is safe for
// concurrent use. Data is lost on process exit; for durability use the
// filestore implementation.
type Store struct {
	mu sync.RWMutex

	transactions   []domain.Transaction
	categories     []domain.Category
	projects       []domain.ProjectDept
	paymentMethods []domain.PaymentMethod
	users          []domain.User

	session    domain.User
	hasSession bool
	endpoint   string
}

// NewStore creates an in-memory store seeded with the bootstrap datasets and
// the default administrator.
func NewStore() *Store {
	s := NewEmpty()
	s.categories = domain.SeedCategories()
	s.projects = domain.SeedProjects()
	s.paymentMethods = domain.SeedPaymentMethods()
	s.users = []domain.User{domain.DefaultAdmin()}
	return s
}

// NewEmpty creates an in-memory store with no seed data. Callers that load
// previously persisted partitions use this and then EnsureAdmin.
func NewEmpty() *Store {
	return &Store{}
}

// EnsureAdmin guarantees exactly one administrator account exists: duplicate
// entries with the admin id are dropped and the default admin is appended if
// none is present.
func (s *Store) EnsureAdmin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.users[:0]
	seen := false
	for _, u := range s.users {
		if u.ID == domain.DefaultAdminID {
			if seen {
				continue
			}
			seen = true
		}
		kept = append(kept, u)
	}
	s.users = kept
	if !seen {
		s.users = append(s.users, domain.DefaultAdmin())
	}
}

func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

func (s *Store) Transaction(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Transaction{}, false
}

func (s *Store) SaveTransaction(tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID == tx.ID {
			s.transactions[i] = tx
			return nil
		}
	}
	s.transactions = append(s.transactions, tx)
	return nil
}

func (s *Store) DeleteTransaction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) Categories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Store) SaveCategory(c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, got := range s.categories {
		if got.ID == c.ID {
			s.categories[i] = c
			return nil
		}
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) DeleteCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ReplaceCategories(list []domain.Category) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = make([]domain.Category, len(list))
	copy(s.categories, list)
	return nil
}

func (s *Store) Projects() []domain.ProjectDept {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProjectDept, len(s.projects))
	copy(out, s.projects)
	return out
}

func (s *Store) SaveProject(p domain.ProjectDept) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, got := range s.projects {
		if got.ID == p.ID {
			s.projects[i] = p
			return nil
		}
	}
	s.projects = append(s.projects, p)
	return nil
}

func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.projects {
		if p.ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ReplaceProjects(list []domain.ProjectDept) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = make([]domain.ProjectDept, len(list))
	copy(s.projects, list)
	return nil
}

func (s *Store) PaymentMethods() []domain.PaymentMethod {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PaymentMethod, len(s.paymentMethods))
	copy(out, s.paymentMethods)
	return out
}

func (s *Store) SavePaymentMethod(m domain.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, got := range s.paymentMethods {
		if got.ID == m.ID {
			s.paymentMethods[i] = m
			return nil
		}
	}
	s.paymentMethods = append(s.paymentMethods, m)
	return nil
}

func (s *Store) ReplacePaymentMethods(list []domain.PaymentMethod) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethods = make([]domain.PaymentMethod, len(list))
	copy(s.paymentMethods, list)
	return nil
}

func (s *Store) Users() []domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, len(s.users))
	copy(out, s.users)
	return out
}

func (s *Store) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, got := range s.users {
		if got.ID == u.ID {
			s.users[i] = u
			return nil
		}
	}
	s.users = append(s.users, u)
	return nil
}

func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, u := range s.users {
		if u.ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) ReplaceUsers(list []domain.User) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make([]domain.User, len(list))
	copy(s.users, list)
	return nil
}

func (s *Store) CurrentUser() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.hasSession
}

func (s *Store) SetCurrentUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = u
	s.hasSession = true
	return nil
}

func (s *Store) ClearCurrentUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = domain.User{}
	s.hasSession = false
	return nil
}

func (s *Store) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

func (s *Store) SetEndpoint(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = url
	return nil
}

// Load helpers used by durable wrappers to install previously persisted
// partitions without triggering the empty-slice replace guard.

func (s *Store) LoadTransactions(list []domain.Transaction) { s.mu.Lock(); s.transactions = list; s.mu.Unlock() }
func (s *Store) LoadCategories(list []domain.Category)      { s.mu.Lock(); s.categories = list; s.mu.Unlock() }
func (s *Store) LoadProjects(list []domain.ProjectDept)     { s.mu.Lock(); s.projects = list; s.mu.Unlock() }
func (s *Store) LoadPaymentMethods(list []domain.PaymentMethod) {
	s.mu.Lock()
	s.paymentMethods = list
	s.mu.Unlock()
}
func (s *Store) LoadUsers(list []domain.User) { s.mu.Lock(); s.users = list; s.mu.Unlock() }

// Ensure Store implements the store interface.
var _ store.Store = (*Store)(nil)
