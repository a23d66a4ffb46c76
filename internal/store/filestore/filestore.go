package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/store"
	"github.com/ctrlix/bookkeeper/internal/store/inmemory"
)

// Partition file names. Each partition is independently readable and
// writable, mirroring the named slots of the browser-storage layout this
// store replaces.
const (
	transactionsFile   = "transactions.json"
	categoriesFile     = "categories.json"
	projectsFile       = "projects.json"
	paymentMethodsFile = "payment_methods.json"
	usersFile          = "users.json"
	sessionFile        = "session.json"
	configFile         = "config.json"
)

type configPartition struct {
	Endpoint string `json:"endpoint"`
}

// Store is the durable implementation of store.Store. State lives in memory
// and every mutation synchronously rewrites the affected partition file, so
// writes are immediately visible to subsequent reads in the same process and
// survive restarts.
type Store struct {
	dir string
	mu  sync.Mutex
	mem *inmemory.Store
}

// Open loads the store from dir, creating and seeding any missing partition.
// A partition that exists but cannot be decoded is an error: the store must
// always succeed against its own medium or the application cannot function.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	s := &Store{dir: dir, mem: inmemory.NewEmpty()}

	var txs []domain.Transaction
	loaded, err := s.readPartition(transactionsFile, &txs)
	if err != nil {
		return nil, err
	}
	if loaded {
		s.mem.LoadTransactions(txs)
	} else if err := s.writePartition(transactionsFile, []domain.Transaction{}); err != nil {
		return nil, err
	}

	var cats []domain.Category
	if loaded, err = s.readPartition(categoriesFile, &cats); err != nil {
		return nil, err
	} else if loaded {
		s.mem.LoadCategories(cats)
	} else {
		s.mem.LoadCategories(domain.SeedCategories())
		if err := s.writePartition(categoriesFile, s.mem.Categories()); err != nil {
			return nil, err
		}
	}

	var projs []domain.ProjectDept
	if loaded, err = s.readPartition(projectsFile, &projs); err != nil {
		return nil, err
	} else if loaded {
		s.mem.LoadProjects(projs)
	} else {
		s.mem.LoadProjects(domain.SeedProjects())
		if err := s.writePartition(projectsFile, s.mem.Projects()); err != nil {
			return nil, err
		}
	}

	var methods []domain.PaymentMethod
	if loaded, err = s.readPartition(paymentMethodsFile, &methods); err != nil {
		return nil, err
	} else if loaded {
		s.mem.LoadPaymentMethods(methods)
	} else {
		s.mem.LoadPaymentMethods(domain.SeedPaymentMethods())
		if err := s.writePartition(paymentMethodsFile, s.mem.PaymentMethods()); err != nil {
			return nil, err
		}
	}

	var users []domain.User
	if _, err = s.readPartition(usersFile, &users); err != nil {
		return nil, err
	}
	s.mem.LoadUsers(users)
	s.mem.EnsureAdmin()
	if err := s.writePartition(usersFile, s.mem.Users()); err != nil {
		return nil, err
	}

	var session domain.User
	if loaded, err = s.readPartition(sessionFile, &session); err != nil {
		return nil, err
	} else if loaded && session.ID != "" {
		if err := s.mem.SetCurrentUser(session); err != nil {
			return nil, err
		}
	}

	var cfg configPartition
	if loaded, err = s.readPartition(configFile, &cfg); err != nil {
		return nil, err
	} else if loaded {
		if err := s.mem.SetEndpoint(cfg.Endpoint); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) readPartition(name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) writePartition(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func (s *Store) Transactions() []domain.Transaction          { return s.mem.Transactions() }
func (s *Store) Transaction(id string) (domain.Transaction, bool) { return s.mem.Transaction(id) }

func (s *Store) SaveTransaction(tx domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SaveTransaction(tx); err != nil {
		return err
	}
	return s.writePartition(transactionsFile, s.mem.Transactions())
}

func (s *Store) DeleteTransaction(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteTransaction(id); err != nil {
		return err
	}
	return s.writePartition(transactionsFile, s.mem.Transactions())
}

func (s *Store) Categories() []domain.Category { return s.mem.Categories() }

func (s *Store) SaveCategory(c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SaveCategory(c); err != nil {
		return err
	}
	return s.writePartition(categoriesFile, s.mem.Categories())
}

func (s *Store) DeleteCategory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteCategory(id); err != nil {
		return err
	}
	return s.writePartition(categoriesFile, s.mem.Categories())
}

func (s *Store) ReplaceCategories(list []domain.Category) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.ReplaceCategories(list); err != nil {
		return err
	}
	return s.writePartition(categoriesFile, s.mem.Categories())
}

func (s *Store) Projects() []domain.ProjectDept { return s.mem.Projects() }

func (s *Store) SaveProject(p domain.ProjectDept) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SaveProject(p); err != nil {
		return err
	}
	return s.writePartition(projectsFile, s.mem.Projects())
}

func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteProject(id); err != nil {
		return err
	}
	return s.writePartition(projectsFile, s.mem.Projects())
}

func (s *Store) ReplaceProjects(list []domain.ProjectDept) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.ReplaceProjects(list); err != nil {
		return err
	}
	return s.writePartition(projectsFile, s.mem.Projects())
}

func (s *Store) PaymentMethods() []domain.PaymentMethod { return s.mem.PaymentMethods() }

func (s *Store) SavePaymentMethod(m domain.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SavePaymentMethod(m); err != nil {
		return err
	}
	return s.writePartition(paymentMethodsFile, s.mem.PaymentMethods())
}

func (s *Store) ReplacePaymentMethods(list []domain.PaymentMethod) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.ReplacePaymentMethods(list); err != nil {
		return err
	}
	return s.writePartition(paymentMethodsFile, s.mem.PaymentMethods())
}

func (s *Store) Users() []domain.User { return s.mem.Users() }

func (s *Store) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SaveUser(u); err != nil {
		return err
	}
	return s.writePartition(usersFile, s.mem.Users())
}

func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.DeleteUser(id); err != nil {
		return err
	}
	return s.writePartition(usersFile, s.mem.Users())
}

func (s *Store) ReplaceUsers(list []domain.User) error {
	if len(list) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.ReplaceUsers(list); err != nil {
		return err
	}
	return s.writePartition(usersFile, s.mem.Users())
}

func (s *Store) CurrentUser() (domain.User, bool) { return s.mem.CurrentUser() }

func (s *Store) SetCurrentUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SetCurrentUser(u); err != nil {
		return err
	}
	return s.writePartition(sessionFile, u)
}

func (s *Store) ClearCurrentUser() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.ClearCurrentUser(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, sessionFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", sessionFile, err)
	}
	return nil
}

func (s *Store) Endpoint() string { return s.mem.Endpoint() }

func (s *Store) SetEndpoint(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mem.SetEndpoint(url); err != nil {
		return err
	}
	return s.writePartition(configFile, configPartition{Endpoint: url})
}

// Ensure Store implements the store interface.
var _ store.Store = (*Store)(nil)
