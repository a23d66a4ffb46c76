package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/store"
)

// Delivery selects how a remote replay is dispatched.
type Delivery int

const (
	// DeliveryAwaited blocks the caller until the remote acknowledges or the
	// request fails; failures surface as a *SyncError.
	DeliveryAwaited Delivery = iota

	// DeliveryDetached dispatches the replay in the background; failures are
	// logged only, never surfaced to the caller.
	DeliveryDetached
)

// ErrPermissionDenied marks a mutation rejected locally before any remote
// call was attempted.
var ErrPermissionDenied = errors.New("permission denied")

// ErrInvalidTransition marks a status change that would move the workflow
// backward or nowhere.
var ErrInvalidTransition = errors.New("invalid status transition")

// SyncError wraps a remote replay failure that happened after a successful
// local commit. The local state is intact; the caller should report the
// failure, not roll anything back.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: local commit kept, remote replay failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Service implements the optimistic sync protocol: every mutation commits to
// the local store synchronously and is then replayed to the remote system.
// The local commit is unconditional and never rolled back automatically.
//
// A per-transaction-id mutex serializes a client's own replay of a record
// with snapshot merges of the same record, so a just-issued status upgrade
// cannot interleave with a concurrent pull.
type Service struct {
	store      store.Store
	remote     RemoteService
	reconciler *Reconciler
	queue      *replayQueue
	log        zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the protocol over a store and a remote.
func NewService(st store.Store, remote RemoteService, log zerolog.Logger) *Service {
	return &Service{
		store:      st,
		remote:     remote,
		reconciler: NewReconciler(st),
		queue:      newReplayQueue(log),
		log:        log,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Close stops the detached replay worker, waiting briefly for in-flight work.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.queue.Stop(ctx)
}

func (s *Service) idLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *Service) withIDLock(id string, fn func() error) error {
	l := s.idLock(id)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// canModify applies the authorization rule for edits and deletes: managers
// may mutate anything; an employee may mutate only records they recorded and
// only while the record is still pending.
func canModify(actor domain.User, tx domain.Transaction) bool {
	if actor.IsManager() {
		return true
	}
	return tx.Status == domain.StatusPending && tx.RecordedBy(actor)
}

// SubmitTransaction creates or edits a transaction. The record is committed
// locally first and then replayed to the remote in its vocabulary, with
// display names resolved from the reference lists at replay time. A fresh id
// and creation timestamp are assigned to new records. The returned
// transaction reflects the local commit, including any canonical attachment
// reference written back from an awaited acknowledgment.
func (s *Service) SubmitTransaction(ctx context.Context, actor domain.User, tx domain.Transaction, mode Delivery) (domain.Transaction, error) {
	if tx.Amount.IsNegative() {
		return domain.Transaction{}, fmt.Errorf("amount must not be negative")
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
		tx.CreatedAt = time.Now()
		tx.Status = domain.StatusPending
	} else if existing, ok := s.store.Transaction(tx.ID); ok {
		if !canModify(actor, existing) {
			return domain.Transaction{}, fmt.Errorf("edit transaction %s: %w", tx.ID, ErrPermissionDenied)
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = existing.CreatedAt
		}
		// Edits never move the review state. Transitions go through
		// AdvanceStatus, which enforces the manager-only forward rule.
		tx.Status = existing.Status
	} else {
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now()
		}
		tx.Status = domain.NormalizeStatus(string(tx.Status))
	}
	tx.RecordedByID = actor.ID
	tx.RecordedByName = actor.Name

	if err := s.store.SaveTransaction(tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("saving transaction: %w", err)
	}

	if err := s.replayUpsert(ctx, tx.ID, mode); err != nil {
		return tx, err
	}
	if updated, ok := s.store.Transaction(tx.ID); ok {
		tx = updated
	}
	return tx, nil
}

// AdvanceStatus moves a transaction forward in the review workflow. Only
// managers may advance, and only in the forward direction.
func (s *Service) AdvanceStatus(ctx context.Context, actor domain.User, id string, next domain.Status, mode Delivery) error {
	if !actor.IsManager() {
		return fmt.Errorf("advance status of %s: %w", id, ErrPermissionDenied)
	}

	tx, ok := s.store.Transaction(id)
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	if !tx.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%s -> %s: %w", tx.Status, next, ErrInvalidTransition)
	}

	// The status write and the replay happen under the id lock so a snapshot
	// merge of this record cannot slip between them.
	err := s.withIDLock(id, func() error {
		tx.Status = next
		if err := s.store.SaveTransaction(tx); err != nil {
			return fmt.Errorf("saving status change: %w", err)
		}
		if mode == DeliveryDetached {
			return nil
		}
		return s.replayUpsertLocked(ctx, id)
	})
	if err != nil {
		return err
	}
	if mode == DeliveryDetached {
		s.enqueueUpsert(id)
	}
	return nil
}

// DeleteTransaction removes a record locally and replays the delete. The
// local delete is immediate and, from the user's perspective, irreversible:
// a remote failure is reported but never resurrects the record. The remote
// deletes by id, so replaying twice is harmless.
func (s *Service) DeleteTransaction(ctx context.Context, actor domain.User, id string, mode Delivery) error {
	if tx, ok := s.store.Transaction(id); ok {
		if !canModify(actor, tx) {
			return fmt.Errorf("delete transaction %s: %w", id, ErrPermissionDenied)
		}
	}

	if err := s.store.DeleteTransaction(id); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	replay := func(ctx context.Context) error {
		return s.remote.DeleteTransaction(ctx, id)
	}
	if mode == DeliveryDetached {
		s.queue.Enqueue(replayTask{entity: "transaction", id: id, run: replay})
		return nil
	}
	if err := replay(ctx); err != nil && !errors.Is(err, ErrNotConfigured) {
		return &SyncError{Op: "delete transaction", Err: err}
	}
	return nil
}

// replayUpsert dispatches the upsert replay for a committed record.
func (s *Service) replayUpsert(ctx context.Context, id string, mode Delivery) error {
	if mode == DeliveryDetached {
		s.enqueueUpsert(id)
		return nil
	}
	return s.withIDLock(id, func() error {
		return s.replayUpsertLocked(ctx, id)
	})
}

func (s *Service) enqueueUpsert(id string) {
	s.queue.Enqueue(replayTask{
		entity: "transaction",
		id:     id,
		run: func(ctx context.Context) error {
			return s.withIDLock(id, func() error {
				return s.replayUpsertLocked(ctx, id)
			})
		},
	})
}

// replayUpsertLocked builds the remote payload from the current local record
// and reference lists, posts it, and writes back a canonical attachment
// reference if the acknowledgment carries one. Callers hold the id lock.
func (s *Service) replayUpsertLocked(ctx context.Context, id string) error {
	tx, ok := s.store.Transaction(id)
	if !ok {
		// Deleted between commit and replay; nothing to send.
		return nil
	}

	payload := BuildTransactionUpsert(
		tx,
		store.CategoryName(s.store, tx),
		store.ProjectName(s.store, tx),
		store.MethodName(s.store, tx),
		store.RecordedByName(s.store, tx),
	)

	res, err := s.remote.UpsertTransaction(ctx, payload)
	if errors.Is(err, ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return &SyncError{Op: "upsert transaction", Err: err}
	}

	// The only case where a successful remote response mutates local state
	// outside of reconciliation: a durable attachment reference replacing a
	// transient inline one.
	if res.FileURL != "" && res.FileURL != tx.AttachmentURL {
		tx.AttachmentURL = res.FileURL
		if err := s.store.SaveTransaction(tx); err != nil {
			return fmt.Errorf("writing back attachment reference: %w", err)
		}
	}
	return nil
}

// AddCategory commits a reference entity locally and replays it. Reference
// data is low stakes, so callers normally pick detached delivery.
func (s *Service) AddCategory(ctx context.Context, actor domain.User, c domain.Category, mode Delivery) (domain.Category, error) {
	if !actor.IsManager() {
		return domain.Category{}, fmt.Errorf("add category: %w", ErrPermissionDenied)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.store.SaveCategory(c); err != nil {
		return domain.Category{}, fmt.Errorf("saving category: %w", err)
	}
	err := s.dispatch(ctx, mode, "category", c.ID, func(ctx context.Context) error {
		return s.remote.UpsertCategory(ctx, c)
	})
	return c, err
}

// DeleteCategory removes a category locally and replays the delete.
func (s *Service) DeleteCategory(ctx context.Context, actor domain.User, id string, mode Delivery) error {
	if !actor.IsManager() {
		return fmt.Errorf("delete category: %w", ErrPermissionDenied)
	}
	if err := s.store.DeleteCategory(id); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return s.dispatch(ctx, mode, "category", id, func(ctx context.Context) error {
		return s.remote.DeleteCategory(ctx, id)
	})
}

// AddProject commits a project locally and replays it.
func (s *Service) AddProject(ctx context.Context, actor domain.User, p domain.ProjectDept, mode Delivery) (domain.ProjectDept, error) {
	if !actor.IsManager() {
		return domain.ProjectDept{}, fmt.Errorf("add project: %w", ErrPermissionDenied)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.store.SaveProject(p); err != nil {
		return domain.ProjectDept{}, fmt.Errorf("saving project: %w", err)
	}
	err := s.dispatch(ctx, mode, "project", p.ID, func(ctx context.Context) error {
		return s.remote.UpsertProject(ctx, p)
	})
	return p, err
}

// DeleteProject removes a project locally and replays the delete.
func (s *Service) DeleteProject(ctx context.Context, actor domain.User, id string, mode Delivery) error {
	if !actor.IsManager() {
		return fmt.Errorf("delete project: %w", ErrPermissionDenied)
	}
	if err := s.store.DeleteProject(id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return s.dispatch(ctx, mode, "project", id, func(ctx context.Context) error {
		return s.remote.DeleteProject(ctx, id)
	})
}

// dispatch runs a replay in the requested delivery mode. Offline mode is a
// benign no-op either way.
func (s *Service) dispatch(ctx context.Context, mode Delivery, entity, id string, replay func(ctx context.Context) error) error {
	if mode == DeliveryDetached {
		s.queue.Enqueue(replayTask{entity: entity, id: id, run: replay})
		return nil
	}
	if err := replay(ctx); err != nil && !errors.Is(err, ErrNotConfigured) {
		return &SyncError{Op: "upsert " + entity, Err: err}
	}
	return nil
}

// Refresh pulls the remote snapshot and reconciles it into the local store.
// Employees pull their own records, managers the full set. Reference lists
// are refreshed afterwards with the replace-if-nonempty guard; their fetch
// failures are logged, not fatal, so a flaky reference read never aborts a
// good transaction merge. With no endpoint configured Refresh is a no-op and
// the local state is the answer.
func (s *Service) Refresh(ctx context.Context, actor domain.User) ([]domain.Transaction, error) {
	log := logger.FromContext(ctx)

	scope := ""
	if !actor.IsManager() {
		scope = actor.ID
	}

	table, err := s.remote.FetchTransactions(ctx, scope)
	if errors.Is(err, ErrNotConfigured) {
		return s.store.Transactions(), nil
	}
	if err != nil {
		return s.store.Transactions(), &SyncError{Op: "fetch transactions", Err: err}
	}

	txs, skipped := MapTransactionTable(table)
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("Skipped malformed rows in remote snapshot")
	}
	for _, tx := range txs {
		tx := tx
		if err := s.withIDLock(tx.ID, func() error {
			return s.reconciler.MergeTransaction(ctx, tx)
		}); err != nil {
			return s.store.Transactions(), err
		}
	}

	if cats, err := s.remote.FetchCategories(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh categories")
	} else if err := s.reconciler.ApplyCategories(ctx, cats); err != nil {
		return s.store.Transactions(), err
	}

	if projs, err := s.remote.FetchProjects(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh projects")
	} else if err := s.reconciler.ApplyProjects(ctx, projs); err != nil {
		return s.store.Transactions(), err
	}

	log.Info().Int("merged", len(txs)).Int("skipped", skipped).Msg("Remote snapshot reconciled")
	return s.store.Transactions(), nil
}

// RefreshUsers pulls the remote user list into the store, guarded against
// empty results. Used before login so cloud-managed accounts can sign in.
func (s *Service) RefreshUsers(ctx context.Context) error {
	users, err := s.remote.FetchUsers(ctx)
	if errors.Is(err, ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return &SyncError{Op: "fetch users", Err: err}
	}
	return s.reconciler.ApplyUsers(ctx, users)
}
