package sheetsync

import (
	"context"
	"fmt"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/store"
)

// Reconciler folds remote snapshots into the local store without losing
// local-only data. It never deletes a local record: remote snapshots may be
// partial, paginated or filtered, so absence from a snapshot means nothing.
// Deletion only ever results from an explicit delete action.
type Reconciler struct {
	store store.Store
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(st store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// MergeTransaction folds one remote transaction into the store.
//
// A record unknown locally is inserted verbatim: the remote is authoritative
// for rows the client has never seen. For a known record only the status and
// the non-empty shadow display names are taken from the remote row; every
// other local field is preserved, notably the attachment reference, which the
// remote schema may not carry back.
//
// The remote status overwrites the local one unconditionally. This is a
// deliberate policy, not an accident: conflicting concurrent edits from two
// clients resolve last-write-wins at the remote layer, and this rule inherits
// that semantics. The known risk is a stale remote read clobbering a local
// status upgrade still in flight, which is why the sync service serializes
// own-status writes and snapshot merges per transaction id.
func (r *Reconciler) MergeTransaction(ctx context.Context, remote domain.Transaction) error {
	remote.Status = domain.NormalizeStatus(string(remote.Status))

	local, ok := r.store.Transaction(remote.ID)
	if !ok {
		if err := r.store.SaveTransaction(remote); err != nil {
			return fmt.Errorf("MergeTransaction: inserting %s: %w", remote.ID, err)
		}
		return nil
	}

	local.Status = remote.Status
	if remote.CategoryName != "" {
		local.CategoryName = remote.CategoryName
	}
	if remote.ProjectName != "" {
		local.ProjectName = remote.ProjectName
	}
	if remote.MethodName != "" {
		local.MethodName = remote.MethodName
	}
	if remote.RecordedByName != "" {
		local.RecordedByName = remote.RecordedByName
	}

	if err := r.store.SaveTransaction(local); err != nil {
		return fmt.Errorf("MergeTransaction: updating %s: %w", remote.ID, err)
	}
	return nil
}

// MergeTransactions folds a remote snapshot into the store record by record.
func (r *Reconciler) MergeTransactions(ctx context.Context, remote []domain.Transaction) error {
	for _, tx := range remote {
		if err := r.MergeTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// MergeTable maps a raw tabular snapshot and folds it in, skipping malformed
// rows instead of aborting the merge.
func (r *Reconciler) MergeTable(ctx context.Context, table *TransactionTable) error {
	log := logger.FromContext(ctx)

	txs, skipped := MapTransactionTable(table)
	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Msg("Skipped malformed rows in remote snapshot")
	}
	return r.MergeTransactions(ctx, txs)
}

// ApplyCategories reconciles the remote category list: a full replace guarded
// by the store's empty-list no-op, so a failed or empty fetch cannot wipe
// good local data.
func (r *Reconciler) ApplyCategories(ctx context.Context, list []domain.Category) error {
	return r.store.ReplaceCategories(list)
}

// ApplyProjects reconciles the remote project list, same guard as categories.
func (r *Reconciler) ApplyProjects(ctx context.Context, list []domain.ProjectDept) error {
	return r.store.ReplaceProjects(list)
}

// ApplyUsers reconciles the remote user list, same guard.
func (r *Reconciler) ApplyUsers(ctx context.Context, list []domain.User) error {
	return r.store.ReplaceUsers(list)
}
