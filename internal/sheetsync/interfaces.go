package sheetsync

import (
	"context"
	"errors"

	"github.com/ctrlix/bookkeeper/internal/domain"
)

// ErrNotConfigured is returned by every remote operation when no endpoint is
// set. It marks valid offline mode, not a failure: callers short-circuit to a
// no-op or empty result.
var ErrNotConfigured = errors.New("remote endpoint not configured")

// UpsertResult is the acknowledgment of a remote write. FileURL carries the
// durable attachment reference when the remote side re-hosted an inline
// image; it is empty otherwise.
type UpsertResult struct {
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
	FileURL string `json:"fileUrl,omitempty"`
}

// TransactionTable is the tabular read payload for transactions: a header row
// plus data rows that must be column-mapped in the fixed column order.
type TransactionTable struct {
	Headers []string        `json:"headers"`
	Data    [][]interface{} `json:"data"`
}

// RemoteService is the interface to the spreadsheet-backed endpoint.
// Writes are upsert/delete-by-id, so replaying the same mutation twice leaves
// the remote collection unchanged. This interface enables mocking and testing
// of every sync path.
type RemoteService interface {
	// UpsertTransaction creates or replaces the remote row keyed by the
	// transaction id.
	UpsertTransaction(ctx context.Context, p TransactionUpsert) (*UpsertResult, error)

	// DeleteTransaction removes the remote row by id. Deleting an id that is
	// already gone is a success.
	DeleteTransaction(ctx context.Context, id string) error

	UpsertCategory(ctx context.Context, c domain.Category) error
	DeleteCategory(ctx context.Context, id string) error

	UpsertProject(ctx context.Context, p domain.ProjectDept) error
	DeleteProject(ctx context.Context, id string) error

	FetchUsers(ctx context.Context) ([]domain.User, error)
	FetchCategories(ctx context.Context) ([]domain.Category, error)
	FetchProjects(ctx context.Context) ([]domain.ProjectDept, error)

	// FetchTransactions returns the remote transaction snapshot, optionally
	// scoped to the records of one requesting user. The snapshot may be
	// partial; absence of a row never implies deletion.
	FetchTransactions(ctx context.Context, userID string) (*TransactionTable, error)
}
