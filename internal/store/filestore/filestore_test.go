package filestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctrlix/bookkeeper/internal/domain"
)

func newTx(id string) domain.Transaction {
	return domain.Transaction{
		ID:              id,
		Date:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Type:            domain.TypeExpense,
		Amount:          decimal.NewFromInt(500),
		Summary:         "test",
		HasTaxID:        true,
		PaymentMethodID: "pm1",
		CategoryID:      "c3",
		ProjectDeptID:   "p1",
		RecordedByID:    "admin",
		Status:          domain.StatusPending,
		CreatedAt:       time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestOpenSeedsBootstrapData(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.Empty(t, s.Transactions())
	assert.Len(t, s.Categories(), 5)
	assert.Len(t, s.Projects(), 3)
	assert.Len(t, s.PaymentMethods(), 3)

	users := s.Users()
	require.Len(t, users, 1)
	assert.Equal(t, domain.DefaultAdminID, users[0].ID)
	assert.Equal(t, domain.RoleManager, users[0].Role)

	_, ok := s.CurrentUser()
	assert.False(t, ok)
	assert.Empty(t, s.Endpoint())
}

func TestSaveTransactionRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	tx := newTx("t-abc")
	require.NoError(t, s.SaveTransaction(tx))

	var matches []domain.Transaction
	for _, got := range s.Transactions() {
		if got.ID == tx.ID {
			matches = append(matches, got)
		}
	}
	require.Len(t, matches, 1)
	assert.Equal(t, tx.Summary, matches[0].Summary)
	assert.True(t, tx.Amount.Equal(matches[0].Amount))
	assert.Equal(t, tx.Status, matches[0].Status)

	// Save again with an edit: insert-or-replace, not append.
	tx.Summary = "edited"
	require.NoError(t, s.SaveTransaction(tx))
	assert.Len(t, s.Transactions(), 1)
	got, ok := s.Transaction(tx.ID)
	require.True(t, ok)
	assert.Equal(t, "edited", got.Summary)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveTransaction(newTx("t1")))
	require.NoError(t, s.SetEndpoint("https://script.example.com/exec"))
	require.NoError(t, s.SetCurrentUser(domain.DefaultAdmin()))

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Len(t, reopened.Transactions(), 1)
	assert.Equal(t, "https://script.example.com/exec", reopened.Endpoint())
	u, ok := reopened.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, domain.DefaultAdminID, u.ID)
}

func TestReplaceListEmptyIsNoOp(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	before := s.Categories()
	require.NoError(t, s.ReplaceCategories(nil))
	require.NoError(t, s.ReplaceCategories([]domain.Category{}))
	assert.Equal(t, before, s.Categories())

	projects := s.Projects()
	require.NoError(t, s.ReplaceProjects(nil))
	assert.Equal(t, projects, s.Projects())

	users := s.Users()
	require.NoError(t, s.ReplaceUsers(nil))
	assert.Equal(t, users, s.Users())
}

func TestReplaceListNonEmptyOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	next := []domain.Category{{ID: "c9", Name: "雜項", Type: domain.TypeExpense, IsActive: true}}
	require.NoError(t, s.ReplaceCategories(next))
	assert.Equal(t, next, s.Categories())

	reopened, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, next, reopened.Categories())
}

func TestDeleteAbsentIsNoOp(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.DeleteTransaction("missing"))
	require.NoError(t, s.DeleteCategory("missing"))
	require.NoError(t, s.DeleteProject("missing"))
	require.NoError(t, s.DeleteUser("missing"))
}

func TestAdminSurvivesUserListReplace(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	// A cloud user list without the admin replaces the local list.
	require.NoError(t, s.ReplaceUsers([]domain.User{
		{ID: "u1", Name: "Alice", Role: domain.RoleEmployee},
	}))

	// On the next open the fallback administrator is restored.
	reopened, err := Open(dir)
	require.NoError(t, err)

	var adminCount int
	for _, u := range reopened.Users() {
		if u.ID == domain.DefaultAdminID {
			adminCount++
		}
	}
	assert.Equal(t, 1, adminCount)
}

func TestClearCurrentUser(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.SetCurrentUser(domain.DefaultAdmin()))
	require.NoError(t, s.ClearCurrentUser())
	_, ok := s.CurrentUser()
	assert.False(t, ok)

	reopened, err := Open(dir)
	require.NoError(t, err)
	_, ok = reopened.CurrentUser()
	assert.False(t, ok)
}
