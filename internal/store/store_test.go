package store_test

import (
	"testing"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/store"
	"github.com/ctrlix/bookkeeper/internal/store/inmemory"
)

func TestCategoryName_ResolvesByID(t *testing.T) {
	st := inmemory.NewStore()
	tx := domain.Transaction{CategoryID: "c3"}
	if got := store.CategoryName(st, tx); got != "員工伙食" {
		t.Errorf("Expected 員工伙食, got %q", got)
	}
}

func TestCategoryName_SentinelFallsBackToShadowName(t *testing.T) {
	st := inmemory.NewStore()
	tx := domain.Transaction{CategoryID: domain.SyncedID, CategoryName: "雜項"}
	if got := store.CategoryName(st, tx); got != "雜項" {
		t.Errorf("Expected shadow name, got %q", got)
	}
}

func TestCategoryName_UnknownIDFallsBackToShadowThenID(t *testing.T) {
	st := inmemory.NewStore()

	tx := domain.Transaction{CategoryID: "missing", CategoryName: "舊分類"}
	if got := store.CategoryName(st, tx); got != "舊分類" {
		t.Errorf("Expected shadow name for unresolvable id, got %q", got)
	}

	tx = domain.Transaction{CategoryID: "missing"}
	if got := store.CategoryName(st, tx); got != "missing" {
		t.Errorf("Expected raw id as last resort, got %q", got)
	}
}

func TestProjectAndMethodNameFallback(t *testing.T) {
	st := inmemory.NewStore()

	tx := domain.Transaction{
		ProjectDeptID:   domain.SyncedID,
		ProjectName:     "業務部",
		PaymentMethodID: "pm2",
	}
	if got := store.ProjectName(st, tx); got != "業務部" {
		t.Errorf("Expected shadow project name, got %q", got)
	}
	if got := store.MethodName(st, tx); got != "公司信用卡" {
		t.Errorf("Expected method resolved by id, got %q", got)
	}
}

func TestRecordedByName_ShadowNameWins(t *testing.T) {
	st := inmemory.NewEmpty()
	if err := st.SaveUser(domain.User{ID: "u1", Name: "王小明"}); err != nil {
		t.Fatalf("SaveUser returned error: %v", err)
	}

	tx := domain.Transaction{RecordedByID: domain.UnknownUserID, RecordedByName: "雲端使用者"}
	if got := store.RecordedByName(st, tx); got != "雲端使用者" {
		t.Errorf("Expected shadow name, got %q", got)
	}

	tx = domain.Transaction{RecordedByID: "u1"}
	if got := store.RecordedByName(st, tx); got != "王小明" {
		t.Errorf("Expected user list lookup, got %q", got)
	}
}
