package inmemory

import (
	"fmt"
	"testing"

	"github.com/ctrlix/bookkeeper/internal/domain"
)

func TestNewStoreSeeds(t *testing.T) {
	s := NewStore()

	if got := len(s.Categories()); got != 5 {
		t.Errorf("expected 5 seeded categories, got %d", got)
	}
	if got := len(s.Users()); got != 1 {
		t.Fatalf("expected 1 seeded user, got %d", got)
	}
	if s.Users()[0].ID != domain.DefaultAdminID {
		t.Errorf("expected seeded admin, got %q", s.Users()[0].ID)
	}
	if got := len(s.Transactions()); got != 0 {
		t.Errorf("expected empty transactions, got %d", got)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	s := NewEmpty()
	for i := 0; i < 5; i++ {
		if err := s.SaveTransaction(domain.Transaction{ID: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	got := s.Transactions()
	for i, tx := range got {
		if want := fmt.Sprintf("t%d", i); tx.ID != want {
			t.Fatalf("position %d: got %q, want %q", i, tx.ID, want)
		}
	}
}

func TestGetterReturnsCopy(t *testing.T) {
	s := NewStore()
	cats := s.Categories()
	cats[0].Name = "mutated"

	if s.Categories()[0].Name == "mutated" {
		t.Error("Categories() must return a snapshot copy")
	}
}

func TestEnsureAdmin(t *testing.T) {
	s := NewEmpty()
	s.LoadUsers([]domain.User{
		{ID: "u1", Name: "Alice", Role: domain.RoleEmployee},
		{ID: domain.DefaultAdminID, Name: "Admin A", Role: domain.RoleManager},
		{ID: domain.DefaultAdminID, Name: "Admin B", Role: domain.RoleManager},
	})
	s.EnsureAdmin()

	var admins []domain.User
	for _, u := range s.Users() {
		if u.ID == domain.DefaultAdminID {
			admins = append(admins, u)
		}
	}
	if len(admins) != 1 {
		t.Fatalf("expected exactly one admin, got %d", len(admins))
	}
	if admins[0].Name != "Admin A" {
		t.Errorf("expected first admin entry kept, got %q", admins[0].Name)
	}

	empty := NewEmpty()
	empty.EnsureAdmin()
	if len(empty.Users()) != 1 || empty.Users()[0].ID != domain.DefaultAdminID {
		t.Error("expected default admin appended to empty user list")
	}
}

func TestReplaceEmptyGuard(t *testing.T) {
	s := NewStore()
	before := len(s.PaymentMethods())

	if err := s.ReplacePaymentMethods(nil); err != nil {
		t.Fatal(err)
	}
	if got := len(s.PaymentMethods()); got != before {
		t.Errorf("empty replace must be a no-op, got %d methods", got)
	}
}
