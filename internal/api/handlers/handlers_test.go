package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/extract"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
	"github.com/ctrlix/bookkeeper/internal/store/inmemory"
)

// stubRemote fails or succeeds wholesale; handler tests only care whether a
// replay outcome leaks into the HTTP status.
type stubRemote struct {
	upsertErr error
}

func (s *stubRemote) UpsertTransaction(ctx context.Context, p sheetsync.TransactionUpsert) (*sheetsync.UpsertResult, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	return &sheetsync.UpsertResult{Result: "success"}, nil
}

func (s *stubRemote) DeleteTransaction(ctx context.Context, id string) error       { return nil }
func (s *stubRemote) UpsertCategory(ctx context.Context, c domain.Category) error  { return nil }
func (s *stubRemote) DeleteCategory(ctx context.Context, id string) error          { return nil }
func (s *stubRemote) UpsertProject(ctx context.Context, p domain.ProjectDept) error { return nil }
func (s *stubRemote) DeleteProject(ctx context.Context, id string) error           { return nil }
func (s *stubRemote) FetchUsers(ctx context.Context) ([]domain.User, error)        { return nil, nil }
func (s *stubRemote) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	return nil, nil
}
func (s *stubRemote) FetchProjects(ctx context.Context) ([]domain.ProjectDept, error) {
	return nil, nil
}
func (s *stubRemote) FetchTransactions(ctx context.Context, userID string) (*sheetsync.TransactionTable, error) {
	return &sheetsync.TransactionTable{}, nil
}

type stubExtractor struct {
	result extract.Extraction
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, imageDataURL string) (extract.Extraction, error) {
	return s.result, s.err
}

func newTestHandler(t *testing.T, remote sheetsync.RemoteService) (*Handler, *inmemory.Store, *sheetsync.Service) {
	t.Helper()
	st := inmemory.NewStore()
	log := logger.New()
	svc := sheetsync.NewService(st, remote, log)
	t.Cleanup(func() { svc.Close() })
	return NewHandler(st, svc, &stubExtractor{}, log), st, svc
}

func signIn(t *testing.T, st *inmemory.Store, u domain.User) {
	t.Helper()
	if err := st.SaveUser(u); err != nil {
		t.Fatalf("SaveUser returned error: %v", err)
	}
	if err := st.SetCurrentUser(u); err != nil {
		t.Fatalf("SetCurrentUser returned error: %v", err)
	}
}

var (
	testManager  = domain.User{ID: "m1", Name: "陳經理", Role: domain.RoleManager, Password: "pw"}
	testEmployee = domain.User{ID: "e1", Name: "王小明", Role: domain.RoleEmployee, Password: "pw"}
)

func doJSON(t *testing.T, h *Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	if err := st.SaveUser(testEmployee); err != nil {
		t.Fatalf("SaveUser returned error: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/login", map[string]string{
		"name": "王小明", "password": "pw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var u domain.User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if u.ID != "e1" {
		t.Errorf("Expected e1, got %s", u.ID)
	}
	if u.Password != "" {
		t.Error("Expected password stripped from response")
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubRemote{})
	rec := doJSON(t, h, http.MethodPost, "/api/login", map[string]string{
		"name": "nobody", "password": "x",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	h, _, _ := newTestHandler(t, &stubRemote{})
	rec := doJSON(t, h, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestCreateTransaction(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testEmployee)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"type":    "EXPENSE",
		"amount":  "120.5",
		"summary": "辦公室咖啡",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Transaction domain.Transaction `json:"transaction"`
		Synced      bool               `json:"synced"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Synced {
		t.Error("Expected synced=true")
	}
	if resp.Transaction.ID == "" {
		t.Error("Expected generated id")
	}
	if _, ok := st.Transaction(resp.Transaction.ID); !ok {
		t.Error("Expected local commit")
	}
}

func TestCreateTransaction_RemoteDownStillCommits(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{upsertErr: context.DeadlineExceeded})
	signIn(t, st, testEmployee)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount": "10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201 despite replay failure, got %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Transaction domain.Transaction `json:"transaction"`
		Synced      bool               `json:"synced"`
		SyncError   string             `json:"syncError"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Synced {
		t.Error("Expected synced=false")
	}
	if resp.SyncError == "" {
		t.Error("Expected replay failure message")
	}
	if _, ok := st.Transaction(resp.Transaction.ID); !ok {
		t.Error("Expected local commit despite replay failure")
	}
}

func TestCreateTransaction_NegativeAmount(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testEmployee)

	rec := doJSON(t, h, http.MethodPost, "/api/transactions", map[string]interface{}{
		"amount": "-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestAdvanceStatus_EmployeeForbidden(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testEmployee)
	if err := st.SaveTransaction(domain.Transaction{ID: "tx-1", Status: domain.StatusPending}); err != nil {
		t.Fatalf("SaveTransaction returned error: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/transactions/tx-1/status", map[string]string{
		"status": "APPROVED",
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestAdvanceStatus_LocalizedLabel(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testManager)
	if err := st.SaveTransaction(domain.Transaction{ID: "tx-1", Status: domain.StatusPending}); err != nil {
		t.Fatalf("SaveTransaction returned error: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/transactions/tx-1/status", map[string]string{
		"status": "已審核",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}

	got, _ := st.Transaction("tx-1")
	if got.Status != domain.StatusApproved {
		t.Errorf("Expected APPROVED, got %s", got.Status)
	}
}

func TestAdvanceStatus_BackwardConflict(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testManager)
	if err := st.SaveTransaction(domain.Transaction{ID: "tx-1", Status: domain.StatusBooked}); err != nil {
		t.Fatalf("SaveTransaction returned error: %v", err)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/transactions/tx-1/status", map[string]string{
		"status": "PENDING",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
}

func TestDeleteTransaction_Forbidden(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testEmployee)
	if err := st.SaveTransaction(domain.Transaction{ID: "tx-1", RecordedByID: "someone-else", Status: domain.StatusPending}); err != nil {
		t.Fatalf("SaveTransaction returned error: %v", err)
	}

	rec := doJSON(t, h, http.MethodDelete, "/api/transactions/tx-1", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestListTransactions_EmployeeSeesOwnOnly(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testEmployee)

	for _, tx := range []domain.Transaction{
		{ID: "own", RecordedByID: testEmployee.ID, Status: domain.StatusPending},
		{ID: "other", RecordedByID: "someone-else", Status: domain.StatusPending},
		{ID: "synced-own", RecordedByID: domain.UnknownUserID, RecordedByName: testEmployee.Name, Status: domain.StatusPending},
	} {
		if err := st.SaveTransaction(tx); err != nil {
			t.Fatalf("SaveTransaction returned error: %v", err)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Transactions []domain.Transaction `json:"transactions"`
		Count        int                  `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("Expected own and name-matched records only, got %d", resp.Count)
	}
	for _, tx := range resp.Transactions {
		if tx.ID == "other" {
			t.Error("Expected other user's record filtered out")
		}
	}
}

func TestCategories_ManagerLifecycle(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testManager)

	rec := doJSON(t, h, http.MethodPost, "/api/categories", map[string]interface{}{
		"name": "差旅", "type": "EXPENSE", "isActive": true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
	}

	var c domain.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if c.ID == "" {
		t.Fatal("Expected generated id")
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/categories/"+c.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	for _, got := range st.Categories() {
		if got.ID == c.ID {
			t.Error("Expected category deleted")
		}
	}
}

func TestCategories_EmployeeForbidden(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testEmployee)

	rec := doJSON(t, h, http.MethodPost, "/api/categories", map[string]interface{}{"name": "x"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func TestExtractReceipt_FailureDegradesToEmpty(t *testing.T) {
	st := inmemory.NewStore()
	log := logger.New()
	svc := sheetsync.NewService(st, &stubRemote{}, log)
	t.Cleanup(func() { svc.Close() })
	h := NewHandler(st, svc, &stubExtractor{err: context.DeadlineExceeded}, log)
	signIn(t, st, testEmployee)

	rec := doJSON(t, h, http.MethodPost, "/api/extract", map[string]string{
		"image": "data:image/jpeg;base64,aGVsbG8=",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var ex extract.Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &ex); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !ex.Empty() {
		t.Errorf("Expected empty extraction on failure, got %+v", ex)
	}
}

func TestExtractReceipt_Success(t *testing.T) {
	st := inmemory.NewStore()
	log := logger.New()
	svc := sheetsync.NewService(st, &stubRemote{}, log)
	t.Cleanup(func() { svc.Close() })
	want := extract.Extraction{Amount: decimal.NewFromInt(120), Summary: "咖啡"}
	h := NewHandler(st, svc, &stubExtractor{result: want}, log)
	signIn(t, st, testEmployee)

	rec := doJSON(t, h, http.MethodPost, "/api/extract", map[string]string{
		"image": "data:image/jpeg;base64,aGVsbG8=",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var ex extract.Extraction
	if err := json.Unmarshal(rec.Body.Bytes(), &ex); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !ex.Amount.Equal(want.Amount) || ex.Summary != want.Summary {
		t.Errorf("Unexpected extraction: %+v", ex)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	h, st, _ := newTestHandler(t, &stubRemote{})
	signIn(t, st, testManager)

	rec := doJSON(t, h, http.MethodPut, "/api/config", map[string]string{
		"endpoint": "https://script.example/exec",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if st.Endpoint() != "https://script.example/exec" {
		t.Errorf("Expected endpoint saved, got %q", st.Endpoint())
	}

	rec = doJSON(t, h, http.MethodGet, "/api/config", nil)
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["endpoint"] != "https://script.example/exec" {
		t.Errorf("Unexpected config: %v", resp)
	}
}
