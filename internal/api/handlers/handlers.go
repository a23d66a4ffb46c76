package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ctrlix/bookkeeper/internal/api/middleware"
	"github.com/ctrlix/bookkeeper/internal/auth"
	"github.com/ctrlix/bookkeeper/internal/domain"
	"github.com/ctrlix/bookkeeper/internal/extract"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
	"github.com/ctrlix/bookkeeper/internal/store"
)

// Handler serves the local bookkeeping API. Every mutation goes through the
// sync service, so remote replay failures never block the response: the
// local commit is reported with synced=false and the failure message.
type Handler struct {
	store     store.Store
	sync      *sheetsync.Service
	extractor extract.ReceiptExtractor
	log       zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(st store.Store, sync *sheetsync.Service, extractor extract.ReceiptExtractor, log zerolog.Logger) *Handler {
	return &Handler{store: st, sync: sync, extractor: extractor, log: log}
}

// Routes mounts all endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)
	r.Get("/api/session", h.Session)

	r.Get("/api/transactions", h.ListTransactions)
	r.Post("/api/transactions", h.SaveTransaction)
	r.Put("/api/transactions/{id}", h.SaveTransaction)
	r.Delete("/api/transactions/{id}", h.DeleteTransaction)
	r.Post("/api/transactions/{id}/status", h.AdvanceStatus)

	r.Post("/api/sync", h.Sync)

	r.Get("/api/categories", h.ListCategories)
	r.Post("/api/categories", h.AddCategory)
	r.Delete("/api/categories/{id}", h.DeleteCategory)

	r.Get("/api/projects", h.ListProjects)
	r.Post("/api/projects", h.AddProject)
	r.Delete("/api/projects/{id}", h.DeleteProject)

	r.Get("/api/payment-methods", h.ListPaymentMethods)

	r.Post("/api/extract", h.ExtractReceipt)

	r.Get("/api/config", h.GetConfig)
	r.Put("/api/config", h.SetConfig)

	return r
}

// actor resolves the signed-in user for a request. The API is a local
// single-user client, so the session lives in the store, not in a cookie.
func (h *Handler) actor(w http.ResponseWriter) (domain.User, bool) {
	u, ok := h.store.CurrentUser()
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Not signed in")
		return domain.User{}, false
	}
	return u, true
}

// writeMutationResult reports a mutation outcome. A replay failure after a
// successful local commit is not an HTTP error.
func writeMutationResult(w http.ResponseWriter, status int, data map[string]interface{}, err error) bool {
	var syncErr *sheetsync.SyncError
	switch {
	case err == nil:
		data["synced"] = true
	case errors.As(err, &syncErr):
		data["synced"] = false
		data["syncError"] = syncErr.Err.Error()
	default:
		return false
	}
	middleware.WriteJSON(w, status, data)
	return true
}

// Login handles POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Pull the cloud user list first so accounts provisioned in the
	// spreadsheet can sign in. Offline this is a no-op.
	if err := h.sync.RefreshUsers(r.Context()); err != nil {
		h.log.Warn().Err(err).Msg("User refresh before login failed")
	}

	u, err := auth.Login(h.store, req.Name, req.Password)
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	u.Password = ""
	middleware.WriteJSON(w, http.StatusOK, u)
}

// Logout handles POST /api/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := auth.Logout(h.store); err != nil {
		h.log.Error().Err(err).Msg("Failed to clear session")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// Session handles GET /api/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	u, ok := h.store.CurrentUser()
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Not signed in")
		return
	}
	u.Password = ""
	middleware.WriteJSON(w, http.StatusOK, u)
}

// ListTransactions handles GET /api/transactions. With ?refresh=1 the remote
// snapshot is reconciled in first.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	txs := h.store.Transactions()
	if r.URL.Query().Get("refresh") == "1" {
		var err error
		txs, err = h.sync.Refresh(r.Context(), actor)
		if err != nil {
			h.log.Warn().Err(err).Msg("Refresh failed, serving local state")
		}
	}

	// Employees see their own records.
	if !actor.IsManager() {
		own := txs[:0]
		for _, tx := range txs {
			if tx.RecordedBy(actor) {
				own = append(own, tx)
			}
		}
		txs = own
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// SaveTransaction handles POST /api/transactions and PUT /api/transactions/{id}
func (h *Handler) SaveTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		tx.ID = id
	}

	status := http.StatusOK
	if tx.ID == "" {
		status = http.StatusCreated
	}

	saved, err := h.sync.SubmitTransaction(r.Context(), actor, tx, sheetsync.DeliveryAwaited)
	if writeMutationResult(w, status, map[string]interface{}{"transaction": saved}, err) {
		return
	}
	if errors.Is(err, sheetsync.ErrPermissionDenied) {
		middleware.WriteError(w, http.StatusForbidden, "Not allowed to modify this record")
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, err.Error())
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	err := h.sync.DeleteTransaction(r.Context(), actor, id, sheetsync.DeliveryAwaited)
	if writeMutationResult(w, http.StatusOK, map[string]interface{}{"id": id}, err) {
		return
	}
	if errors.Is(err, sheetsync.ErrPermissionDenied) {
		middleware.WriteError(w, http.StatusForbidden, "Not allowed to delete this record")
		return
	}
	middleware.WriteError(w, http.StatusInternalServerError, err.Error())
}

// AdvanceStatus handles POST /api/transactions/{id}/status
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	next := domain.NormalizeStatus(req.Status)

	err := h.sync.AdvanceStatus(r.Context(), actor, id, next, sheetsync.DeliveryAwaited)
	if writeMutationResult(w, http.StatusOK, map[string]interface{}{"id": id, "status": next}, err) {
		return
	}
	switch {
	case errors.Is(err, sheetsync.ErrPermissionDenied):
		middleware.WriteError(w, http.StatusForbidden, "Only managers can change review status")
	case errors.Is(err, sheetsync.ErrInvalidTransition):
		middleware.WriteError(w, http.StatusConflict, err.Error())
	default:
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	}
}

// Sync handles POST /api/sync
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	txs, err := h.sync.Refresh(r.Context(), actor)
	if err != nil {
		var syncErr *sheetsync.SyncError
		if errors.As(err, &syncErr) {
			middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
				"transactions": txs,
				"count":        len(txs),
				"synced":       false,
				"syncError":    syncErr.Err.Error(),
			})
			return
		}
		h.log.Error().Err(err).Msg("Reconciliation failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"synced":       true,
	})
}

// ListCategories handles GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.store.Categories())
}

// AddCategory handles POST /api/categories
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	var c domain.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if c.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	saved, err := h.sync.AddCategory(r.Context(), actor, c, sheetsync.DeliveryDetached)
	if errors.Is(err, sheetsync.ErrPermissionDenied) {
		middleware.WriteError(w, http.StatusForbidden, "Only managers can manage categories")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, saved)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	err := h.sync.DeleteCategory(r.Context(), actor, chi.URLParam(r, "id"), sheetsync.DeliveryDetached)
	if errors.Is(err, sheetsync.ErrPermissionDenied) {
		middleware.WriteError(w, http.StatusForbidden, "Only managers can manage categories")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// ListProjects handles GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.store.Projects())
}

// AddProject handles POST /api/projects
func (h *Handler) AddProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	var p domain.ProjectDept
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if p.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	saved, err := h.sync.AddProject(r.Context(), actor, p, sheetsync.DeliveryDetached)
	if errors.Is(err, sheetsync.ErrPermissionDenied) {
		middleware.WriteError(w, http.StatusForbidden, "Only managers can manage projects")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, saved)
}

// DeleteProject handles DELETE /api/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w)
	if !ok {
		return
	}

	err := h.sync.DeleteProject(r.Context(), actor, chi.URLParam(r, "id"), sheetsync.DeliveryDetached)
	if errors.Is(err, sheetsync.ErrPermissionDenied) {
		middleware.WriteError(w, http.StatusForbidden, "Only managers can manage projects")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// ListPaymentMethods handles GET /api/payment-methods
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.store.PaymentMethods())
}

// ExtractReceipt handles POST /api/extract
func (h *Handler) ExtractReceipt(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w); !ok {
		return
	}

	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Image == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Image is required")
		return
	}

	ex, err := h.extractor.Extract(r.Context(), req.Image)
	if err != nil {
		h.log.Warn().Err(err).Msg("Receipt extraction failed")
		// Extraction is best effort; the client falls back to manual entry.
		middleware.WriteJSON(w, http.StatusOK, extract.Extraction{})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ex)
}

// GetConfig handles GET /api/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"endpoint": h.store.Endpoint()})
}

// SetConfig handles PUT /api/config
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w); !ok {
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.store.SetEndpoint(req.Endpoint); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save configuration")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"endpoint": req.Endpoint})
}
