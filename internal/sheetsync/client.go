package sheetsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ctrlix/bookkeeper/internal/domain"
)

// POST discriminator values understood by the remote script.
const (
	dataTypeTransaction       = "TRANSACTION"
	dataTypeDeleteTransaction = "DELETE_TRANSACTION"
	dataTypeCategory          = "CATEGORY"
	dataTypeDeleteCategory    = "DELETE_CATEGORY"
	dataTypeProject           = "PROJECT"
	dataTypeDeleteProject     = "DELETE_PROJECT"
)

// Remote result tokens.
const (
	resultSuccess  = "success"
	resultNotFound = "not_found"
)

// Client talks to the spreadsheet-backed endpoint over HTTP. The endpoint is
// re-read through the endpoint func at the start of every call, so a
// configuration change takes effect on the next operation without a restart.
type Client struct {
	httpClient *http.Client
	endpoint   func() string
}

// NewClient creates a Client that resolves the endpoint through the given
// func, typically bound to the store's config partition.
func NewClient(endpoint func() string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   endpoint,
	}
}

// TransactionUpsert is the create-or-update payload in the remote vocabulary:
// reference entities travel as display names, booleans as localized tokens,
// and timestamps as epoch milliseconds.
type TransactionUpsert struct {
	DataType       string  `json:"dataType"`
	ID             string  `json:"id"`
	Date           string  `json:"date"`
	Type           string  `json:"type"`
	Amount         float64 `json:"amount"`
	Summary        string  `json:"summary"`
	CategoryName   string  `json:"categoryName"`
	ProjectName    string  `json:"projectName"`
	MethodName     string  `json:"methodName"`
	HasTaxID       string  `json:"hasTaxId"`
	RecordedByName string  `json:"recordedByName"`
	Status         string  `json:"status"`
	CreatedAt      int64   `json:"createdAt"`
	AttachmentURL  string  `json:"attachmentUrl"`
}

type deletePayload struct {
	DataType string `json:"dataType"`
	ID       string `json:"id"`
}

type categoryPayload struct {
	DataType string `json:"dataType"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"isActive"`
}

type projectPayload struct {
	DataType string `json:"dataType"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

func (c *Client) UpsertTransaction(ctx context.Context, p TransactionUpsert) (*UpsertResult, error) {
	p.DataType = dataTypeTransaction
	res, err := c.post(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("UpsertTransaction: %w", err)
	}
	if res.Result != resultSuccess {
		return nil, fmt.Errorf("UpsertTransaction: remote returned %q: %s", res.Result, res.Error)
	}
	return res, nil
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	res, err := c.post(ctx, deletePayload{DataType: dataTypeDeleteTransaction, ID: id})
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	// An already-deleted row is the state we wanted.
	if res.Result != resultSuccess && res.Result != resultNotFound {
		return fmt.Errorf("DeleteTransaction: remote returned %q: %s", res.Result, res.Error)
	}
	return nil
}

func (c *Client) UpsertCategory(ctx context.Context, cat domain.Category) error {
	res, err := c.post(ctx, categoryPayload{
		DataType: dataTypeCategory,
		ID:       cat.ID,
		Name:     cat.Name,
		Type:     string(cat.Type),
		IsActive: cat.IsActive,
	})
	if err != nil {
		return fmt.Errorf("UpsertCategory: %w", err)
	}
	if res.Result != resultSuccess {
		return fmt.Errorf("UpsertCategory: remote returned %q: %s", res.Result, res.Error)
	}
	return nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	res, err := c.post(ctx, deletePayload{DataType: dataTypeDeleteCategory, ID: id})
	if err != nil {
		return fmt.Errorf("DeleteCategory: %w", err)
	}
	if res.Result != resultSuccess && res.Result != resultNotFound {
		return fmt.Errorf("DeleteCategory: remote returned %q: %s", res.Result, res.Error)
	}
	return nil
}

func (c *Client) UpsertProject(ctx context.Context, p domain.ProjectDept) error {
	res, err := c.post(ctx, projectPayload{
		DataType: dataTypeProject,
		ID:       p.ID,
		Name:     p.Name,
		IsActive: p.IsActive,
	})
	if err != nil {
		return fmt.Errorf("UpsertProject: %w", err)
	}
	if res.Result != resultSuccess {
		return fmt.Errorf("UpsertProject: remote returned %q: %s", res.Result, res.Error)
	}
	return nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	res, err := c.post(ctx, deletePayload{DataType: dataTypeDeleteProject, ID: id})
	if err != nil {
		return fmt.Errorf("DeleteProject: %w", err)
	}
	if res.Result != resultSuccess && res.Result != resultNotFound {
		return fmt.Errorf("DeleteProject: remote returned %q: %s", res.Result, res.Error)
	}
	return nil
}

func (c *Client) FetchUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.get(ctx, "users", nil, &users); err != nil {
		return nil, fmt.Errorf("FetchUsers: %w", err)
	}
	return users, nil
}

func (c *Client) FetchCategories(ctx context.Context) ([]domain.Category, error) {
	var cats []domain.Category
	if err := c.get(ctx, "categories", nil, &cats); err != nil {
		return nil, fmt.Errorf("FetchCategories: %w", err)
	}
	return cats, nil
}

func (c *Client) FetchProjects(ctx context.Context) ([]domain.ProjectDept, error) {
	var projs []domain.ProjectDept
	if err := c.get(ctx, "projects", nil, &projs); err != nil {
		return nil, fmt.Errorf("FetchProjects: %w", err)
	}
	return projs, nil
}

func (c *Client) FetchTransactions(ctx context.Context, userID string) (*TransactionTable, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("userId", userID)
	}
	var table TransactionTable
	if err := c.get(ctx, "transactions", query, &table); err != nil {
		return nil, fmt.Errorf("FetchTransactions: %w", err)
	}
	return &table, nil
}

func (c *Client) post(ctx context.Context, payload interface{}) (*UpsertResult, error) {
	endpoint := c.endpoint()
	if endpoint == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote returned HTTP %d", resp.StatusCode)
	}

	var res UpsertResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, action string, query url.Values, v interface{}) error {
	endpoint := c.endpoint()
	if endpoint == "" {
		return ErrNotConfigured
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parsing endpoint: %w", err)
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("action", action)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching from remote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Ensure Client implements the remote interface.
var _ RemoteService = (*Client)(nil)
