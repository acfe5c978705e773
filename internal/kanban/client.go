// Package kanban submits bug cards to the kanban board API.
package kanban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	dberrors "github.com/p-blackswan/test-dashboard/internal/errors"
	"github.com/p-blackswan/test-dashboard/internal/report"
	"github.com/p-blackswan/test-dashboard/internal/requestid"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps the kanban board REST API.
type Client struct {
	apiURL     string
	cardURL    string
	httpClient HTTPClient
	logger     zerolog.Logger
}

// NewClient creates a kanban client. apiURL is the board endpoint that cards
// are posted under; cardURL is the prefix for human-facing card links.
func NewClient(apiURL, cardURL string, logger zerolog.Logger) *Client {
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		cardURL:    strings.TrimSuffix(cardURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "kanban").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// Name implements report.Tracker.
func (c *Client) Name() string { return "kanban" }

// CreateCardRequest is the body of POST /cards.
type CreateCardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectID   string `json:"projectId"`
	ColumnID    string `json:"columnId"`
	Priority    string `json:"priority"`
	Type        string `json:"type"`
}

// CardResponse is the subset of the created card the dashboard uses.
type CardResponse struct {
	ID CardID `json:"id"`
}

// CardID accepts numeric and string card ids.
type CardID string

func (c *CardID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = CardID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("card id: %w", err)
	}
	*c = CardID(n.String())
	return nil
}

// CreateCard files a high-priority bug card in the backlog column.
func (c *Client) CreateCard(ctx context.Context, card report.Card) (*report.CardRef, error) {
	body, err := json.Marshal(CreateCardRequest{
		Title:       card.Title,
		Description: card.Description,
		ProjectID:   card.ProjectID,
		ColumnID:    "backlog",
		Priority:    "high",
		Type:        "bug",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling card: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/cards", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var created CardResponse
	if err := decodeResponse(resp, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, dberrors.NewUpstream("kanban", resp.StatusCode, "response carried no card id")
	}

	id := string(created.ID)
	c.logger.Info().Str("card_id", id).Str("project", card.ProjectID).Msg("card created")
	return &report.CardRef{ID: id, URL: c.cardURL + "/" + id}, nil
}

// do executes an API request. Non-2xx responses become UpstreamErrors.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, dberrors.NewUpstream("kanban", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return resp, nil
}

func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
