package Sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"Anvil/Models"

	"go.uber.org/zap"
)

const maxPayloadBytes = 32 << 20

// Filters narrow a primary query on the server side.
type Filters struct {
	Page       int
	PageSize   int
	Search     string
	Department string
	Status     string
	Location   string
	Caller     Models.RoleContext
}

// queryStrategy builds the query string of one attempt.
type queryStrategy struct {
	name   string
	params func(sheetID, sheetName string, f Filters) url.Values
}

var primaryQuery = queryStrategy{
	name: "primary",
	params: func(sheetID, sheetName string, f Filters) url.Values {
		page := f.Page
		if page < 1 {
			page = 1
		}
		q := url.Values{}
		q.Set("sheetId", sheetID)
		q.Set("sheetName", sheetName)
		q.Set("page", strconv.Itoa(page))
		if f.PageSize > 0 {
			q.Set("pageSize", strconv.Itoa(f.PageSize))
		}
		q.Set("search", f.Search)
		q.Set("department", f.Department)
		q.Set("status", f.Status)
		q.Set("location", f.Location)
		q.Set("userRole", string(f.Caller.Role))
		q.Set("username", f.Caller.Username)
		return q
	},
}

// fallbackQuery is the legacy, unparameterised shape.
var fallbackQuery = queryStrategy{
	name: "fallback",
	params: func(sheetID, sheetName string, _ Filters) url.Values {
		q := url.Values{}
		q.Set("sheetId", sheetID)
		q.Set("sheet", sheetName)
		return q
	},
}

// Client reads task tables from the remote query endpoint. Every call is a
// fresh read; nothing is cached between calls.
type Client struct {
	BaseURL    string
	SheetID    string
	HTTPClient *http.Client
	Logger     *zap.Logger

	strategies []queryStrategy
}

func NewClient(baseURL, sheetID string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:    baseURL,
		SheetID:    sheetID,
		HTTPClient: httpClient,
		Logger:     logger,
		strategies: []queryStrategy{primaryQuery, fallbackQuery},
	}
}

// FetchTable runs the primary query and, if its payload fails the schema
// predicate or the request fails, the fallback query once. When both fail the
// returned error satisfies errors.Is(err, ErrEmptyResult) and the table is empty.
// Context cancellation is returned as-is.
func (c *Client) FetchTable(ctx context.Context, sheetName string, f Filters) (Table, error) {
	var attempts []error
	for i, strategy := range c.strategies {
		table, err := c.query(ctx, strategy, sheetName, f)
		if err == nil {
			if i > 0 {
				c.Logger.Warn("Table served by fallback query",
					zap.String("sheet", sheetName),
					zap.String("strategy", strategy.name))
			}
			return table, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Table{}, ctxErr
		}
		c.Logger.Warn("Table query failed",
			zap.String("sheet", sheetName),
			zap.String("strategy", strategy.name),
			zap.Error(err))
		attempts = append(attempts, fmt.Errorf("%s query: %w", strategy.name, err))
	}
	return Table{}, &EmptyResultError{SheetName: sheetName, Attempts: attempts}
}

func (c *Client) query(ctx context.Context, strategy queryStrategy, sheetName string, f Filters) (Table, error) {
	endpoint, err := url.Parse(c.BaseURL)
	if err != nil {
		return Table{}, fmt.Errorf("%w: invalid query url: %v", ErrTransport, err)
	}
	q := endpoint.Query()
	for key, values := range strategy.params(c.SheetID, sheetName, f) {
		q[key] = values
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Table{}, fmt.Errorf("%w: failed to create request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Table{}, fmt.Errorf("%w: query returned status %d", ErrTransport, resp.StatusCode)
	}

	var result QueryResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&result); err != nil {
		return Table{}, fmt.Errorf("%w: failed to decode response: %v", ErrSchema, err)
	}
	if !result.Valid() {
		if result.Error != "" {
			return Table{}, fmt.Errorf("%w: %s", ErrSchema, result.Error)
		}
		return Table{}, ErrSchema
	}
	return *result.Table, nil
}
