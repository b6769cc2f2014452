package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// ClientConfig holds everything needed to reach the PostgREST endpoint.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client // optional, defaults to http.DefaultClient
}

// Client binds query builders to tables of one PostgREST endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a new Client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, errors.New("base URL and API key cannot be empty")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    hc,
	}, nil
}

// Table returns a read builder for the named resource.
func (c *Client) Table(name string) QueryBuilder {
	return QueryBuilder{
		client: c,
		table:  name,
		method: http.MethodGet,
	}
}

// APIError is returned by Execute for any non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("postgrest: HTTP %d: %s", e.StatusCode, e.Body)
}

// Result is the uniform outcome of a successful Execute.
type Result struct {
	Data  []map[string]any
	Count int
}

// Decode converts the rows into dst, which must be a pointer to a slice of
// typed records.
func (r Result) Decode(dst any) error {
	rows := r.Data
	if rows == nil {
		rows = []map[string]any{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to re-encode rows: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed rows: %w", err)
	}
	return nil
}

type filterKey struct {
	column string
	op     Operator
}

// QueryBuilder accumulates one request. It is a value: each chained call
// returns a modified copy, so a builder can be branched without the branches
// seeing each other's filters.
type QueryBuilder struct {
	client  *Client
	table   string
	method  string
	columns string
	filters []FilterExpression
	orders  []OrderClause
	payload any
	count   string
}

func (b QueryBuilder) clone() QueryBuilder {
	b.filters = append([]FilterExpression(nil), b.filters...)
	b.orders = append([]OrderClause(nil), b.orders...)
	return b
}

// Select marks the builder as a read of the given columns ("*" when empty).
func (b QueryBuilder) Select(columns string) QueryBuilder {
	b = b.clone()
	if columns == "" {
		columns = "*"
	}
	b.method = http.MethodGet
	b.columns = columns
	return b
}

// filter sets the predicate for (column, op). A repeated call for the same
// column and operator replaces the earlier value.
func (b QueryBuilder) filter(column string, op Operator, value any) QueryBuilder {
	b = b.clone()
	f := FilterExpression{Column: column, Operator: op, Value: fmt.Sprint(value)}
	for i, existing := range b.filters {
		if (filterKey{existing.Column, existing.Operator}) == (filterKey{column, op}) {
			b.filters[i] = f
			return b
		}
	}
	b.filters = append(b.filters, f)
	return b
}

func (b QueryBuilder) Eq(column string, value any) QueryBuilder {
	return b.filter(column, OpEq, value)
}

func (b QueryBuilder) Gte(column string, value any) QueryBuilder {
	return b.filter(column, OpGte, value)
}

func (b QueryBuilder) Lte(column string, value any) QueryBuilder {
	return b.filter(column, OpLte, value)
}

// Order appends an ordering key; keys accumulate in call order.
func (b QueryBuilder) Order(column string, descending bool) QueryBuilder {
	b = b.clone()
	b.orders = append(b.orders, OrderClause{Column: column, Descending: descending})
	return b
}

// Insert, Update and Delete switch the builder to a write. Only the last
// verb called is used.
func (b QueryBuilder) Insert(payload any) QueryBuilder {
	b = b.clone()
	b.method = http.MethodPost
	b.payload = payload
	return b
}

func (b QueryBuilder) Update(payload any) QueryBuilder {
	b = b.clone()
	b.method = http.MethodPatch
	b.payload = payload
	return b
}

func (b QueryBuilder) Delete() QueryBuilder {
	b = b.clone()
	b.method = http.MethodDelete
	b.payload = nil
	return b
}

// Count asks the store to report a row count ("exact", "planned",
// "estimated") on write requests.
func (b QueryBuilder) Count(mode string) QueryBuilder {
	b = b.clone()
	b.count = mode
	return b
}

// Method reports the HTTP method Execute will use.
func (b QueryBuilder) Method() string { return b.method }

// Query renders the query string Execute will send.
func (b QueryBuilder) Query() url.Values {
	q := url.Values{}
	if b.method == http.MethodGet {
		columns := b.columns
		if columns == "" {
			columns = "*"
		}
		q.Set("select", columns)
	}
	for _, f := range b.filters {
		q.Add(f.Column, f.String())
	}
	if len(b.orders) > 0 {
		keys := make([]string, len(b.orders))
		for i, o := range b.orders {
			keys[i] = o.String()
		}
		q.Set("order", strings.Join(keys, ","))
	}
	return q
}

func (b QueryBuilder) headers() http.Header {
	h := http.Header{}
	h.Set("apikey", b.client.apiKey)
	h.Set("Authorization", "Bearer "+b.client.apiKey)
	h.Set("Content-Type", "application/json")
	prefer := "return=representation"
	if b.count != "" && b.method != http.MethodGet {
		prefer += ",count=" + b.count
	}
	h.Set("Prefer", prefer)
	return h
}

// Execute performs the HTTP round trip.
func (b QueryBuilder) Execute(ctx context.Context) (Result, error) {
	if b.client == nil {
		return Result{}, errors.New("query builder is not bound to a client")
	}

	var body io.Reader
	if b.method == http.MethodPost || b.method == http.MethodPatch {
		raw, err := json.Marshal(b.payload)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode %s payload: %w", b.table, err)
		}
		body = bytes.NewReader(raw)
	}

	endpoint := b.client.baseURL + "/rest/v1/" + b.table
	if q := b.Query().Encode(); q != "" {
		endpoint += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, b.method, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build request for %s: %w", b.table, err)
	}
	req.Header = b.headers()

	resp, err := b.client.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%s %s failed: %w", b.method, b.table, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s response: %w", b.table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("PostgREST %s %s returned %d: %s", b.method, b.table, resp.StatusCode, raw)
		return Result{}, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if resp.StatusCode == http.StatusNoContent {
		return Result{Data: []map[string]any{}, Count: 0}, nil
	}

	data := decodeRows(raw)
	return Result{Data: data, Count: len(data)}, nil
}

// decodeRows accepts a JSON array of objects or a single object. Anything
// else yields an empty list.
func decodeRows(raw []byte) []map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []map[string]any{}
	}
	var rows []map[string]any
	if err := unmarshalNumbers(raw, &rows); err == nil {
		if rows == nil {
			rows = []map[string]any{}
		}
		return rows
	}
	var row map[string]any
	if err := unmarshalNumbers(raw, &row); err == nil && row != nil {
		return []map[string]any{row}
	}
	return []map[string]any{}
}

// unmarshalNumbers keeps numbers as json.Number so bigint ids survive Decode.
func unmarshalNumbers(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
