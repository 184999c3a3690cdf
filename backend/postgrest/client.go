// Package postgrest talks to a Supabase-style PostgREST endpoint over HTTP.
package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/anjiri1684/psych_admin/backend"
	"github.com/gofiber/fiber/v2"
)

const restPath = "/rest/v1/"

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *fiber.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, backend.ErrUnconfigured
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", cfg.URL)
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http:    &fiber.Client{},
	}, nil
}

func (c *Client) Select(ctx context.Context, q backend.Query, dest any) error {
	if err := backend.CheckQuery(q); err != nil {
		return err
	}
	a := c.http.Get(c.tableURL(q.Table, selectParams(q)))
	_, body, _, err := c.do(ctx, a, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Table, err)
	}
	return nil
}

func (c *Client) Count(ctx context.Context, q backend.Query) (int64, error) {
	if err := backend.CheckQuery(q); err != nil {
		return 0, err
	}
	params := filterParams(q.Filters)
	params.Set("select", "*")
	a := c.http.Head(c.tableURL(q.Table, params))
	_, _, contentRange, err := c.do(ctx, a, "count=exact")
	if err != nil {
		return 0, err
	}
	return parseContentRange(contentRange)
}

func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	if !backend.ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode %s rows: %w", table, err)
	}
	a := c.http.Post(c.tableURL(table, url.Values{})).Body(payload)
	_, body, _, err := c.do(ctx, a, "return=representation")
	if err != nil {
		return err
	}
	return decodeInto(body, rows)
}

func (c *Client) Delete(ctx context.Context, table string, filters ...backend.Filter) error {
	if len(filters) == 0 {
		return backend.ErrMissingFilter
	}
	if err := backend.CheckQuery(backend.Query{Table: table, Filters: filters}); err != nil {
		return err
	}
	a := c.http.Delete(c.tableURL(table, filterParams(filters)))
	_, _, _, err := c.do(ctx, a, "return=minimal")
	return err
}

func (c *Client) tableURL(table string, params url.Values) string {
	u := c.baseURL + restPath + table
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}
	return u
}

// do sends the request and returns the status, body and Content-Range header.
// A status of 400 or above becomes a *backend.Error.
func (c *Client) do(ctx context.Context, a *fiber.Agent, prefer string) (int, []byte, string, error) {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(a)
		return 0, nil, "", err
	}

	a.Set("apikey", c.apiKey)
	a.Set(fiber.HeaderAuthorization, "Bearer "+c.apiKey)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	a.ContentType(fiber.MIMEApplicationJSON)
	if prefer != "" {
		a.Set("Prefer", prefer)
	}
	if timeout := c.effectiveTimeout(ctx); timeout > 0 {
		a.Timeout(timeout)
	}

	resp := fiber.AcquireResponse()
	defer fiber.ReleaseResponse(resp)
	a.SetResponse(resp)

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, nil, "", fmt.Errorf("backend request failed: %w", errors.Join(errs...))
	}
	contentRange := string(resp.Header.Peek(fiber.HeaderContentRange))
	if code >= fiber.StatusBadRequest {
		return code, nil, "", decodeError(code, body)
	}
	return code, body, contentRange, nil
}

func (c *Client) effectiveTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

func selectParams(q backend.Query) url.Values {
	params := filterParams(q.Filters)

	parts := []string{"*"}
	if len(q.Columns) > 0 {
		parts = append([]string{}, q.Columns...)
	}
	for _, e := range q.Embeds {
		cols := "*"
		if len(e.Columns) > 0 {
			cols = strings.Join(e.Columns, ",")
		}
		parts = append(parts, fmt.Sprintf("%s(%s)", e.Relation, cols))
	}
	params.Set("select", strings.Join(parts, ","))

	if q.Order != nil {
		dir := "desc"
		if q.Order.Ascending {
			dir = "asc"
		}
		params.Set("order", q.Order.Column+"."+dir)
	}
	return params
}

func filterParams(filters []backend.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
	}
	return params
}

func formatValue(v any) string {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func parseContentRange(header string) (int64, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("backend did not return an exact count")
	}
	return strconv.ParseInt(total, 10, 64)
}

func decodeError(status int, body []byte) error {
	apiErr := &backend.Error{Status: status}
	if len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("backend returned status %d", status)
	}
	return apiErr
}

// decodeInto copies the returned representation back into rows. PostgREST
// always answers with an array, even for a single inserted object.
func decodeInto(body []byte, rows any) error {
	if len(body) == 0 {
		return nil
	}
	rv := reflect.ValueOf(rows)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("insert target must be a non-nil pointer, got %T", rows)
	}
	if rv.Elem().Kind() == reflect.Slice {
		return json.Unmarshal(body, rows)
	}
	var returned []json.RawMessage
	if err := json.Unmarshal(body, &returned); err != nil {
		return fmt.Errorf("decode inserted row: %w", err)
	}
	if len(returned) == 0 {
		return fmt.Errorf("backend returned no inserted row")
	}
	return json.Unmarshal(returned[0], rows)
}
