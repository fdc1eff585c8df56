package rendezvous

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/core"
)

// Client talks to a rendezvous server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr, which may be a bare
// host:port or a full http URL. A nil httpClient uses a client with a short
// timeout.
func NewClient(addr string, httpClient *http.Client) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: base, http: httpClient}
}

// Join registers rank as a member of jobID.
func (c *Client) Join(ctx context.Context, jobID string, rank int, req JoinRequest) (Member, error) {
	var m Member
	err := c.do(ctx, http.MethodPost, c.memberPath(jobID, rank, "join"), req, &m)
	return m, err
}

// Release ends rank's membership of jobID.
func (c *Client) Release(ctx context.Context, jobID string, rank int) (Member, error) {
	var m Member
	err := c.do(ctx, http.MethodPost, c.memberPath(jobID, rank, "release"), nil, &m)
	return m, err
}

// Status fetches jobID's membership.
func (c *Client) Status(ctx context.Context, jobID string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s/", jobID), nil, &st)
	return st, err
}

func (c *Client) memberPath(jobID string, rank int, action string) string {
	return fmt.Sprintf("/api/v1/jobs/%s/members/%d/%s", jobID, rank, action)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return core.ErrNetwork(fmt.Sprintf("%s %s", method, path)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError rebuilds the server's DomainError so callers can match on
// category and code.
func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Category == "" {
		return &core.DomainError{
			Category: core.ErrCatInternal,
			Code:     fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Message:  strings.TrimSpace(string(data)),
		}
	}
	return &core.DomainError{
		Category: body.Category,
		Code:     body.Code,
		Message:  body.Error,
	}
}
