package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderRevision      = "X-Last-Known-Revision"
	HeaderGenerateFails = "X-Generate-Fails"
)

// HTTPError is a non-2xx reply.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// StatusCode extracts the HTTP status from err, 0 when err is not an HTTPError.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

// API is a thin typed wrapper over the REST contract.
type API struct {
	base  *url.URL
	token string
	http  *http.Client

	// GenerateFails, when > 0, asks the server to fail list requests at
	// random. Test aid only.
	GenerateFails int
}

func NewAPI(baseURL, token string, timeout time.Duration) (*API, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: want http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{base: u, token: token, http: &http.Client{Timeout: timeout}}, nil
}

func (a *API) FetchList(ctx context.Context) (*ListResponse, error) {
	var out ListResponse
	if err := a.do(ctx, http.MethodGet, "list", nil, nil, a.GenerateFails, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) PatchList(ctx context.Context, revision int, list []TodoItemDto) (*ListResponse, error) {
	if list == nil {
		list = []TodoItemDto{}
	}
	var out ListResponse
	// Fault injection stays off for mutations.
	if err := a.do(ctx, http.MethodPatch, "list", &revision, ListRequest{List: list}, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) FetchItem(ctx context.Context, id string) (*ItemResponse, error) {
	var out ItemResponse
	if err := a.do(ctx, http.MethodGet, "list/"+url.PathEscape(id), nil, nil, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AddItem(ctx context.Context, revision int, element TodoItemDto) (*ItemResponse, error) {
	var out ItemResponse
	if err := a.do(ctx, http.MethodPost, "list", &revision, ElementRequest{Element: element}, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) UpdateItem(ctx context.Context, revision int, id string, element TodoItemDto) (*ItemResponse, error) {
	var out ItemResponse
	if err := a.do(ctx, http.MethodPut, "list/"+url.PathEscape(id), &revision, ElementRequest{Element: element}, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) DeleteItem(ctx context.Context, revision int, id string) (*ItemResponse, error) {
	var out ItemResponse
	if err := a.do(ctx, http.MethodDelete, "list/"+url.PathEscape(id), &revision, nil, 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) do(ctx context.Context, method, path string, revision *int, body any, fails int, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("path %q: %w", path, err)
	}
	u := a.base.ResolveReference(ref)

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	if revision != nil {
		req.Header.Set(HeaderRevision, strconv.Itoa(*revision))
	}
	if fails > 0 {
		req.Header.Set(HeaderGenerateFails, strconv.Itoa(fails))
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Method:     method,
			Path:       "/" + path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// errorMessage pulls {"message": ...} out of an error body, or returns the
// trimmed body text.
func errorMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
