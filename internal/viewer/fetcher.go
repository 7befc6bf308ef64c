package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/internal/ownership"
)

// HTTPFetcher loads the subject from GET {BaseURL}/api/me.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPFetcher(baseURL, token string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchSubject returns nil, nil when the server answers 401.
func (f *HTTPFetcher) FetchSubject(ctx context.Context) (*ownership.Subject, error) {
	var s ownership.Subject
	status, err := f.get(ctx, "/api/me", &s)
	if status == http.StatusUnauthorized {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Role = ownership.ParseRole(string(s.Role))
	return &s, nil
}

// FetchProducts returns the owner projection of the products the token can
// list, first page only.
func (f *HTTPFetcher) FetchProducts(ctx context.Context, limit int) ([]ownership.Record, error) {
	var page struct {
		Items []ownership.Record `json:"items"`
	}
	if _, err := f.get(ctx, fmt.Sprintf("/api/products?limit=%d", limit), &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// get decodes a 200 response into out. Other statuses become classified
// errors built from the server's error body.
func (f *HTTPFetcher) get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error   apperr.Code `json:"error"`
			Message string      `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		code := body.Error
		if code == "" {
			code = apperr.FromStatus(resp.StatusCode)
		}
		return resp.StatusCode, apperr.New(code, body.Message)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}
