// Package mirror is the read side of the toolkit. Every query goes against
// the mirror node REST API; all reads are best-effort and eventually
// consistent with the consensus ledger.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lazysuperheroes/lazylotto-cli/pkg/httpclient"
	"github.com/lazysuperheroes/lazylotto-cli/pkg/logging"
)

var (
	ErrMirrorUnavailable = errors.New("mirror unavailable")
	ErrNotFound          = errors.New("not found on mirror")
	ErrDecode            = errors.New("mirror response decode error")
)

// Adapter issues read-only queries against a mirror node.
type Adapter struct {
	baseURL string
	client  *httpclient.Client
	logger  logging.Logger
}

// New creates an adapter for the given mirror REST base URL.
func New(baseURL string, client *httpclient.Client, logger logging.Logger) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// getJSON fetches path and decodes the body into out. A 404 maps to
// ErrNotFound; transport failures and exhausted retries map to
// ErrMirrorUnavailable.
func (a *Adapter) getJSON(ctx context.Context, path string, out interface{}) error {
	url := path
	if !strings.HasPrefix(path, "http") {
		url = a.baseURL + path
	}

	resp, err := a.client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrMirrorUnavailable, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: GET %s: HTTP %d %s", ErrMirrorUnavailable, path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return nil
}
