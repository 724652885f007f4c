// Package http implements the HTTP location driver: a client that talks to
// a locationserver (or any server implementing the same wire contract)
// over the network, grounded on pyorderly's outpack/location_http.py
// (OutpackLocationHTTP / OutpackHTTPClient) for the shape of the
// operations, and on distribution's internal/client repository.go for the
// Go idiom — a thin http.Client wrapper with its own response-error
// decoding, rather than a generated client.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/reside-ic/outpack-go/config"
	"github.com/reside-ic/outpack-go/internal/hash"
	"github.com/reside-ic/outpack-go/location"
	"github.com/reside-ic/outpack-go/metadata"
)

func init() {
	location.Register("http", factory{})
	location.Register("https", factory{})
}

type factory struct{}

func (factory) Create(loc config.Location) (location.Driver, error) {
	return New(loc.Args["url"]), nil
}

// Driver is a location.Driver backed by an HTTP server.
type Driver struct {
	baseURL string
	client  *http.Client
}

// New builds an HTTP driver against baseURL. No network call is made until
// a Driver method is invoked.
func New(baseURL string) *Driver {
	return &Driver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Open implements location.Driver. The underlying http.Client needs no
// session setup.
func (d *Driver) Open(ctx context.Context) error { return nil }

// Close implements location.Driver.
func (d *Driver) Close() error { return nil }

func (d *Driver) url(format string, args ...interface{}) string {
	return d.baseURL + fmt.Sprintf(format, args...)
}

// HTTPError reports a non-2xx response from a location server, grounded on
// distribution's internal/client error decoding (HandleHTTPResponseError)
// but specialised to outpack's plain-text/JSON error bodies.
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d Error: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%d Client Error", e.StatusCode)
}

func handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var parsed struct {
		Error *struct {
			Detail string `json:"detail"`
		} `json:"error"`
	}
	detail := ""
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		detail = parsed.Error.Detail
	}
	return &HTTPError{StatusCode: resp.StatusCode, Detail: detail}
}

func (d *Driver) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := handleErrorResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// ListPackets implements location.Driver.
func (d *Driver) ListPackets(ctx context.Context) (map[string]metadata.PacketLocation, error) {
	resp, err := d.do(ctx, http.MethodGet, d.url("/packets"), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]metadata.PacketLocation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Metadata implements location.Driver.
func (d *Driver) Metadata(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	resp, err := d.do(ctx, http.MethodGet, d.url("/metadata?%s", q.Encode()), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchFile implements location.Driver.
func (d *Driver) FetchFile(ctx context.Context, packet *metadata.Core, file metadata.PacketFile, dest string) error {
	resp, err := d.do(ctx, http.MethodGet, d.url("/files/%s", url.PathEscape(string(file.Hash))), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

// FileExists reports whether the location currently holds the blob for h,
// via a HEAD request, without transferring its content.
func (d *Driver) FileExists(ctx context.Context, h hash.Hash) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.url("/files/%s", url.PathEscape(string(h))), nil)
	if err != nil {
		return false, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &HTTPError{StatusCode: resp.StatusCode}
	}
	return true, nil
}

// ListUnknownPackets implements location.Driver.
func (d *Driver) ListUnknownPackets(ctx context.Context, ids []string) ([]string, error) {
	payload, _ := json.Marshal(map[string][]string{"ids": ids})
	resp, err := d.do(ctx, http.MethodPost, d.url("/packets/missing"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Missing []string `json:"missing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Missing, nil
}

// ListUnknownFiles implements location.Driver.
func (d *Driver) ListUnknownFiles(ctx context.Context, hashes []hash.Hash) ([]hash.Hash, error) {
	strs := make([]string, len(hashes))
	for i, h := range hashes {
		strs[i] = string(h)
	}
	payload, _ := json.Marshal(map[string][]string{"hashes": strs})
	resp, err := d.do(ctx, http.MethodPost, d.url("/files/missing"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out struct {
		Missing []string `json:"missing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	missing := make([]hash.Hash, len(out.Missing))
	for i, s := range out.Missing {
		missing[i] = hash.Hash(s)
	}
	return missing, nil
}

// PushFile implements location.Driver.
func (d *Driver) PushFile(ctx context.Context, src string, h hash.Hash) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	resp, err := d.do(ctx, http.MethodPut, d.url("/files/%s", url.PathEscape(string(h))), f)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// PushMetadata implements location.Driver.
func (d *Driver) PushMetadata(ctx context.Context, src string, h hash.Hash) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	resp, err := d.do(ctx, http.MethodPut, d.url("/metadata/%s", url.PathEscape(string(h))), f)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
