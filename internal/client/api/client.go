// Package api is the HTTP client for the voidnote server. It speaks
// the JSON surface and maps status codes back to the shared error
// taxonomy; all encryption happens on the caller's side.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/server/httpapi"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the server address the client talks to, used to
// construct share links.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) CreateSecret(ctx context.Context, req httpapi.CreateRequest) (*httpapi.CreateResponse, error) {
	var out httpapi.CreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/secrets", req, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reveal(ctx context.Context, shortID string) (*httpapi.RevealResponse, error) {
	var out httpapi.RevealResponse
	if err := c.do(ctx, http.MethodPost, "/api/secrets/"+shortID+"/reveal", struct{}{}, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Status(ctx context.Context, shortID string) (*httpapi.StatusResponse, error) {
	var out httpapi.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/secrets/"+shortID+"/status", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Burn(ctx context.Context, id, ownerToken string) error {
	return c.do(ctx, http.MethodPost, "/api/secrets/"+id+"/burn", struct{}{}, ownerToken, nil)
}

func (c *Client) AccessLog(ctx context.Context, id, ownerToken string) ([]httpapi.AccessLogEntry, error) {
	var out []httpapi.AccessLogEntry
	if err := c.do(ctx, http.MethodGet, "/api/secrets/"+id+"/log", nil, ownerToken, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PresignUpload(ctx context.Context) (*httpapi.UploadResponse, error) {
	var out httpapi.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/uploads", struct{}{}, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadBlob PUTs the encrypted payload to a presigned URL.
func (c *Client) UploadBlob(ctx context.Context, url string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("blob upload: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// DownloadBlob fetches the encrypted payload from a presigned URL.
func (c *Client) DownloadBlob(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("blob download: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, ownerToken string, out any) error {
	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return err
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ownerToken != "" {
		req.Header.Set(common.OwnerTokenHeaderName, ownerToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	var body httpapi.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return common.ErrSecretNotAvailable
	case http.StatusUnauthorized:
		if body.Error == "authentication required" {
			return common.ErrAuthRequired
		}
		return common.ErrUnauthorized
	case http.StatusForbidden:
		return common.ErrDomainNotAllowed
	case http.StatusServiceUnavailable:
		return common.ErrStoreUnavailable
	default:
		if body.Error != "" {
			return fmt.Errorf("server: %s", body.Error)
		}
		return fmt.Errorf("server: unexpected status %d", resp.StatusCode)
	}
}
