// Package client talks to other nodes and to a node's own API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
)

const (
	contentTypeBinary = "application/octet-stream"
	contentTypeJSON   = "application/json"

	DefaultTimeout = 10 * time.Second
)

type (
	Client struct {
		http *http.Client
	}

	// StatusError is returned when a node answers with a non 2xx status.
	StatusError struct {
		URL     string
		Status  int
		Message string
	}
)

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.URL, e.Status, e.Message)
}

func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// NewWithHTTPClient is used by tests to route requests through an httptest server.
func NewWithHTTPClient(hc *http.Client) *Client {
	return &Client{http: hc}
}

// PushPayload delivers p to the /push endpoint of the node at url.
func (c *Client) PushPayload(ctx context.Context, url string, p *model.EncodedPayloadWithRecipients) error {
	resp, err := c.post(ctx, endpoint(url, "/push"), contentTypeBinary, codec.EncodePayload(p))
	if err != nil {
		return err
	}
	defer drain(resp)
	return nil
}

// SendPartyInfo posts info to the node at url and returns the node's own view.
func (c *Client) SendPartyInfo(ctx context.Context, url string, info model.PartyInfo) (model.PartyInfo, error) {
	resp, err := c.post(ctx, endpoint(url, "/partyinfo"), contentTypeBinary, codec.EncodePartyInfo(info))
	if err != nil {
		return model.PartyInfo{}, err
	}
	defer drain(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.PartyInfo{}, fmt.Errorf("read party info from %s: %w", url, err)
	}
	return codec.DecodePartyInfo(data)
}

// Resend asks the node at url to republish transactions for a key.
func (c *Client) Resend(ctx context.Context, url string, req model.ResendRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, endpoint(url, "/resend"), contentTypeJSON, body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	return io.ReadAll(resp.Body)
}

// Send stores a transaction through the API of the node at url.
func (c *Client) Send(ctx context.Context, url string, req model.SendRequest) (*model.SendResponse, error) {
	var out model.SendResponse
	if err := c.postJSON(ctx, endpoint(url, "/send"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Receive decrypts a transaction through the API of the node at url.
func (c *Client) Receive(ctx context.Context, url string, req model.ReceiveRequest) (*model.ReceiveResponse, error) {
	var out model.ReceiveResponse
	if err := c.postJSON(ctx, endpoint(url, "/receive"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upcheck reports whether the node at url is serving.
func (c *Client) Upcheck(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(url, "/upcheck"), nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	drain(resp)
	return nil
}

func (c *Client) postJSON(ctx context.Context, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, url, contentTypeJSON, body)
	if err != nil {
		return err
	}
	defer drain(resp)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp)
		return nil, &StatusError{
			URL:     req.URL.String(),
			Status:  resp.StatusCode,
			Message: errorMessage(resp),
		}
	}
	return resp, nil
}

func errorMessage(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	var er model.ErrorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(data))
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
