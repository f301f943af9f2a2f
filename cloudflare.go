package cfddns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.cloudflare.com/client/v4"

// Record is a read-only snapshot of one DNS record as reported by the zone.
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Provider is the surface of the DNS provider that an update cycle needs.
//
// The three verify operations answer whether the configured credential, zone,
// and record check out: a definite provider-side refusal is (false, nil),
// while a transport failure is an error. ListRecords exists for operator
// troubleshooting only; it is never used to select a record automatically.
type Provider interface {
	VerifyCredential(ctx context.Context) (bool, error)
	VerifyZone(ctx context.Context) (bool, error)
	VerifyRecord(ctx context.Context) (bool, error)
	CurrentContent(ctx context.Context) (string, error)
	ListRecords(ctx context.Context) ([]Record, error)
	Write(ctx context.Context, content string) error
}

// Cloudflare manages a single DNS record through the Cloudflare v4 API.
// It implements Provider. Use NewCloudflare to construct one.
type Cloudflare struct {
	token      string
	zoneID     string
	recordID   string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type CloudflareOption func(*Cloudflare) error

// WithBaseURL overrides the API base URL. Useful for testing.
func WithBaseURL(u string) CloudflareOption {
	return func(cf *Cloudflare) error {
		if u == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		cf.baseURL = u
		return nil
	}
}

func WithHTTPClient(httpclient *http.Client) CloudflareOption {
	return func(cf *Cloudflare) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		cf.httpClient = httpclient
		return nil
	}
}

func WithLogger(logger *zap.Logger) CloudflareOption {
	return func(cf *Cloudflare) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		cf.logger = logger
		return nil
	}
}

func NewCloudflare(token, zoneID, recordID string, options ...CloudflareOption) (*Cloudflare, error) {
	if token == "" || zoneID == "" || recordID == "" {
		return nil, fmt.Errorf("cfddns.NewCloudflare: token, zone ID, and record ID cannot be empty")
	}
	cf := &Cloudflare{
		token:      token,
		zoneID:     zoneID,
		recordID:   recordID,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
	}
	for i, opt := range options {
		if err := opt(cf); err != nil {
			return nil, fmt.Errorf("cfddns.NewCloudflare: option %d returned an error: %w", i, err)
		}
	}
	return cf, nil
}

// VerifyCredential reports whether the configured API token authenticates.
func (cf *Cloudflare) VerifyCredential(ctx context.Context) (bool, error) {
	return cf.check(ctx, "verify token", "/user/tokens/verify")
}

// VerifyZone reports whether the configured zone is accessible under the token.
func (cf *Cloudflare) VerifyZone(ctx context.Context) (bool, error) {
	return cf.check(ctx, "verify zone", "/zones/"+cf.zoneID)
}

// VerifyRecord reports whether the configured record exists in the zone.
func (cf *Cloudflare) VerifyRecord(ctx context.Context) (bool, error) {
	return cf.check(ctx, "verify record", cf.recordPath())
}

// CurrentContent returns the record's content field, expected to hold an
// IPv4 address. A successful response without content is ErrMissingContent.
func (cf *Cloudflare) CurrentContent(ctx context.Context) (string, error) {
	resp, err := cf.do(ctx, http.MethodGet, cf.recordPath(), nil)
	if err != nil {
		return "", fmt.Errorf("reading record: %w", err)
	}
	defer resp.Body.Close()
	if !success(resp) {
		return "", &StatusError{Op: "read record", StatusCode: resp.StatusCode, Status: resp.Status}
	}
	var envelope struct {
		Result Record `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("error decoding record response: %w", err)
	}
	if envelope.Result.Content == "" {
		return "", ErrMissingContent
	}
	return envelope.Result.Content, nil
}

// ListRecords enumerates every record in the zone.
func (cf *Cloudflare) ListRecords(ctx context.Context) ([]Record, error) {
	resp, err := cf.do(ctx, http.MethodGet, "/zones/"+cf.zoneID+"/dns_records", nil)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer resp.Body.Close()
	if !success(resp) {
		return nil, &StatusError{Op: "list records", StatusCode: resp.StatusCode, Status: resp.Status}
	}
	var envelope struct {
		Result []Record `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("error decoding record listing: %w", err)
	}
	return envelope.Result, nil
}

// Write overwrites the record's content with an A record pointing at content.
// The record keeps the minimal cache TTL and proxying stays disabled.
func (cf *Cloudflare) Write(ctx context.Context, content string) error {
	body := struct {
		Type    string `json:"type"`
		Name    string `json:"name"`
		Content string `json:"content"`
		TTL     int    `json:"ttl"`
		Proxied bool   `json:"proxied"`
	}{
		Type:    "A",
		Name:    "",
		Content: content,
		TTL:     1,
		Proxied: false,
	}
	resp, err := cf.do(ctx, http.MethodPut, cf.recordPath(), body)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	defer resp.Body.Close()
	if !success(resp) {
		return fmt.Errorf("%w: %w", ErrWriteRejected, &StatusError{Op: "update record", StatusCode: resp.StatusCode, Status: resp.Status})
	}
	cf.logger.Debug("record updated", zap.String("content", content))
	return nil
}

// check performs a GET whose only interesting result is whether the provider
// said yes: non-success statuses mean "no", not "broken".
func (cf *Cloudflare) check(ctx context.Context, op, path string) (bool, error) {
	resp, err := cf.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if !success(resp) {
		cf.logger.Debug("verification refused",
			zap.String("op", op),
			zap.String("status", resp.Status),
		)
		return false, nil
	}
	return true, nil
}

func (cf *Cloudflare) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, cf.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cf.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := cf.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	return resp, nil
}

func (cf *Cloudflare) recordPath() string {
	return "/zones/" + cf.zoneID + "/dns_records/" + cf.recordID
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
