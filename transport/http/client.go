package transporthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/ceskypane/abwars/internal/backoff"
)

var (
	ErrUnauthorized    = errors.New("transport/http: unauthorized")
	ErrRefreshFailed   = errors.New("transport/http: token refresh failed")
	ErrRetriesExceeded = errors.New("transport/http: retries exceeded")
)

// IAM error codes that mean the bearer token is no longer accepted.
const (
	iamCodeInvalidToken  = 20001
	iamCodeTokenRevoked  = 20022
	oauthErrInvalidToken = "invalid_token"
)

type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

type Config struct {
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration

	CorrelationIDHeader string
	CorrelationID       func() string
	UserAgent           string
}

type Request struct {
	Method        string
	URL           string
	Headers       map[string]string
	Body          []byte
	CorrelationID string

	// Route labels request metrics. Defaults to Method.
	Route string
}

type Response struct {
	StatusCode int
	Headers    stdhttp.Header
	Body       []byte
}

// APIError is a non-2xx response decoded from the AccelByte error envelope.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "transport/http: api error"
	}

	if e.Code != 0 {
		return "api error status=" + strconv.Itoa(e.StatusCode) + " code=" + strconv.Itoa(e.Code) + " message=" + e.Message
	}

	return "api error status=" + strconv.Itoa(e.StatusCode) + " message=" + e.Message
}

type Client struct {
	httpClient    *stdhttp.Client
	tokenProvider TokenProvider
	cfg           Config
	sleep         func(time.Duration)
}

func NewClient(httpClient *stdhttp.Client, tokenProvider TokenProvider, cfg Config) *Client {
	if httpClient == nil {
		httpClient = stdhttp.DefaultClient
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 100 * time.Millisecond
	}

	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Second
	}

	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}

	if cfg.CorrelationIDHeader == "" {
		cfg.CorrelationIDHeader = "X-Ab-Correlation-Id"
	}

	return &Client{
		httpClient:    httpClient,
		tokenProvider: tokenProvider,
		cfg:           cfg,
		sleep:         time.Sleep,
	}
}

func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	var (
		attempt   int
		refreshed bool
	)

	route := req.Route
	if route == "" {
		route = req.Method
	}

	for {
		attempt++

		token, err := c.accessToken(ctx)
		if err != nil {
			return Response{}, err
		}

		started := time.Now()
		resp, err := c.doRequest(ctx, req, token)
		observeRequest(route, resp.StatusCode, err, time.Since(started))
		if err != nil {
			if attempt >= c.cfg.MaxRetries+1 {
				return Response{}, oops.Code("HTTP_TRANSPORT").With("route", route).Wrap(err)
			}

			if !c.sleepContext(ctx, c.backoff(attempt-1)) {
				return Response{}, ctx.Err()
			}

			continue
		}

		if isAuthFailure(resp) {
			if refreshed || c.tokenProvider == nil {
				return resp, ErrUnauthorized
			}

			refreshErr := c.tokenProvider.Refresh(ctx)
			if refreshErr != nil {
				return resp, oops.Code("HTTP_REFRESH_FAILED").Wrapf(ErrRefreshFailed, "%v", refreshErr)
			}

			refreshed = true
			continue
		}

		if resp.StatusCode == stdhttp.StatusTooManyRequests {
			if attempt >= c.cfg.MaxRetries+1 {
				return resp, oops.Code("HTTP_RATE_LIMITED").With("route", route).Wrap(ErrRetriesExceeded)
			}

			delay := retryAfterDelay(resp.Headers.Get("Retry-After"), c.backoff(attempt-1))
			if !c.sleepContext(ctx, delay) {
				return Response{}, ctx.Err()
			}

			continue
		}

		if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
			if attempt >= c.cfg.MaxRetries+1 {
				return resp, oops.Code("HTTP_UPSTREAM").With("route", route).With("status", resp.StatusCode).Wrap(ErrRetriesExceeded)
			}

			if !c.sleepContext(ctx, c.backoff(attempt-1)) {
				return Response{}, ctx.Err()
			}

			continue
		}

		return resp, nil
	}
}

// DoJSON sends in as a JSON body and decodes a 2xx response into out. Any
// other status is returned as *APIError.
func (c *Client) DoJSON(ctx context.Context, method, url, route string, in, out any) error {
	req := Request{Method: method, URL: url, Route: route, Headers: map[string]string{"Accept": "application/json"}}
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return oops.Code("HTTP_ENCODE").With("route", route).Wrap(err)
		}

		req.Body = body
		req.Headers["Content-Type"] = "application/json"
	}

	resp, err := c.Request(ctx, req)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeAPIError(resp)
	}

	if out == nil || len(resp.Body) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body, out); err != nil {
		return oops.Code("HTTP_DECODE").With("route", route).Wrap(err)
	}

	return nil
}

func (c *Client) doRequest(ctx context.Context, req Request, accessToken string) (Response, error) {
	reader := bytes.NewReader(req.Body)
	httpReq, err := stdhttp.NewRequestWithContext(ctx, req.Method, req.URL, reader)
	if err != nil {
		return Response{}, err
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if accessToken != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	if c.cfg.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	correlationID := req.CorrelationID
	if correlationID == "" && c.cfg.CorrelationID != nil {
		correlationID = c.cfg.CorrelationID()
	}
	if correlationID != "" {
		httpReq.Header.Set(c.cfg.CorrelationIDHeader, correlationID)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, err
	}

	return Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokenProvider == nil {
		return "", nil
	}

	return c.tokenProvider.AccessToken(ctx)
}

func (c *Client) backoff(attempt int) time.Duration {
	return backoff.Exponential(attempt, c.cfg.MinBackoff, c.cfg.MaxBackoff)
}

func (c *Client) sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	done := make(chan struct{})
	go func() {
		c.sleep(d)
		close(done)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-done:
		return true
	}
}

type errorBody struct {
	ErrorCode    json.Number `json:"errorCode"`
	NumericCode  json.Number `json:"numericErrorCode"`
	ErrorMessage string      `json:"errorMessage"`
	Error        string      `json:"error"`
	Description  string      `json:"error_description"`
}

func parseErrorBody(body []byte) *errorBody {
	if len(body) == 0 {
		return nil
	}

	var payload errorBody
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	if payload.ErrorCode == "" && payload.NumericCode == "" && payload.Error == "" {
		return nil
	}

	return &payload
}

func (b *errorBody) code() int {
	for _, raw := range []json.Number{b.ErrorCode, b.NumericCode} {
		if raw == "" {
			continue
		}

		if n, err := raw.Int64(); err == nil {
			return int(n)
		}
	}

	return 0
}

// isAuthFailure reports whether resp should trigger a single token refresh.
// A 401 whose body names a non-token IAM error is a permission problem and
// is surfaced as is.
func isAuthFailure(resp Response) bool {
	parsed := parseErrorBody(resp.Body)
	if parsed != nil {
		if strings.EqualFold(parsed.Error, oauthErrInvalidToken) {
			return true
		}

		switch parsed.code() {
		case iamCodeInvalidToken, iamCodeTokenRevoked:
			return true
		}

		return false
	}

	return resp.StatusCode == stdhttp.StatusUnauthorized
}

// DecodeAPIError converts a failed response into *APIError.
func DecodeAPIError(resp Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	if parsed := parseErrorBody(resp.Body); parsed != nil {
		apiErr.Code = parsed.code()
		apiErr.Message = parsed.ErrorMessage
		if apiErr.Message == "" {
			apiErr.Message = parsed.Description
		}
		if apiErr.Message == "" {
			apiErr.Message = parsed.Error
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(resp.Body))
	}

	return apiErr
}

func retryAfterDelay(header string, fallback time.Duration) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return fallback
	}

	if sec, err := strconv.Atoi(header); err == nil {
		if sec < 0 {
			return fallback
		}

		return time.Duration(sec) * time.Second
	}

	if ts, err := stdhttp.ParseTime(header); err == nil {
		delay := time.Until(ts)
		if delay > 0 {
			return delay
		}
	}

	return fallback
}
