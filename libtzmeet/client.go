package libtzmeet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/njt/tzmeet/internal/logutil"
	"github.com/njt/tzmeet/internal/metrics"
)

const (
	// DefaultBaseURL is the base URL of the public time zone conversion API
	DefaultBaseURL = "https://timeapi.io"

	// ConvertPath is the conversion endpoint under the base URL
	ConvertPath = "/api/Conversion/ConvertTimeZone"

	// DefaultTimeout bounds a single conversion call
	DefaultTimeout = 10 * time.Second
)

// ConversionRequest is the body sent to the conversion service
type ConversionRequest struct {
	FromTimeZone string `json:"fromTimeZone"`
	DateTime     string `json:"dateTime"` // zone-naive ISO 8601
	ToTimeZone   string `json:"toTimeZone"`
	DSTAmbiguity string `json:"dstAmbiguity"`
}

// ConvertedDateTime is the nested result of a conversion
type ConvertedDateTime struct {
	DateTime  string `json:"dateTime"` // ISO 8601 in the target zone
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	TimeZone  string `json:"timeZone,omitempty"`
	DSTActive bool   `json:"dstActive,omitempty"`
}

// ConversionResult is the response of the conversion service
type ConversionResult struct {
	FromTimezone     string             `json:"fromTimezone,omitempty"`
	FromDateTime     string             `json:"fromDateTime,omitempty"`
	ToTimeZone       string             `json:"toTimeZone,omitempty"`
	ConversionResult *ConvertedDateTime `json:"conversionResult"`
}

// Converter converts a date-time between two named zones
type Converter interface {
	Convert(ctx context.Context, req *ConversionRequest) (*ConversionResult, error)
}

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL           string
	Timeout           time.Duration
	DSTAmbiguity      string  // sent when a request leaves it empty
	RequestsPerSecond float64 // 0 = unlimited
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Client is a time zone conversion API client
type Client struct {
	httpClient   *http.Client
	baseURL      string
	dstAmbiguity string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient creates a new conversion client
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		}
	}

	c := &Client{
		httpClient:   httpClient,
		baseURL:      baseURL,
		dstAmbiguity: opts.DSTAmbiguity,
		logger:       logutil.NoopIfNil(opts.Logger),
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c
}

// Convert converts req.DateTime from req.FromTimeZone to req.ToTimeZone.
// Every failure wraps ErrConversionService, except a locally rejected request
// which wraps ErrInvalidInput. The call is attempted once.
func (c *Client) Convert(ctx context.Context, req *ConversionRequest) (*ConversionResult, error) {
	if req == nil {
		return nil, invalidInput("conversion request is required")
	}
	if req.FromTimeZone == "" || req.ToTimeZone == "" || req.DateTime == "" {
		return nil, invalidInput("fromTimeZone, dateTime and toTimeZone are required")
	}

	body := *req
	if body.DSTAmbiguity == "" {
		body.DSTAmbiguity = c.dstAmbiguity
	}

	start := time.Now()
	result, err := c.convert(ctx, &body)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordConversion("error", elapsed.Seconds())
		c.logger.Warn("time zone conversion failed",
			"from", body.FromTimeZone, "to", body.ToTimeZone, "dateTime", body.DateTime,
			"duration", elapsed, "error", err)
		return nil, err
	}

	metrics.RecordConversion("success", elapsed.Seconds())
	c.logger.Debug("time zone converted",
		"from", body.FromTimeZone, "to", body.ToTimeZone, "dateTime", body.DateTime,
		"result", result.ConversionResult.DateTime, "duration", elapsed)

	return result, nil
}

func (c *Client) convert(ctx context.Context, body *ConversionRequest) (*ConversionResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", ErrConversionService, err)
		}
	}

	data, err := c.post(ctx, ConvertPath, body)
	if err != nil {
		return nil, err
	}

	var result ConversionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal response: %w", ErrConversionService, err)
	}

	if result.ConversionResult == nil || result.ConversionResult.DateTime == "" {
		return nil, conversionFailed("response has no conversion result")
	}

	return &result, nil
}

// post performs a JSON POST request against the conversion service
func (c *Client) post(ctx context.Context, path string, data any) ([]byte, error) {
	url := c.baseURL + path

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %w", ErrConversionService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrConversionService, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrConversionService, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrConversionService, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, conversionFailed("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
