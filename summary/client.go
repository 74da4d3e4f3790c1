package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultHost = "article-extractor-and-summarizer.p.rapidapi.com"

	// summaryLength is the number of paragraphs asked from the upstream.
	summaryLength = "3"
)

var errNullErrorBody = errors.New("upstream error body is null")

type ClientConfig struct {
	// BaseURL defaults to https://<Host>.
	BaseURL string
	APIKey  string
	Host    string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls the article summarization API.
type Client struct {
	baseURL    string
	apiKey     string
	host       string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	log := cfg.Logger.Named("upstream")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &loggingTransport{next: http.DefaultTransport, log: log},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		host:       cfg.Host,
		httpClient: httpClient,
		log:        log,
	}
}

// componentEscaper turns url.QueryEscape output into URI component
// encoding: spaces as %20 and !'()* left literal.
var componentEscaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// summarizeURL builds the upstream URL with the article URL percent-encoded.
func (c *Client) summarizeURL(articleURL string) string {
	escaped := componentEscaper.Replace(url.QueryEscape(articleURL))
	return fmt.Sprintf("%s/summarize?url=%s&length=%s", c.baseURL, escaped, summaryLength)
}

// Summarize fetches the summary of articleURL and returns the upstream JSON
// body untouched. Failures are *Error values: KindUpstream for non-2xx
// answers, KindTransport for network and decoding errors.
func (c *Client) Summarize(ctx context.Context, articleURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.summarizeURL(articleURL), nil)
	if err != nil {
		return nil, TransportError(err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, TransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, TransportError(err)
	}

	// the body is parsed before the status is looked at, so a non-JSON
	// error page is a transport error too
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, TransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if data == nil {
			return nil, TransportError(errNullErrorBody)
		}
		return nil, UpstreamError(resp.StatusCode, messageOf(data))
	}

	return json.RawMessage(body), nil
}

// messageOf returns the "message" field of a JSON object, nil otherwise.
func messageOf(data any) any {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	return obj["message"]
}

type loggingTransport struct {
	next http.RoundTripper
	log  *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.log.Warn("upstream request failed",
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	t.log.Debug("upstream request completed",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}
