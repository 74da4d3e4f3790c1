package summary

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_SummarizeSendsQueryAndAuthHeaders(t *testing.T) {
	var got *http.Request
	srv := newUpstream(t, http.StatusOK, `{"summary":"s"}`, func(r *http.Request) { got = r.Clone(context.Background()) })

	c := NewClient(ClientConfig{BaseURL: srv.URL, APIKey: "secret", Host: "example.rapidapi.com"})
	_, err := c.Summarize(context.Background(), "https://news.example/a?b=c&d=e f")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "/summarize", got.URL.Path)
	assert.Equal(t, "https://news.example/a?b=c&d=e f", got.URL.Query().Get("url"))
	assert.Equal(t, "3", got.URL.Query().Get("length"))
	assert.Equal(t, "secret", got.Header.Get("X-RapidAPI-Key"))
	assert.Equal(t, "example.rapidapi.com", got.Header.Get("X-RapidAPI-Host"))
}

func TestClient_SummarizeURLEscapesArticle(t *testing.T) {
	c := NewClient(ClientConfig{APIKey: "k"})
	assert.Equal(t,
		"https://"+DefaultHost+"/summarize?url=https%3A%2F%2Fx.io%2Fp%3Fq%3D1%261&length=3",
		c.summarizeURL("https://x.io/p?q=1&1"))
}

func TestClient_SummarizeURLUsesComponentEncoding(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://up"})
	assert.Equal(t,
		"http://up/summarize?url=https%3A%2F%2Fx.io%2Fa%20b!'()*~-_.%2B%2521&length=3",
		c.summarizeURL("https://x.io/a b!'()*~-_.+%21"))
}

func TestClient_SummarizeReturnsBodyVerbatim(t *testing.T) {
	body := `{"summary": "Line one.\nLine two.",  "extra": [1, 2]}`
	srv := newUpstream(t, http.StatusOK, body, nil)

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	got, err := c.Summarize(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestClient_SummarizeUpstreamErrorCarriesMessage(t *testing.T) {
	srv := newUpstream(t, http.StatusNotFound, `{"message":"not found"}`, nil)

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Summarize(context.Background(), "https://a.example")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindUpstream, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Equal(t, "not found", e.Message)
}

func TestClient_SummarizeUpstreamErrorFallbackMessage(t *testing.T) {
	for _, body := range []string{`{}`, `{"message":""}`, `{"message":0}`, `{"message":false}`, `{"message":null}`, `["x"]`, `"text"`} {
		srv := newUpstream(t, http.StatusServiceUnavailable, body, nil)

		c := NewClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.Summarize(context.Background(), "https://a.example")

		var e *Error
		require.ErrorAs(t, err, &e, body)
		assert.Equal(t, http.StatusServiceUnavailable, e.Status, body)
		assert.Equal(t, "Error fetching summary", e.Message, body)
	}
}

func TestClient_SummarizeUpstreamErrorKeepsNonStringMessage(t *testing.T) {
	tests := []struct {
		body       string
		wantDetail any
		wantText   string
	}{
		{`{"message":12}`, float64(12), "12"},
		{`{"message":{"detail":"quota"}}`, map[string]any{"detail": "quota"}, `{"detail":"quota"}`},
		{`{"message":true}`, true, "true"},
		{`{"message":[]}`, []any{}, "[]"},
	}

	for _, tt := range tests {
		srv := newUpstream(t, http.StatusTooManyRequests, tt.body, nil)

		c := NewClient(ClientConfig{BaseURL: srv.URL})
		_, err := c.Summarize(context.Background(), "https://a.example")

		var e *Error
		require.ErrorAs(t, err, &e, tt.body)
		assert.Equal(t, KindUpstream, e.Kind, tt.body)
		assert.Equal(t, tt.wantDetail, e.Detail, tt.body)
		assert.Equal(t, tt.wantText, e.Message, tt.body)
	}
}

func TestClient_SummarizeNullErrorBodyIsTransportError(t *testing.T) {
	srv := newUpstream(t, http.StatusTooManyRequests, `null`, nil)

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Summarize(context.Background(), "https://a.example")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindTransport, e.Kind)
	assert.ErrorIs(t, err, errNullErrorBody)
}

func TestClient_SummarizeNullSuccessBodyIsRelayed(t *testing.T) {
	srv := newUpstream(t, http.StatusOK, `null`, nil)

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	got, err := c.Summarize(context.Background(), "https://a.example")

	require.NoError(t, err)
	assert.Equal(t, "null", string(got))
}

func TestClient_SummarizeMalformedJSONIsTransportError(t *testing.T) {
	srv := newUpstream(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil)

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	_, err := c.Summarize(context.Background(), "https://a.example")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindTransport, e.Kind)
	assert.Contains(t, e.Message, "invalid character")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_SummarizeNetworkErrorIsTransportError(t *testing.T) {
	c := NewClient(ClientConfig{
		BaseURL: "http://upstream.invalid",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection reset by peer")
		})},
	})

	_, err := c.Summarize(context.Background(), "https://a.example")

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindTransport, e.Kind)
	assert.Contains(t, e.Message, "connection reset by peer")
}
