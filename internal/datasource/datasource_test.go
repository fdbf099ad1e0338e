package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seenimoa/tickersent/internal/config"
)

// testConfig returns settings with no waiting so tests run fast.
func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Fetch.Attempts = 3
	cfg.Fetch.Timeout = 5 * time.Second
	cfg.Fetch.Extractor = "paragraphs"
	cfg.Provider.Timezone = "UTC"
	return cfg
}

// noSleep records requested delays without waiting.
type noSleep struct {
	delays []time.Duration
}

func (n *noSleep) sleep(_ context.Context, d time.Duration) error {
	n.delays = append(n.delays, d)
	return nil
}

func TestErrHTTPError(t *testing.T) {
	e := &ErrHTTP{StatusCode: 404, Status: "404 Not Found", Body: "page not found"}
	msg := e.Error()
	if msg != "HTTP 404 404 Not Found: page not found" {
		t.Fatalf("unexpected error message: %s", msg)
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(fmt.Errorf("wrapped: %w", &ErrHTTP{StatusCode: 429})) {
		t.Error("expected wrapped 429 to be rate limited")
	}
	if IsRateLimited(&ErrHTTP{StatusCode: 500}) {
		t.Error("500 is not rate limiting")
	}
	if IsRateLimited(errors.New("boom")) {
		t.Error("plain error is not rate limiting")
	}
}

func TestDoGet(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, "hello")
		case "/moved":
			w.WriteHeader(http.StatusNotModified)
		default:
			http.Error(w, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newHTTPClient(time.Second, "tickersent-test")
	body, status, err := c.doGet(context.Background(), srv.URL+"/ok", nil)
	if err != nil {
		t.Fatalf("doGet: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if status != 200 || string(data) != "hello" {
		t.Errorf("got %d %q", status, data)
	}
	if gotUA != "tickersent-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}

	for _, path := range []string{"/missing", "/moved"} {
		_, _, err = c.doGet(context.Background(), srv.URL+path, nil)
		var he *ErrHTTP
		if !errors.As(err, &he) {
			t.Errorf("%s: err = %v, want *ErrHTTP", path, err)
		}
	}
}

func TestNewHTTPClientDefaults(t *testing.T) {
	c := newHTTPClient(0, "")
	if c.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v", c.client.Timeout)
	}
	if c.userAgent != DefaultUserAgent {
		t.Errorf("user agent = %q", c.userAgent)
	}
}
