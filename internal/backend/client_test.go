package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/folio/internal/cache"
)

const adaPayload = `{"data":{"userName":"ada","firstName":"Ada","lastName":"Lovelace","template":{"name":"template-03"}}}`

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFetch_Success(t *testing.T) {
	var gotPath, gotUA, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		fmt.Fprint(w, adaPayload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/v1/portfolio/", Options{})
	res := c.Fetch(context.Background(), "ada")

	if !res.Success {
		t.Fatalf("Fetch failed: %s (%v)", res.Message, res.Err)
	}
	if res.Err != nil {
		t.Errorf("Err = %v, want nil on success", res.Err)
	}
	if res.Message != "Portfolio Fetched successfully!" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Data == nil || res.Data.FirstName != "Ada" {
		t.Fatalf("Data = %+v", res.Data)
	}
	if res.Data.Template.Selector() != "template-03" {
		t.Errorf("template = %q", res.Data.Template.Selector())
	}
	if gotPath != "/api/v1/portfolio/ada" {
		t.Errorf("path = %q, want /api/v1/portfolio/ada", gotPath)
	}
	if gotUA != "Portfolio-App/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q", gotCT)
	}
}

func TestFetch_NotConfigured(t *testing.T) {
	c := NewClient("", Options{})
	res := c.Fetch(context.Background(), "ada")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "API URL not configured" {
		t.Errorf("Message = %q", res.Message)
	}
	if !errors.Is(res.Err, ErrNotConfigured) {
		t.Errorf("Err = %v, want ErrNotConfigured", res.Err)
	}
	if c.Configured() {
		t.Error("Configured() = true for empty base URL")
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, "server error")

	res := NewClient(srv.URL, Options{}).Fetch(context.Background(), "ada")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Data != nil {
		t.Errorf("Data = %+v, want nil", res.Data)
	}
	msg := res.Err.Error()
	if !strings.Contains(msg, "500") || !strings.Contains(msg, "server error") {
		t.Errorf("error = %q, want status and body", msg)
	}
	if res.Message != "API request failed with status 500" {
		t.Errorf("Message = %q", res.Message)
	}
	var se *StatusError
	if !errors.As(res.Err, &se) || se.StatusCode != 500 {
		t.Errorf("Err = %#v, want *StatusError 500", res.Err)
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, `{"message":"user not found"}`)

	res := NewClient(srv.URL, Options{}).Fetch(context.Background(), "ghost")
	if res.Success || !IsNotFound(res.Err) {
		t.Errorf("res = %+v, want 404 failure", res)
	}
}

func TestFetch_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, "not json")

	res := NewClient(srv.URL, Options{}).Fetch(context.Background(), "ada")

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Message != "Invalid JSON response" {
		t.Errorf("Message = %q, want %q", res.Message, "Invalid JSON response")
	}
	if !errors.Is(res.Err, ErrMalformedResponse) {
		t.Errorf("Err = %v, want ErrMalformedResponse", res.Err)
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(res.Err, &syntaxErr) {
		t.Errorf("Err = %v, want wrapped *json.SyntaxError", res.Err)
	}
}

func TestFetch_InvalidStructure(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"user": {}}`,
		`{"data": null}`,
		`{"data": "ada"}`,
		`{"data": []}`,
		`{"data": 1}`,
		`[1, 2, 3]`,
		`null`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv, _ := newTestServer(t, http.StatusOK, body)

			res := NewClient(srv.URL, Options{}).Fetch(context.Background(), "ada")
			if res.Success {
				t.Fatal("expected failure")
			}
			if res.Message != "Invalid response structure" {
				t.Errorf("Message = %q", res.Message)
			}
			if !errors.Is(res.Err, ErrMalformedResponse) {
				t.Errorf("Err = %v, want ErrMalformedResponse", res.Err)
			}
		})
	}
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewClient(url, Options{Timeout: time.Second}).Fetch(context.Background(), "ada")

	if res.Success {
		t.Fatal("expected failure")
	}
	if !errors.Is(res.Err, ErrTransport) {
		t.Errorf("Err = %v, want ErrTransport", res.Err)
	}
	if res.Message != "An error occurred while fetching the portfolio!" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	res := NewClient(srv.URL, Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), "ada")
	if res.Success || !errors.Is(res.Err, ErrTransport) {
		t.Errorf("res = %+v, want transport failure", res)
	}
}

func TestFetch_UsernameEscaped(t *testing.T) {
	var gotRawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRawPath = r.URL.EscapedPath()
		fmt.Fprint(w, adaPayload)
	}))
	defer srv.Close()

	NewClient(srv.URL, Options{}).Fetch(context.Background(), "a/b")
	if gotRawPath != "/a%2Fb" {
		t.Errorf("path = %q, want /a%%2Fb", gotRawPath)
	}
}

func TestFetch_ProductionCachesWithinWindow(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusOK, adaPayload)

	c := NewClient(srv.URL, Options{Cache: cache.NewMemory(), Revalidate: time.Minute})
	for range 3 {
		if res := c.Fetch(context.Background(), "ada"); !res.Success {
			t.Fatalf("Fetch failed: %v", res.Err)
		}
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}

	if err := c.Invalidate(context.Background(), "ada"); err != nil {
		t.Fatal(err)
	}
	c.Fetch(context.Background(), "ada")
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hits after invalidate = %d, want 2", n)
	}
}

func TestFetch_CachedResultsAreIndependent(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, adaPayload)
	c := NewClient(srv.URL, Options{Cache: cache.NewMemory()})

	a := c.Fetch(context.Background(), "ada")
	a.Data.FirstName = "mutated"

	b := c.Fetch(context.Background(), "ada")
	if b.Data.FirstName != "Ada" {
		t.Errorf("second result shares state with first: %q", b.Data.FirstName)
	}
}

func TestFetch_DevelopmentBypassesCache(t *testing.T) {
	var gotCacheControl string
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotCacheControl = r.Header.Get("Cache-Control")
		fmt.Fprint(w, adaPayload)
	}))
	defer srv.Close()

	store := cache.NewMemory()
	c := NewClient(srv.URL, Options{Development: true, Cache: store})
	c.Fetch(context.Background(), "ada")
	c.Fetch(context.Background(), "ada")

	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hits = %d, want 2", n)
	}
	if store.Len() != 0 {
		t.Errorf("development mode wrote %d cache entries", store.Len())
	}
	if gotCacheControl != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", gotCacheControl)
	}
}

func TestFetch_FailuresNotCached(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusBadGateway, "upstream down")
	c := NewClient(srv.URL, Options{Cache: cache.NewMemory()})

	c.Fetch(context.Background(), "ada")
	c.Fetch(context.Background(), "ada")
	if n := hits.Load(); n != 2 {
		t.Errorf("upstream hits = %d, want 2", n)
	}
}

func TestFetch_ConcurrentMissesCollapse(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		fmt.Fprint(w, adaPayload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Options{Cache: cache.NewMemory()})

	var wg sync.WaitGroup
	results := make([]FetchResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Fetch(context.Background(), "ada")
		}(i)
	}

	// Let every goroutine reach the singleflight group before releasing.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Errorf("upstream hits = %d, want 1", n)
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("result %d failed: %v", i, r.Err)
		}
	}
}

func TestFetch_CallerCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, adaPayload)
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, Options{Cache: cache.NewMemory()})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := c.Fetch(ctx, "ada")
	if res.Success || !errors.Is(res.Err, ErrTransport) {
		t.Errorf("res = %+v, want transport failure", res)
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want wrapped deadline exceeded", res.Err)
	}
}
