package who

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ayushsetu/platform/pkg/common/config"
	"github.com/ayushsetu/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		WHOTokenEndpoint:  server.URL + "/connect/token",
		WHOAPIBaseURL:     server.URL,
		WHOReleaseID:      "2024-01",
		WHOClientID:       "client",
		WHOClientSecret:   "secret",
		WHORequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg)
}

func serveToken(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer","expires_in":3600}`))
}

func TestSearchParsesEntitiesAndStripsHTML(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/connect/token":
			serveToken(w)
		case "/icd/release/11/2024-01/mms/search":
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("unexpected authorization header %q", got)
			}
			if got := r.Header.Get("API-Version"); got != "v2" {
				t.Errorf("unexpected api version header %q", got)
			}
			if got := r.URL.Query().Get("q"); got != "obstructive jaundice" {
				t.Errorf("unexpected query %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"destinationEntities":[
				{"theCode":"ME20.1","title":"<em class='found'>Jaundice</em>","score":0.9},
				{"theCode":"","title":"No code","score":0.5},
				{"theCode":"DB90","title":"Biliary obstruction","score":0.4}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	results, err := client.Search(context.Background(), "obstructive jaundice")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Code != "ME20.1" || results[0].Title != "Jaundice" {
		t.Fatalf("expected stripped title, got %+v", results[0])
	}
	if results[0].Score != 0.9 {
		t.Fatalf("expected score carried through, got %v", results[0].Score)
	}
}

func TestSearchEmptyTermShortCircuits(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for an empty term, got %s", r.URL.Path)
	})
	results, err := client.Search(context.Background(), "")
	if err != nil || results != nil {
		t.Fatalf("expected nil, nil for empty term, got %v %v", results, err)
	}
}

func TestSearchRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/connect/token":
			serveToken(w)
		case "/icd/release/11/2024-01/mms/search":
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"destinationEntities":[{"theCode":"MG26","title":"Fever","score":0.7}]}`))
		}
	})

	results, err := client.Search(context.Background(), "fever")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected a retry after rate limit, got %d attempts", attempts)
	}
	if len(results) != 1 || results[0].Code != "MG26" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSearchSurfacesPersistentFailure(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/connect/token":
			serveToken(w)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	})
	if _, err := client.Search(context.Background(), "fever"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
