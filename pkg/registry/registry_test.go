package registry

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/depshift/depshift/pkg/cache"
)

// fakeNpm serves registry metadata and search results and counts how often
// each endpoint is actually hit.
type fakeNpm struct {
	infoHits   map[string]int
	searchHits int

	deprecated  map[string]string // package -> deprecation message
	alternative string            // single search answer, "" for empty result list
	failInfo    bool
	failSearch  bool
	brokenJSON  bool
}

func newFakeNpm() *fakeNpm {
	return &fakeNpm{
		infoHits:   make(map[string]int),
		deprecated: make(map[string]string),
	}
}

func (f *fakeNpm) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/-/v1/search" {
			f.searchHits++
			if f.failSearch {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			if f.alternative == "" {
				fmt.Fprint(w, `{"objects":[],"total":0}`)
				return
			}
			fmt.Fprintf(w, `{"objects":[{"package":{"name":%q}}],"total":1}`, f.alternative)
			return
		}

		pkg := r.URL.Path[1:]
		f.infoHits[pkg]++
		if f.failInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if f.brokenJSON {
			fmt.Fprint(w, `{"dist-tags":`)
			return
		}
		msg := f.deprecated[pkg]
		fmt.Fprintf(w, `{"name":%q,"dist-tags":{"latest":"2.1.0"},"versions":{"2.1.0":{"version":"2.1.0","deprecated":%q}}}`, pkg, msg)
	}))
}

func newTestClient(t *testing.T, f *fakeNpm) (*Client, *httptest.Server) {
	t.Helper()
	srv := f.server()
	t.Cleanup(srv.Close)
	store := cache.Open(filepath.Join(t.TempDir(), "cache.sqlite"))
	t.Cleanup(func() { store.Close() })
	return NewClient(srv.URL, srv.URL+"/-/v1/search", store), srv
}

func TestFetchInfoParsesDeprecation(t *testing.T) {
	f := newFakeNpm()
	f.deprecated["request"] = "request has been deprecated"
	c, _ := newTestClient(t, f)

	info, err := c.FetchInfo("request", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Latest != "2.1.0" {
		t.Fatalf("expected latest 2.1.0, got %s", info.Latest)
	}
	if !info.IsDeprecated() {
		t.Fatal("expected request to be deprecated")
	}
	if info.Deprecated != "request has been deprecated" {
		t.Fatalf("unexpected message: %q", info.Deprecated)
	}
}

func TestFetchInfoHealthyPackage(t *testing.T) {
	f := newFakeNpm()
	c, _ := newTestClient(t, f)

	info, err := c.FetchInfo("express", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.IsDeprecated() {
		t.Fatal("expected express to be healthy")
	}
}

func TestFetchInfoCacheIdempotence(t *testing.T) {
	f := newFakeNpm()
	c, _ := newTestClient(t, f)

	first, err := c.FetchInfo("left-pad", false)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.FetchInfo("left-pad", false)
	if err != nil {
		t.Fatal(err)
	}

	if f.infoHits["left-pad"] != 1 {
		t.Fatalf("expected exactly 1 registry hit, got %d", f.infoHits["left-pad"])
	}
	if *first != *second {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestFetchInfoRefreshBypassesCache(t *testing.T) {
	f := newFakeNpm()
	c, _ := newTestClient(t, f)

	if _, err := c.FetchInfo("left-pad", false); err != nil {
		t.Fatal(err)
	}

	// The registry changes its mind; only a forced refresh sees it.
	f.deprecated["left-pad"] = "use padStart instead"

	info, err := c.FetchInfo("left-pad", false)
	if err != nil {
		t.Fatal(err)
	}
	if info.IsDeprecated() {
		t.Fatal("non-refresh lookup must serve the stale cache entry")
	}

	info, err = c.FetchInfo("left-pad", true)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDeprecated() {
		t.Fatal("forced refresh must see the new registry state")
	}
	if f.infoHits["left-pad"] != 2 {
		t.Fatalf("expected 2 registry hits, got %d", f.infoHits["left-pad"])
	}

	// And the refreshed value overwrote the cache entry.
	info, err = c.FetchInfo("left-pad", false)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDeprecated() {
		t.Fatal("cache should hold the refreshed value")
	}
	if f.infoHits["left-pad"] != 2 {
		t.Fatalf("expected no extra hit after refresh, got %d", f.infoHits["left-pad"])
	}
}

func TestFetchInfoErrorIsFetchError(t *testing.T) {
	f := newFakeNpm()
	f.failInfo = true
	c, _ := newTestClient(t, f)

	_, err := c.FetchInfo("ghost-package", false)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.Package != "ghost-package" {
		t.Fatalf("unexpected package in error: %s", fe.Package)
	}
}

func TestFetchInfoBrokenBodyIsFetchError(t *testing.T) {
	f := newFakeNpm()
	f.brokenJSON = true
	c, _ := newTestClient(t, f)

	_, err := c.FetchInfo("weird", false)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError for unparseable body, got %v", err)
	}
}

func TestFetchAlternativeFirstResult(t *testing.T) {
	f := newFakeNpm()
	f.alternative = "string-pad"
	c, _ := newTestClient(t, f)

	if alt := c.FetchAlternative("left-pad", false); alt != "string-pad" {
		t.Fatalf("expected string-pad, got %q", alt)
	}
}

func TestFetchAlternativeCachesNotFound(t *testing.T) {
	f := newFakeNpm()
	c, _ := newTestClient(t, f)

	if alt := c.FetchAlternative("obscure-pkg", false); alt != "" {
		t.Fatalf("expected empty suggestion, got %q", alt)
	}
	// Second lookup answers from cache, even for the not-found outcome.
	if alt := c.FetchAlternative("obscure-pkg", false); alt != "" {
		t.Fatalf("expected empty suggestion, got %q", alt)
	}
	if f.searchHits != 1 {
		t.Fatalf("expected 1 search hit, got %d", f.searchHits)
	}
}

func TestFetchAlternativeSearchFailureDegradesToEmpty(t *testing.T) {
	f := newFakeNpm()
	f.failSearch = true
	c, _ := newTestClient(t, f)

	if alt := c.FetchAlternative("left-pad", false); alt != "" {
		t.Fatalf("expected empty suggestion on search failure, got %q", alt)
	}
}

func TestFetchAlternativeRefreshBypassesCache(t *testing.T) {
	f := newFakeNpm()
	f.alternative = "string-pad"
	c, _ := newTestClient(t, f)

	c.FetchAlternative("left-pad", false)
	f.alternative = "pad-left"

	if alt := c.FetchAlternative("left-pad", false); alt != "string-pad" {
		t.Fatalf("expected cached string-pad, got %q", alt)
	}
	if alt := c.FetchAlternative("left-pad", true); alt != "pad-left" {
		t.Fatalf("expected refreshed pad-left, got %q", alt)
	}
	if f.searchHits != 2 {
		t.Fatalf("expected 2 search hits, got %d", f.searchHits)
	}
}
