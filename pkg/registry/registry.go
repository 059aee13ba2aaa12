// Package registry talks to the npm registry: package metadata (including
// deprecation status) and the search endpoint used to suggest replacements.
// Both lookups go through the persistent cache unless a refresh is forced.
package registry

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/depshift/depshift/internal/utils"
	"github.com/depshift/depshift/pkg/cache"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const (
	DefaultRegistryURL = "https://registry.npmjs.org"
	DefaultSearchURL   = "https://registry.npmjs.org/-/v1/search"

	userAgent = "depshift (+https://github.com/depshift/depshift)"
)

// FetchError reports a failed registry lookup. Callers must treat it as
// "status unknown" for that package, never as "not deprecated".
type FetchError struct {
	Package string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("registry lookup failed for %s: %v", e.Package, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PackageInfo is the slice of registry metadata we care about. The registry
// document is much larger; everything else is ignored.
type PackageInfo struct {
	Name       string
	Latest     string
	Deprecated string // deprecation message for the latest version, "" when healthy
}

// IsDeprecated reports whether the latest published version carries a
// deprecation message.
func (i *PackageInfo) IsDeprecated() bool {
	return strings.TrimSpace(i.Deprecated) != ""
}

// Client fetches package metadata and replacement suggestions.
type Client struct {
	RegistryURL string
	SearchURL   string

	store *cache.Store
	http  *retryablehttp.Client
}

// NewClient builds a client on top of the given lookup cache. Empty URLs
// fall back to the public npm endpoints.
func NewClient(registryURL, searchURL string, store *cache.Store) *Client {
	if registryURL == "" {
		registryURL = DefaultRegistryURL
	}
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 250 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second

	return &Client{
		RegistryURL: strings.TrimSuffix(registryURL, "/"),
		SearchURL:   searchURL,
		store:       store,
		http:        retryClient,
	}
}

// FetchInfo returns registry metadata for pkg. With forceRefresh false a
// cached document is reused without any network access; with forceRefresh
// true the registry is always queried and the cache entry overwritten.
func (c *Client) FetchInfo(pkg string, forceRefresh bool) (*PackageInfo, error) {
	key := cache.InfoKeyPrefix + pkg

	if !forceRefresh {
		if body, ok := c.store.Get(key); ok {
			utils.Log.Debug("Cache hit for ", pkg)
			return parsePackageInfo(pkg, body)
		}
	}

	body, err := c.get(c.RegistryURL + "/" + url.PathEscape(pkg))
	if err != nil {
		return nil, &FetchError{Package: pkg, Err: err}
	}

	info, err := parsePackageInfo(pkg, body)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, body)
	return info, nil
}

// FetchAlternative returns a suggested replacement package for pkg, or ""
// when none could be found. It never fails: search errors degrade to the
// not-found answer, and that answer is cached like any other.
func (c *Client) FetchAlternative(pkg string, forceRefresh bool) string {
	key := cache.AltKeyPrefix + pkg

	if !forceRefresh {
		if alt, ok := c.store.Get(key); ok {
			utils.Log.Debug("Cache hit for alternative to ", pkg)
			return alt
		}
	}

	alt := ""
	body, err := c.get(c.SearchURL + "?text=" + url.QueryEscape(pkg+" replacement") + "&size=1")
	if err != nil {
		utils.Log.Warn("Alternative search failed for ", pkg, ": ", err)
	} else {
		// Best effort: take the first hit verbatim. Nobody checked that
		// it's an API-compatible substitute.
		alt = gjson.Get(body, "objects.0.package.name").Str
	}

	c.store.Set(key, alt)
	return alt
}

func (c *Client) get(rawURL string) (string, error) {
	req, err := retryablehttp.NewRequest("GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != 200 {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return string(bodyBytes), nil
}

func parsePackageInfo(pkg, body string) (*PackageInfo, error) {
	if !gjson.Valid(body) {
		return nil, &FetchError{Package: pkg, Err: fmt.Errorf("registry returned invalid JSON")}
	}

	latest := gjson.Get(body, "dist-tags.latest").Str
	if latest == "" {
		return nil, &FetchError{Package: pkg, Err: fmt.Errorf("registry document has no dist-tags.latest")}
	}

	return &PackageInfo{
		Name:       pkg,
		Latest:     latest,
		Deprecated: gjson.Get(body, "versions."+gjsonEscape(latest)+".deprecated").Str,
	}, nil
}

// gjsonEscape escapes a literal map key for use inside a gjson path.
// Version strings contain dots, which gjson would otherwise treat as path
// separators.
func gjsonEscape(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "\\", `\\`)
	return r.Replace(key)
}
