package configcat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// httpFetcher is the default Fetcher. It downloads config JSON
// documents from the ConfigCat CDN, following the redirections published
// in the config's preferences.
type httpFetcher struct {
	sdkKey      string
	logger      *leveledLogger
	client      *http.Client
	userAgent   string
	urlIsCustom bool

	// mu guards baseURL, which is updated when the CDN asks
	// for a redirection.
	mu      sync.Mutex
	baseURL string
}

type httpFetcherConfig struct {
	sdkKey         string
	baseURL        string
	dataGovernance DataGovernance
	transport      http.RoundTripper
	timeout        time.Duration
	pollingMode    PollingMode
}

func newHTTPFetcher(cfg httpFetcherConfig, logger *leveledLogger) *httpFetcher {
	f := &httpFetcher{
		sdkKey:    cfg.sdkKey,
		logger:    logger,
		userAgent: "ConfigCat-Go/" + cfg.pollingMode.String() + "-" + version,
		client: &http.Client{
			Timeout:   cfg.timeout,
			Transport: cfg.transport,
		},
	}
	if cfg.timeout < 0 {
		f.client.Timeout = 0
	}
	if cfg.baseURL == "" {
		if cfg.dataGovernance == Global {
			f.baseURL = globalBaseURL
		} else {
			f.baseURL = euOnlyBaseURL
		}
	} else {
		f.urlIsCustom = true
		f.baseURL = strings.TrimRight(cfg.baseURL, "/")
	}
	return f
}

// Fetch implements Fetcher.
func (f *httpFetcher) Fetch(ctx context.Context, etag string) FetchResponse {
	f.mu.Lock()
	baseURL := f.baseURL
	f.mu.Unlock()

	resp, newBaseURL := f.fetchHTTP(ctx, baseURL, etag)
	if newBaseURL != "" && newBaseURL != baseURL {
		f.mu.Lock()
		f.baseURL = newBaseURL
		f.mu.Unlock()
	}
	return resp
}

// fetchHTTP fetches the configuration while respecting redirects.
// It returns the response and the base URL to use for the next fetch.
func (f *httpFetcher) fetchHTTP(ctx context.Context, baseURL string, etag string) (FetchResponse, string) {
	f.logger.Debugf("fetching from %v", baseURL)
	for i := 0; i < 3; i++ {
		resp := f.fetchHTTPWithoutRedirect(ctx, baseURL, etag)
		if !resp.IsFetched() {
			return resp, baseURL
		}
		preferences := resp.entry.root.Preferences
		if preferences == nil ||
			preferences.Redirect == nil ||
			preferences.URL == "" ||
			preferences.URL == baseURL {
			return resp, baseURL
		}
		redirect := *preferences.Redirect
		if redirect == ForceRedirect {
			f.logger.Debugf("forced redirect to %v (count %d)", preferences.URL, i+1)
			baseURL = preferences.URL
			continue
		}
		if f.urlIsCustom {
			if redirect == NoRedirect {
				// The config is available, but we won't respect the redirection
				// request for a custom URL.
				return resp, baseURL
			}
			// With ShouldRedirect, there is no configuration available
			// other than the redirection information itself, so error.
			return fetchFailure(errors.New("refusing to redirect from custom URL without forced redirection"), false), baseURL
		}
		baseURL = preferences.URL

		f.logger.Warnf(3002,
			"the `dataGovernance` parameter specified at the client initialization is not in sync with "+
				"the preferences on the ConfigCat Dashboard; read more: https://configcat.com/docs/advanced/data-governance/",
		)
		if redirect == NoRedirect {
			// We've already got the configuration data, we'll just fetch
			// from the redirected URL next time.
			return resp, baseURL
		}
		if redirect != ShouldRedirect {
			return fetchFailure(fmt.Errorf("unknown redirection kind %d in response", redirect), false), baseURL
		}
	}
	return fetchFailure(errors.New("redirection loop encountered while trying to fetch config JSON; please contact us at https://configcat.com/support/"), false), baseURL
}

// fetchHTTPWithoutRedirect does the actual HTTP fetch of the config.
func (f *httpFetcher) fetchHTTPWithoutRedirect(ctx context.Context, baseURL string, etag string) FetchResponse {
	if f.sdkKey == "" {
		return fetchFailure(errors.New("empty SDK key in configuration"), false)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/configuration-files/"+f.sdkKey+"/config_v6.json", nil)
	if err != nil {
		return fetchFailure(err, false)
	}
	request.Header.Set("X-ConfigCat-UserAgent", f.userAgent)
	if etag != "" {
		request.Header.Set("If-None-Match", etag)
	}
	response, err := f.client.Do(request)
	if err != nil {
		return fetchFailure(fmt.Errorf("unexpected error occurred while trying to fetch config JSON: %w", err), true)
	}
	defer response.Body.Close()

	switch {
	case response.StatusCode == http.StatusNotModified:
		f.logger.Debugf("config fetch succeeded: not modified")
		return FetchResponse{Status: NotModified}
	case response.StatusCode >= 200 && response.StatusCode < 300:
		body, err := io.ReadAll(response.Body)
		if err != nil {
			return fetchFailure(fmt.Errorf("config fetch read failed: %w", err), true)
		}
		fetchTime := time.Now()
		entry, err := parseConfig(body, response.Header.Get("Etag"), fetchTime)
		if err != nil {
			return fetchFailure(fmt.Errorf("fetching config JSON was successful but the HTTP response content was invalid: %w", err), true)
		}
		f.logger.Debugf("config fetch succeeded: new config fetched")
		return FetchResponse{
			Status:    Fetched,
			Body:      body,
			ETag:      entry.etag,
			FetchTime: fetchTime,
			entry:     entry,
		}
	case response.StatusCode == http.StatusNotFound || response.StatusCode == http.StatusForbidden:
		return fetchFailure(fmt.Errorf("your SDK Key seems to be wrong (received %v); you can find the valid SDK Key at https://app.configcat.com/sdkkey", response.Status), false)
	default:
		return fetchFailure(fmt.Errorf("unexpected HTTP response was received while trying to fetch config JSON: %v", response.Status), false)
	}
}
