package configcat

import (
	"context"
	"time"
)

// Fetcher downloads config JSON documents. The HTTP implementation used
// by default is created from the transport fields of Config; a custom
// Fetcher can be set with Config.Fetcher.
type Fetcher interface {
	// Fetch downloads the current config. When etag is not empty, the
	// fetch is conditional and a NotModified response may be returned.
	Fetch(ctx context.Context, etag string) FetchResponse
}

// FetchResponse represents a configuration fetch response.
type FetchResponse struct {
	Status FetchStatus

	// Body holds the raw config JSON when Status is Fetched.
	Body []byte
	// ETag holds the entity tag of Body.
	ETag string
	// FetchTime is the time the config was downloaded. Zero means now.
	FetchTime time.Time

	// Err holds the reason of a Failure.
	Err error
	// IsTransientError reports whether the failure may go away on its
	// own, such as a network error or a timeout.
	IsTransientError bool

	// entry holds the already parsed Body, if any.
	entry *configEntry
}

// IsFailed returns true if the fetch is failed, otherwise false.
func (response FetchResponse) IsFailed() bool {
	return response.Status == Failure
}

// IsNotModified returns true if if the fetch resulted a 304 Not Modified code, otherwise false.
func (response FetchResponse) IsNotModified() bool {
	return response.Status == NotModified
}

// IsFetched returns true if a new configuration value was fetched, otherwise false.
func (response FetchResponse) IsFetched() bool {
	return response.Status == Fetched
}

// parsedEntry returns the config entry of a Fetched response,
// parsing Body if that hasn't been done yet.
func (response FetchResponse) parsedEntry() (*configEntry, error) {
	if response.entry != nil {
		return response.entry, nil
	}
	fetchTime := response.FetchTime
	if fetchTime.IsZero() {
		fetchTime = time.Now()
	}
	return parseConfig(response.Body, response.ETag, fetchTime)
}

func fetchFailure(err error, transient bool) FetchResponse {
	return FetchResponse{
		Status:           Failure,
		Err:              err,
		IsTransientError: transient,
	}
}
