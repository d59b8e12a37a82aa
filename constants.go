package configcat

import "time"

const version = "9.0.0"

const (
	// DefaultPollInterval is used when Config.PollInterval is not set.
	DefaultPollInterval = 60 * time.Second
	// DefaultMaxInitWaitTime is used when Config.MaxInitWaitTime is zero.
	DefaultMaxInitWaitTime = 5 * time.Second
	// DefaultHTTPTimeout is used when Config.HTTPTimeout is zero.
	DefaultHTTPTimeout = 15 * time.Second
)

// FetchStatus describes the fetch response statuses.
type FetchStatus int

const (
	// Fetched indicates that a new configuration was fetched.
	Fetched FetchStatus = 0
	// NotModified indicates that the current configuration is not modified.
	NotModified FetchStatus = 1
	// Failure indicates that the current configuration fetch is failed.
	Failure FetchStatus = 2
)

func (s FetchStatus) String() string {
	switch s {
	case Fetched:
		return "fetched"
	case NotModified:
		return "not modified"
	case Failure:
		return "failure"
	}
	return "unknown"
}

// DataGovernance describes the location of your feature flag and setting data within the ConfigCat CDN.
type DataGovernance int

const (
	// Global Select this if your feature flags are published to all global CDN nodes.
	Global DataGovernance = 0
	// EUOnly Select this if your feature flags are published to CDN nodes only in the EU.
	EUOnly DataGovernance = 1
)

const (
	globalBaseURL = "https://cdn-global.configcat.com"
	euOnlyBaseURL = "https://cdn-eu.configcat.com"
)

// PollingMode specifies a strategy for refreshing the configuration.
type PollingMode int

const (
	// AutoPoll causes the client to refresh the configuration
	// automatically at least as often as the Config.PollInterval
	// parameter.
	AutoPoll PollingMode = iota

	// Manual will only refresh the configuration when Refresh
	// is called explicitly, falling back to the cache for the initial
	// value or if the refresh fails.
	Manual

	// Lazy will refresh the configuration whenever a value
	// is retrieved and the configuration is older than
	// Config.PollInterval.
	Lazy
)

func (m PollingMode) String() string {
	switch m {
	case AutoPoll:
		return "a"
	case Manual:
		return "m"
	case Lazy:
		return "l"
	}
	return "unknown"
}
