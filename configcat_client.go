// Package configcat contains the Go SDK of ConfigCat (https://configcat.com)
package configcat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const proxyPrefix = "configcat-proxy/"
const sdkKeyCompSize = 22

// Config describes configuration options for the Client.
type Config struct {
	// SDKKey holds the key for the SDK. This parameter
	// is mandatory.
	SDKKey string

	// Logger is used to log information about configuration evaluation
	// and issues. If it's nil, DefaultLogger() will be used.
	// It assumes that the logging level will not be increased
	// during the lifetime of the client.
	Logger Logger

	// LogLevel determines the logging verbosity. If it's zero,
	// the level of Logger is used. LogLevelNone turns logging off.
	LogLevel LogLevel

	// Cache is used to cache configuration values.
	// If it's nil, no caching will be done.
	Cache ConfigCache

	// BaseURL holds the URL of the ConfigCat CDN server.
	// If this is empty, an appropriate URL will be chosen
	// based on the DataGovernance parameter.
	BaseURL string

	// Transport is used as the HTTP transport for
	// requests to the CDN. If it's nil, http.DefaultTransport
	// will be used.
	Transport http.RoundTripper

	// HTTPTimeout holds the timeout for HTTP requests
	// made by the client. If it's zero, DefaultHTTPTimeout
	// will be used. If it's negative, no timeout will be
	// used.
	HTTPTimeout time.Duration

	// PollingMode specifies how the configuration is refreshed.
	// The zero value (default) is AutoPoll.
	PollingMode PollingMode

	// PollInterval specifies how old a configuration can
	// be before it's considered stale. If this is less
	// than 1, DefaultPollInterval is used.
	//
	// This parameter is ignored when PollingMode is Manual.
	PollInterval time.Duration

	// MaxInitWaitTime is the longest time a read waits for the first
	// config fetch in AutoPoll mode. If it's zero,
	// DefaultMaxInitWaitTime is used. If it's negative, reads don't wait.
	MaxInitWaitTime time.Duration

	// DataGovernance specifies the data governance mode.
	// Set this parameter to be in sync with the Data Governance
	// preference on the Dashboard at
	// https://app.configcat.com/organization/data-governance
	// (only Organization Admins have access).
	// The default is Global.
	DataGovernance DataGovernance

	// DefaultUser holds the default user information to associate
	// with the Flagger, used whenever a nil User is passed.
	// This usually won't contain user-specific
	// information, but it may be useful when feature flags are dependent
	// on attributes of the current machine or similar. It's somewhat
	// more efficient to use DefaultUser=u than to call flagger.Snapshot(u)
	// on every feature flag evaluation.
	DefaultUser User

	// Hooks controls the events sent by Client.
	Hooks *Hooks

	// Offline indicates whether the SDK should be initialized in offline mode or not.
	Offline bool

	// Fetcher is used to download the config. If it's nil, the config is
	// downloaded from the ConfigCat CDN using BaseURL, Transport,
	// HTTPTimeout and DataGovernance.
	Fetcher Fetcher

	// Hasher computes the digests for the sensitive comparators.
	// If it's nil, DefaultComparisonHasher() is used.
	Hasher ComparisonHasher
}

// Client is an object for handling configurations provided by ConfigCat.
type Client struct {
	logger    *leveledLogger
	cfg       Config
	service   *configService
	evaluator *evaluator
}

// NewClient returns a new Client value that access the default
// ConfigCat servers using the given SDK key.
//
// The GetBoolValue, GetIntValue, GetFloatValue and GetStringValue methods can be used to find out current
// feature flag values. In AutoPoll mode, the first call may block until
// the initial config fetch completes or Config.MaxInitWaitTime elapses.
func NewClient(sdkKey string) *Client {
	return NewCustomClient(Config{
		SDKKey: sdkKey,
	})
}

// NewCustomClient initializes a new ConfigCat Client with advanced configuration.
func NewCustomClient(cfg Config) *Client {
	if cfg.PollInterval < 1 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxInitWaitTime == 0 {
		cfg.MaxInitWaitTime = DefaultMaxInitWaitTime
	} else if cfg.MaxInitWaitTime < 0 {
		cfg.MaxInitWaitTime = 0
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = DefaultHTTPTimeout
	}
	logger := newLeveledLogger(cfg.Logger, cfg.LogLevel, cfg.Hooks)
	fetcher := cfg.Fetcher
	if fetcher == nil {
		if !isValidSdkKey(cfg.SDKKey, cfg.BaseURL != "") {
			logger.Errorf(1003, "SDK Key '%s' is invalid", cfg.SDKKey)
			fetcher = invalidKeyFetcher{sdkKey: cfg.SDKKey}
		} else {
			fetcher = newHTTPFetcher(httpFetcherConfig{
				sdkKey:         cfg.SDKKey,
				baseURL:        cfg.BaseURL,
				dataGovernance: cfg.DataGovernance,
				transport:      cfg.Transport,
				timeout:        cfg.HTTPTimeout,
				pollingMode:    cfg.PollingMode,
			}, logger)
		}
	}
	return &Client{
		cfg:       cfg,
		logger:    logger,
		evaluator: newEvaluator(logger, cfg.Hasher),
		service: newConfigService(serviceConfig{
			fetcher:         fetcher,
			cache:           cfg.Cache,
			sdkKey:          cfg.SDKKey,
			pollingMode:     cfg.PollingMode,
			pollInterval:    cfg.PollInterval,
			maxInitWaitTime: cfg.MaxInitWaitTime,
			offline:         cfg.Offline,
			hooks:           cfg.Hooks,
		}, logger),
	}
}

// Refresh refreshes the cached configuration. If the context is
// canceled while the refresh is in progress, Refresh will return but
// the underlying HTTP request will not be canceled.
func (client *Client) Refresh(ctx context.Context) error {
	return client.RefreshWithResult(ctx).Err
}

// RefreshWithResult is like Refresh but reports the outcome as a RefreshResult.
func (client *Client) RefreshWithResult(ctx context.Context) RefreshResult {
	res := client.service.refresh(ctx)
	if res.Err == ErrOffline {
		client.logger.Warnf(3200, "%v", ErrOffline)
	}
	return res
}

// RefreshIfOlder is like Refresh but refreshes the configuration only
// if the most recently fetched configuration is older than the given
// age.
func (client *Client) RefreshIfOlder(ctx context.Context, age time.Duration) error {
	res := client.service.refreshIfOlder(ctx, time.Now().Add(-age))
	if res.Err == ErrOffline {
		client.logger.Warnf(3200, "%v", ErrOffline)
	}
	return res.Err
}

// SetOffline configures the SDK to not initiate HTTP requests.
func (client *Client) SetOffline() {
	client.service.setOffline()
}

// SetOnline configures the SDK to allow HTTP requests.
func (client *Client) SetOnline() {
	client.service.setOnline()
}

// IsOffline returns true when the SDK is configured not to initiate HTTP requests, otherwise false.
func (client *Client) IsOffline() bool {
	return client.service.isOffline()
}

// Ready indicates whether the SDK is initialized with feature flag data.
// When the polling mode is Manual or Lazy, the SDK is considered ready right after instantiation.
// When the polling mode is AutoPoll, Ready closes when the first initial HTTP request is finished
// or Config.MaxInitWaitTime has elapsed.
func (client *Client) Ready() <-chan struct{} {
	return client.service.initialized
}

// Close shuts down the client. After closing, it shouldn't be used.
func (client *Client) Close() {
	client.service.close()
}

// GetSettings returns the settings of the current config and the time
// they were fetched, or nil and the zero time if there's no config.
func (client *Client) GetSettings(ctx context.Context) (map[string]*Setting, time.Time) {
	return client.service.getSettings(ctx)
}

// GetValue returns the value of a feature flag regardless of its type,
// or defaultValue if no value can be found. When defaultValue is not
// nil, the value is converted to its type.
func (client *Client) GetValue(key string, defaultValue interface{}, user User) interface{} {
	return client.Snapshot(user).details(key, defaultValue).Value
}

// GetValueDetails is like GetValue but also returns the evaluation details.
func (client *Client) GetValueDetails(key string, defaultValue interface{}, user User) EvaluationDetails {
	return client.Snapshot(user).details(key, defaultValue)
}

// GetBoolValue returns the value of a boolean-typed feature flag, or defaultValue if no
// value can be found. If user is non-nil, it will be used to
// choose the value (see the User documentation for details).
// If user is nil and Config.DefaultUser was non-nil, that will be used instead.
//
// In Lazy refresh mode, this can block indefinitely while the configuration
// is fetched. Use RefreshIfOlder explicitly if explicit control of timeouts
// is needed.
func (client *Client) GetBoolValue(key string, defaultValue bool, user User) bool {
	return Bool(key, defaultValue).Get(client.Snapshot(user))
}

// GetBoolValueDetails returns the value and evaluation details of a boolean-typed feature flag.
// If user is non-nil, it will be used to choose the value (see the User documentation for details).
// If user is nil and Config.DefaultUser was non-nil, that will be used instead.
func (client *Client) GetBoolValueDetails(key string, defaultValue bool, user User) BoolEvaluationDetails {
	return Bool(key, defaultValue).GetWithDetails(client.Snapshot(user))
}

// GetIntValue is like GetBoolValue except for int-typed (whole number) feature flags.
func (client *Client) GetIntValue(key string, defaultValue int, user User) int {
	return Int(key, defaultValue).Get(client.Snapshot(user))
}

// GetIntValueDetails is like GetBoolValueDetails except for int-typed (whole number) feature flags.
func (client *Client) GetIntValueDetails(key string, defaultValue int, user User) IntEvaluationDetails {
	return Int(key, defaultValue).GetWithDetails(client.Snapshot(user))
}

// GetFloatValue is like GetBoolValue except for float-typed (decimal number) feature flags.
func (client *Client) GetFloatValue(key string, defaultValue float64, user User) float64 {
	return Float(key, defaultValue).Get(client.Snapshot(user))
}

// GetFloatValueDetails is like GetBoolValueDetails except for float-typed (decimal number) feature flags.
func (client *Client) GetFloatValueDetails(key string, defaultValue float64, user User) FloatEvaluationDetails {
	return Float(key, defaultValue).GetWithDetails(client.Snapshot(user))
}

// GetStringValue is like GetBoolValue except for string-typed (text) feature flags.
func (client *Client) GetStringValue(key string, defaultValue string, user User) string {
	return String(key, defaultValue).Get(client.Snapshot(user))
}

// GetStringValueDetails is like GetBoolValueDetails except for string-typed (text) feature flags.
func (client *Client) GetStringValueDetails(key string, defaultValue string, user User) StringEvaluationDetails {
	return String(key, defaultValue).GetWithDetails(client.Snapshot(user))
}

// GetAllValueDetails returns values along with evaluation details of all feature flags and settings.
func (client *Client) GetAllValueDetails(user User) []EvaluationDetails {
	return client.Snapshot(user).GetAllValueDetails()
}

// GetKeyValueForVariationID returns the key and value that
// are associated with the given variation ID. If the
// variation ID isn't found, it returns "", nil.
func (client *Client) GetKeyValueForVariationID(id string) (string, interface{}) {
	return client.Snapshot(nil).GetKeyValueForVariationID(id)
}

// GetAllKeys returns all the known keys.
func (client *Client) GetAllKeys() []string {
	return client.Snapshot(nil).GetAllKeys()
}

// GetAllValues returns all keys and values in a key-value map.
func (client *Client) GetAllValues(user User) map[string]interface{} {
	return client.Snapshot(user).GetAllValues()
}

// Snapshot returns an immutable snapshot of the most recent feature
// flags retrieved by the client, associated with the given user, or
// Config.DefaultUser if user is nil.
func (client *Client) Snapshot(user User) *Snapshot {
	entry := client.service.getEntry(context.Background())
	return newSnapshot(client.evaluator, entry, user, client.cfg.DefaultUser, client.logger, client.cfg.Hooks)
}

func isValidSdkKey(sdkKey string, isCustomUrl bool) bool {
	if isCustomUrl && len(sdkKey) > len(proxyPrefix) && strings.HasPrefix(sdkKey, proxyPrefix) {
		return true
	}
	comps := strings.Split(sdkKey, "/")
	switch len(comps) {
	case 2:
		return len(comps[0]) == sdkKeyCompSize && len(comps[1]) == sdkKeyCompSize
	case 3:
		return comps[0] == "configcat-sdk-1" && len(comps[1]) == sdkKeyCompSize && len(comps[2]) == sdkKeyCompSize
	default:
		return false
	}
}

// invalidKeyFetcher is used instead of the HTTP fetcher when the SDK
// key can't be valid, so the CDN is never asked for it.
type invalidKeyFetcher struct {
	sdkKey string
}

func (f invalidKeyFetcher) Fetch(ctx context.Context, etag string) FetchResponse {
	return fetchFailure(fmt.Errorf("SDK Key '%s' is invalid", f.sdkKey), false)
}
