package configcat

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/configcat/go-sdk/v9/configcatcache"
)

type configServer struct {
	srv *httptest.Server
	key string
	t   testing.TB

	mu           sync.Mutex
	resp         *configResponse
	responses    []configResponse
	requestCount int
	userAgents   []string
}

type configResponse struct {
	status int
	body   string
	sleep  time.Duration
}

func newConfigServer(t testing.TB) *configServer {
	return newConfigServerWithKey(t, randomSDKKey())
}

func randomSDKKey() string {
	var a, b [11]byte
	rand.Read(a[:])
	rand.Read(b[:])
	return fmt.Sprintf("%x/%x", a[:], b[:])
}

func newConfigServerWithKey(t testing.TB, sdkKey string) *configServer {
	srv := &configServer{
		t: t,
	}
	srv.srv = httptest.NewServer(srv)
	t.Cleanup(srv.srv.Close)
	srv.key = sdkKey
	return srv
}

// config returns a configuration suitable for creating
// a client that talks to the p.
func (srv *configServer) config() Config {
	return Config{
		SDKKey:   srv.key,
		BaseURL:  srv.srv.URL,
		Logger:   newTestLogger(srv.t),
		LogLevel: LogLevelDebug,
	}
}

// setResponse sets the response that will be returned from the server.
func (srv *configServer) setResponse(response configResponse) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.resp = &response
}

func (srv *configServer) setResponseJSON(x interface{}) {
	srv.setResponse(configResponse{
		body: marshalJSON(x),
	})
}

// allResponses returns all the responses that have been served over
// the lifetime of the server, excluding those that will have
// caused the test to fail.
func (srv *configServer) allResponses() []configResponse {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]configResponse(nil), srv.responses...)
}

func (srv *configServer) requests() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.requestCount
}

func (srv *configServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/configuration-files/"+srv.key+"/"+configcatcache.ConfigJSONName {
		srv.t.Errorf("unexpected HTTP call: %s %s", req.Method, req.URL)
		http.NotFound(w, req)
		return
	}
	if req.Method != "GET" {
		srv.t.Errorf("unexpected HTTP method: %s", req.Method)
		http.Error(w, "only GET is allowed", http.StatusMethodNotAllowed)
		return
	}
	srv.mu.Lock()
	srv.requestCount++
	srv.userAgents = append(srv.userAgents, req.Header.Get("X-ConfigCat-UserAgent"))
	resp0 := srv.resp
	defer srv.mu.Unlock()
	if resp0 == nil {
		srv.t.Errorf("HTTP call with no response provided")
		http.Error(w, "unexpected call", http.StatusInternalServerError)
		return
	}
	resp := *resp0
	time.Sleep(resp.sleep)
	if resp.status == 0 {
		w.Header().Set("Etag", etagOf(resp.body))
		if req.Header.Get("If-None-Match") == etagOf(resp.body) {
			resp.status = http.StatusNotModified
			resp.body = ""
		} else {
			resp.status = http.StatusOK
		}
	}
	w.WriteHeader(resp.status)
	w.Write([]byte(resp.body))
	// Record the response so that it's possible to check what went on behind the scenes later.
	srv.responses = append(srv.responses, resp)
}

func etagOf(content string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(content)))
}

func marshalJSON(x interface{}) string {
	data, err := json.Marshal(x)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// testLogger implements the Logger interface by logging to the test.T
// instance. Lines logged by goroutines that outlive the test are only
// recorded.
type testLogger struct {
	sync.RWMutex

	t    testing.TB
	logs []string
	done bool
}

func newTestLogger(t testing.TB) *testLogger {
	log := &testLogger{
		t: t,
	}
	t.Cleanup(func() {
		log.Lock()
		defer log.Unlock()
		log.done = true
	})
	return log
}

func (log *testLogger) GetLevel() LogLevel {
	return LogLevelDebug
}

func (log *testLogger) Debugf(format string, args ...interface{}) {
	log.logf("DEBUG", format, args...)
}

func (log *testLogger) Infof(format string, args ...interface{}) {
	log.logf("INFO", format, args...)
}

func (log *testLogger) Warnf(format string, args ...interface{}) {
	log.logf("WARN", format, args...)
}

func (log *testLogger) Errorf(format string, args ...interface{}) {
	log.logf("ERROR", format, args...)
}

func (log *testLogger) logf(level string, format string, args ...interface{}) {
	log.Lock()
	defer log.Unlock()
	s := fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
	log.logs = append(log.logs, s)
	if !log.done {
		log.t.Log(s)
	}
}

func (log *testLogger) Logs() []string {
	log.RLock()
	defer log.RUnlock()
	return append([]string(nil), log.logs...)
}

// count returns the number of log lines that contain substr.
func (log *testLogger) count(substr string) int {
	n := 0
	for _, line := range log.Logs() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func (log *testLogger) Clear() {
	log.Lock()
	defer log.Unlock()
	log.logs = nil
}

// fakeFetcher is a Fetcher that serves scripted responses. When block
// is not nil, every fetch waits for it to be closed or to deliver a
// value.
type fakeFetcher struct {
	mu       sync.Mutex
	response FetchResponse
	fetches  int
	etags    []string
	block    chan struct{}
	delay    time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, etag string) FetchResponse {
	f.mu.Lock()
	f.fetches++
	f.etags = append(f.etags, etag)
	block, delay := f.block, f.delay
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	time.Sleep(delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response
}

func (f *fakeFetcher) setResponse(resp FetchResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.response = resp
}

func (f *fakeFetcher) setBody(body, etag string) {
	f.setResponse(FetchResponse{
		Status: Fetched,
		Body:   []byte(body),
		ETag:   etag,
	})
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// customCache is a ConfigCache that can be made to fail.
type customCache struct {
	mu     sync.Mutex
	items  map[string][]byte
	getErr error
	setErr error
	gets   int
}

func newCustomCache() *customCache {
	return &customCache{
		items: make(map[string][]byte),
	}
}

func (c *customCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.items[key], nil
}

func (c *customCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.items[key] = append([]byte(nil), value...)
	return nil
}

func (c *customCache) setGetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErr = err
}

func (c *customCache) setSetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErr = err
}

func (c *customCache) allItems() map[string][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[string][]byte, len(c.items))
	for k, v := range c.items {
		m[k] = v
	}
	return m
}

// Helpers for building config JSON documents in tests.

func boolSetting(v bool, variationID string) *Setting {
	return &Setting{Type: BoolSetting, Value: NewBoolValue(v), VariationID: variationID}
}

func stringSetting(v string, variationID string) *Setting {
	return &Setting{Type: StringSetting, Value: NewStringValue(v), VariationID: variationID}
}

func intSetting(v int) *Setting {
	return &Setting{Type: IntSetting, Value: NewIntValue(v)}
}

func floatSetting(v float64) *Setting {
	return &Setting{Type: FloatSetting, Value: NewFloatValue(v)}
}

func userCond(attr string, op Comparator, value interface{}) *Condition {
	cond := &UserCondition{
		ComparisonAttribute: attr,
		Comparator:          op,
	}
	switch v := value.(type) {
	case string:
		cond.StringValue = &v
	case float64:
		cond.DoubleValue = &v
	case []string:
		cond.StringArrayValue = v
	default:
		panic(fmt.Errorf("unexpected comparison value %T", value))
	}
	return &Condition{UserCondition: cond}
}

func prerequisiteCond(key string, op PrerequisiteComparator, value interface{}) *Condition {
	v, err := NewSettingValue(value)
	if err != nil {
		panic(err)
	}
	return &Condition{PrerequisiteFlagCondition: &PrerequisiteFlagCondition{
		FlagKey:    key,
		Comparator: op,
		Value:      v,
	}}
}

func servedRule(value interface{}, variationID string, conds ...*Condition) *TargetingRule {
	v, err := NewSettingValue(value)
	if err != nil {
		panic(err)
	}
	return &TargetingRule{
		Conditions:  conds,
		ServedValue: &ServedValue{Value: v, VariationID: variationID},
	}
}

func mustParse(t testing.TB, root *ConfigJson) *configEntry {
	entry, err := parseConfig([]byte(marshalJSON(root)), "etag", time.Now())
	if err != nil {
		t.Fatalf("cannot parse config: %v", err)
	}
	return entry
}
