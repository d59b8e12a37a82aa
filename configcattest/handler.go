// Package configcattest provides an HTTP handler that serves config JSON
// generated from flag definitions, so that code using the ConfigCat client
// can be tested without talking to the real CDN.
package configcattest

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	configcat "github.com/configcat/go-sdk/v9"
	"github.com/configcat/go-sdk/v9/configcatcache"
)

const pathPrefix = "/configuration-files/"

// Handler serves the config JSON of any number of SDK keys. The zero
// value is ready to use; it serves 404 for every key until SetFlags is
// called.
type Handler struct {
	mu      sync.Mutex
	configs map[string]servedConfig
}

type servedConfig struct {
	body []byte
	etag string
}

// SetFlags sets the flags served for the given SDK key, replacing any
// previously set.
func (h *Handler) SetFlags(sdkKey string, flags map[string]*Flag) error {
	if sdkKey == "" {
		return fmt.Errorf("empty SDK key passed to configcattest.Handler.SetFlags")
	}
	keys := make([]string, 0, len(flags))
	for key := range flags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	root := &configcat.ConfigJson{
		Settings:    make(map[string]*configcat.Setting, len(flags)),
		Preferences: &configcat.Preferences{Salt: configSalt},
	}
	for _, key := range keys {
		s, err := flags[key].setting(key)
		if err != nil {
			return fmt.Errorf("invalid flag %q: %v", key, err)
		}
		root.Settings[key] = s
	}
	body, err := json.Marshal(root)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.configs == nil {
		h.configs = make(map[string]servedConfig)
	}
	h.configs[sdkKey] = servedConfig{
		body: body,
		etag: fmt.Sprintf(`"%x"`, sha1.Sum(body)),
	}
	return nil
}

// ServeHTTP implements http.Handler by serving the config JSON
// for the SDK key in the request path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "only GET allowed", http.StatusMethodNotAllowed)
		return
	}
	sdkKey, ok := strings.CutPrefix(req.URL.Path, pathPrefix)
	if ok {
		sdkKey, ok = strings.CutSuffix(sdkKey, "/"+configcatcache.ConfigJSONName)
	}
	if !ok {
		http.NotFound(w, req)
		return
	}
	h.mu.Lock()
	cfg, ok := h.configs[sdkKey]
	h.mu.Unlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("ETag", cfg.etag)
	if req.Header.Get("If-None-Match") == cfg.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(cfg.body)
}

// RandomSDKKey returns a well-formed SDK key that's unlikely
// to be used by any other test.
func RandomSDKKey() string {
	var a, b [11]byte
	rand.Read(a[:])
	rand.Read(b[:])
	return fmt.Sprintf("%x/%x", a[:], b[:])
}
