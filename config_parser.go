package configcat

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/configcat/go-sdk/v9/configcatcache"
)

// emptyEtag is the etag of the entry that represents "nothing fetched yet".
const emptyEtag = "empty"

// configEntry is an immutable snapshot of a config JSON together with
// the metadata needed to cache and refresh it.
type configEntry struct {
	root      *ConfigJson
	etag      string
	body      []byte
	fetchTime time.Time

	// keys holds the sorted setting keys.
	keys []string
	// keyValues maps variation IDs to the key and value that carry them.
	keyValues map[string]keyValue
}

var emptyEntry = &configEntry{etag: emptyEtag}

// ParseError describes an invalid config JSON or cache payload.
type ParseError struct {
	msg string
	err error
}

func (p *ParseError) Error() string {
	if p.err != nil {
		return p.msg + ": " + p.err.Error()
	}
	return p.msg
}

func (p *ParseError) Unwrap() error {
	return p.err
}

// parseConfig parses a config JSON body and resolves the references
// that evaluation relies on: the config salt is copied into each
// setting and every segment condition points at its segment.
func parseConfig(body []byte, etag string, fetchTime time.Time) (*configEntry, error) {
	var root ConfigJson
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, &ParseError{msg: "invalid config JSON", err: err}
	}
	if err := fixupConfig(&root); err != nil {
		return nil, err
	}
	return &configEntry{
		root:      &root,
		etag:      etag,
		body:      body,
		fetchTime: fetchTime,
		keys:      keysForRootNode(&root),
		keyValues: keyValuesForRootNode(&root),
	}, nil
}

func fixupConfig(root *ConfigJson) error {
	salt := ""
	if root.Preferences != nil {
		salt = root.Preferences.Salt
	}
	for key, setting := range root.Settings {
		if setting == nil {
			return &ParseError{msg: fmt.Sprintf("setting '%s' is null", key)}
		}
		setting.salt = salt
		for _, rule := range setting.TargetingRules {
			if rule == nil {
				continue
			}
			for _, cond := range rule.Conditions {
				if cond == nil || cond.SegmentCondition == nil {
					continue
				}
				sc := cond.SegmentCondition
				if sc.Index >= 0 && sc.Index < len(root.Segments) {
					sc.segment = root.Segments[sc.Index]
				}
			}
		}
	}
	return nil
}

// entryFromCache decodes a payload written by configEntry.serialize.
func entryFromCache(payload []byte) (*configEntry, error) {
	fetchTime, etag, body, err := configcatcache.CacheSegmentsFromBytes(payload)
	if err != nil {
		return nil, &ParseError{msg: "invalid cache entry", err: err}
	}
	return parseConfig(body, etag, fetchTime)
}

func (e *configEntry) serialize() []byte {
	return configcatcache.CacheSegmentsToBytes(e.fetchTime, e.etag, e.body)
}

// isEmpty reports whether e carries no config.
func (e *configEntry) isEmpty() bool {
	return e == nil || e.root == nil
}

// withFetchTime returns a copy of e with the given fetch time.
func (e *configEntry) withFetchTime(t time.Time) *configEntry {
	e1 := *e
	e1.fetchTime = t
	return &e1
}

func (e *configEntry) settings() map[string]*Setting {
	if e.isEmpty() {
		return nil
	}
	return e.root.Settings
}

func (e *configEntry) getKeyAndValueForVariation(variationID string) (string, interface{}) {
	if e.isEmpty() {
		return "", nil
	}
	kv := e.keyValues[variationID]
	return kv.key, kv.value
}

type keyValue struct {
	key   string
	value interface{}
}

func keyValuesForRootNode(root *ConfigJson) map[string]keyValue {
	m := make(map[string]keyValue)
	add := func(variationID string, key string, t SettingType, v *SettingValue) {
		if variationID == "" {
			return
		}
		if _, ok := m[variationID]; ok {
			return
		}
		value, err := v.valueFor(t)
		if err != nil {
			return
		}
		m[variationID] = keyValue{
			key:   key,
			value: value,
		}
	}
	for _, key := range keysForRootNode(root) {
		setting := root.Settings[key]
		add(setting.VariationID, key, setting.Type, setting.Value)
		for _, rule := range setting.TargetingRules {
			if rule == nil {
				continue
			}
			if rule.ServedValue != nil {
				add(rule.ServedValue.VariationID, key, setting.Type, rule.ServedValue.Value)
			}
			for _, option := range rule.PercentageOptions {
				if option != nil {
					add(option.VariationID, key, setting.Type, option.Value)
				}
			}
		}
		for _, option := range setting.PercentageOptions {
			if option != nil {
				add(option.VariationID, key, setting.Type, option.Value)
			}
		}
	}
	return m
}

func keysForRootNode(root *ConfigJson) []string {
	keys := make([]string, 0, len(root.Settings))
	for k := range root.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
