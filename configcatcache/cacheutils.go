// Package configcatcache holds the payload format the SDK uses when it
// persists a config JSON in a ConfigCache.
//
// A payload consists of three newline-separated fields:
//
//	<fetch time in Unix milliseconds>
//	<etag>
//	<config JSON>
//
// Custom cache implementations that share entries with other ConfigCat SDKs
// can use these functions to produce and consume compatible values.
package configcatcache

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const newLineByte byte = '\n'

// ConfigJSONCacheVersion is mixed into cache keys so that entries written
// by incompatible payload formats are never read back.
const ConfigJSONCacheVersion = "v2"

// ConfigJSONName is the name of the config JSON resource on the CDN.
const ConfigJSONName = "config_v6.json"

var (
	errMissingFields = errors.New("number of values is fewer than expected")
	errEmptyConfig   = errors.New("empty config JSON")
)

// CacheSegmentsFromBytes deserializes a cache entry produced by CacheSegmentsToBytes.
func CacheSegmentsFromBytes(cacheBytes []byte) (fetchTime time.Time, eTag string, config []byte, err error) {
	fetchTimeIndex := bytes.IndexByte(cacheBytes, newLineByte)
	if fetchTimeIndex == -1 {
		return time.Time{}, "", nil, errMissingFields
	}
	rest := cacheBytes[fetchTimeIndex+1:]
	eTagIndex := bytes.IndexByte(rest, newLineByte)
	if eTagIndex == -1 {
		return time.Time{}, "", nil, errMissingFields
	}

	fetchTimeBytes := cacheBytes[:fetchTimeIndex]
	fetchTimeMs, err := strconv.ParseInt(string(fetchTimeBytes), 10, 64)
	if err != nil {
		return time.Time{}, "", nil, fmt.Errorf("invalid fetch time %q: %w", fetchTimeBytes, err)
	}

	configBytes := rest[eTagIndex+1:]
	if len(configBytes) == 0 {
		return time.Time{}, "", nil, errEmptyConfig
	}
	return time.UnixMilli(fetchTimeMs), string(rest[:eTagIndex]), configBytes, nil
}

// CacheSegmentsToBytes serializes a fetch time, an etag and a config JSON into a cache entry.
// Fetch times are stored with millisecond precision.
func CacheSegmentsToBytes(fetchTime time.Time, eTag string, config []byte) []byte {
	toCache := make([]byte, 0, 20+len(eTag)+len(config))
	toCache = strconv.AppendInt(toCache, fetchTime.UnixMilli(), 10)
	toCache = append(toCache, newLineByte)
	toCache = append(toCache, eTag...)
	toCache = append(toCache, newLineByte)
	toCache = append(toCache, config...)
	return toCache
}

// ProduceCacheKey constructs the key that identifies the cache entry of an SDK key.
func ProduceCacheKey(sdkKey string, configJSONName string, cacheVersion string) string {
	h := sha1.New()
	h.Write([]byte(sdkKey + "_" + configJSONName + "_" + cacheVersion))
	return hex.EncodeToString(h.Sum(nil))
}
