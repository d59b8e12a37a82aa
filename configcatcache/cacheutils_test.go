package configcatcache

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestCacheSegmentsRoundTrip(t *testing.T) {
	c := qt.New(t)
	payloads := []string{
		"1690219337289\n6458130e-993\n{\"f\":{}}",
		"0\nempty\n{}",
		"1690219337289\n\n{\"p\":{\"s\":\"x\"}}",
		"-5\n\"W/etag\"\n{\"f\":{\"a\":{\"t\":0,\"v\":{\"b\":true}}}}\n",
	}
	for _, p := range payloads {
		fetchTime, etag, config, err := CacheSegmentsFromBytes([]byte(p))
		c.Assert(err, qt.IsNil, qt.Commentf("payload %q", p))
		c.Assert(string(CacheSegmentsToBytes(fetchTime, etag, config)), qt.Equals, p)
	}
}

func TestCacheSegmentsFromBytes(t *testing.T) {
	c := qt.New(t)
	fetchTime, etag, config, err := CacheSegmentsFromBytes([]byte("1690219337289\n6458130e-993\n{\"f\":{}}"))
	c.Assert(err, qt.IsNil)
	c.Assert(fetchTime.UnixMilli(), qt.Equals, int64(1690219337289))
	c.Assert(etag, qt.Equals, "6458130e-993")
	c.Assert(string(config), qt.Equals, `{"f":{}}`)
}

func TestCacheSegmentsFromBytesMalformed(t *testing.T) {
	tests := []struct {
		testName  string
		payload   string
		expectErr string
	}{{
		testName:  "Empty",
		payload:   "",
		expectErr: "number of values is fewer than expected",
	}, {
		testName:  "OneField",
		payload:   "1690219337289",
		expectErr: "number of values is fewer than expected",
	}, {
		testName:  "TwoFields",
		payload:   "1690219337289\netag",
		expectErr: "number of values is fewer than expected",
	}, {
		testName:  "BadTime",
		payload:   "yesterday\netag\n{}",
		expectErr: `invalid fetch time "yesterday": .*`,
	}, {
		testName:  "EmptyConfig",
		payload:   "1690219337289\netag\n",
		expectErr: "empty config JSON",
	}}
	for _, test := range tests {
		t.Run(test.testName, func(t *testing.T) {
			c := qt.New(t)
			_, _, _, err := CacheSegmentsFromBytes([]byte(test.payload))
			c.Assert(err, qt.ErrorMatches, test.expectErr)
		})
	}
}

func TestCacheSegmentsToBytes(t *testing.T) {
	c := qt.New(t)
	b := CacheSegmentsToBytes(time.UnixMilli(1686756435844), "etag", []byte("{}"))
	c.Assert(string(b), qt.Equals, "1686756435844\netag\n{}")
}

func TestProduceCacheKey(t *testing.T) {
	c := qt.New(t)
	c.Assert(ProduceCacheKey("test1", ConfigJSONName, ConfigJSONCacheVersion), qt.Equals, "7f845c43ecc95e202b91e271435935e6d1391e5d")
	c.Assert(ProduceCacheKey("test2", ConfigJSONName, ConfigJSONCacheVersion), qt.Equals, "a78b7e323ef543a272c74540387566a22415148a")
}
