// Command console prints a few feature flag values. Its settings are
// read from the environment and from an optional .env file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	configcat "github.com/configcat/go-sdk/v9"
	"github.com/configcat/go-sdk/v9/configcatmetrics"
	"github.com/configcat/go-sdk/v9/rediscache"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type config struct {
	SDKKey       string        `env:"CONFIGCAT_SDK_KEY" envDefault:"PKDVCLf-Hq-h-kCzMp-L7Q/psuH7BGHoUmdONrzzUOY7A"`
	BaseURL      string        `env:"CONFIGCAT_BASE_URL"`
	PollInterval time.Duration `env:"CONFIGCAT_POLL_INTERVAL" envDefault:"60s"`
	LogLevel     string        `env:"CONFIGCAT_LOG_LEVEL" envDefault:"info"`
	RedisURL     string        `env:"CONFIGCAT_REDIS_URL"`
	MetricsAddr  string        `env:"CONFIGCAT_METRICS_ADDR"`
	UserID       string        `env:"CONFIGCAT_USER_ID" envDefault:"key"`
}

func main() {
	_ = godotenv.Load()
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("cannot read configuration: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level: %v", err)
	}

	clientCfg := configcat.Config{
		SDKKey:       cfg.SDKKey,
		BaseURL:      cfg.BaseURL,
		PollInterval: cfg.PollInterval,
		Logger:       configcat.DefaultLogger(level),
	}
	if cfg.RedisURL != "" {
		cache, err := rediscache.NewFromURL(cfg.RedisURL, 24*time.Hour)
		if err != nil {
			log.Fatal(err)
		}
		defer cache.Close()
		clientCfg.Cache = cache
	}
	if cfg.MetricsAddr != "" {
		metrics := configcatmetrics.New()
		clientCfg.Hooks = metrics.Hooks(nil)
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("metrics server: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	client := configcat.NewCustomClient(clientCfg)
	defer client.Close()
	select {
	case <-client.Ready():
	case <-time.After(10 * time.Second):
		log.Print("client not ready after 10s; using cached or default values")
	}

	// create a user object to identify the caller
	user := &configcat.UserData{Identifier: cfg.UserID}

	// get individual config values identified by a key for a user
	value := client.GetStringValue("keySampleText", "", user)
	fmt.Println("keySampleText: ", value)

	for _, details := range client.GetAllValueDetails(user) {
		fmt.Printf("%s: %v (variation %q)\n", details.Data.Key, details.Value, details.Data.VariationID)
	}
}
