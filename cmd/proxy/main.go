package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"storykeeper/internal/app/proxy"
	"storykeeper/internal/utils/logger"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	upstream := flag.String("upstream", "https://story-api.dicoding.dev", "story service origin")
	env := flag.String("env", envOr("APP_ENV", "local"), "environment (local|dev|prod)")
	flag.Parse()

	log := logger.New(*env)

	p, err := proxy.New(proxy.Config{
		Upstream:          *upstream,
		APIPrefix:         "/v1",
		MaxAssetEntries:   200,
		AssetMaxAge:       24 * time.Hour,
		APIFallbackWindow: 5 * time.Minute,
	}, log)
	if err != nil {
		log.Error("failed to build proxy", "error", err)
		os.Exit(1)
	}

	log.Info("proxy listening", "addr", *addr, "upstream", *upstream)
	if err := http.ListenAndServe(*addr, p.Router()); err != nil {
		log.Error("proxy stopped", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
