package main

import (
	"flag"
	"net/http"
	"os"

	"storykeeper/internal/app/devserver"
	"storykeeper/internal/utils/logger"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	env := flag.String("env", envOr("APP_ENV", "local"), "environment (local|dev|prod)")
	flag.Parse()

	log := logger.New(*env)

	store := devserver.NewStore(log)
	router := devserver.NewRouter(store, log)

	log.Info("devserver listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, router); err != nil {
		log.Error("devserver stopped", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
