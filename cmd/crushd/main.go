package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lixenwraith/crusher/backend"
	"github.com/lixenwraith/crusher/clock"
	"github.com/lixenwraith/crusher/config"
)

var (
	configFlag = flag.String("config", "", "Path to a TOML config file")
	addrFlag   = flag.String("addr", "", "Listen address, overrides config")
	debugFlag  = flag.Bool("debug", false, "Log every request")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}
	release := cfg.Server.Release && !cfg.Log.Debug && !*debugFlag

	store := backend.NewStore(clock.Real())
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           backend.NewRouter(store, release),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[crushd] shutdown: %v", err)
		}
	}()

	log.Printf("[crushd] serving crush API on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("[crushd] stopped")
}
