// Command mockauth starts an in-memory auth/REST/realtime mock for local dry
// runs of authprobe plans.
// Usage: go run ./cmd/mockauth [-addr 127.0.0.1:9999] [-config authprobe.yaml]
// Keys come from the same configuration authprobe reads.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raysh454/authprobe/internal/config"
	"github.com/raysh454/authprobe/internal/logging"
	"github.com/raysh454/authprobe/internal/mockauth"
)

func main() {
	fs := flag.NewFlagSet("mockauth", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (default: mock.addr from config)")
	cfgPath := fs.String("config", "", "Config file")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	mcfg := mockauth.DefaultConfig()
	if cfg.Mock.Addr != "" {
		mcfg.Addr = cfg.Mock.Addr
	}
	if *addr != "" {
		mcfg.Addr = *addr
	}
	mcfg.AnonKey = cfg.Auth.AnonKey
	mcfg.ServiceKey = cfg.Auth.ServiceKey
	mcfg.Logger = logging.NewLogger("mockauth", os.Stderr, logging.ParseLevel(cfg.Logging.Level))

	server, err := mockauth.NewServer(mcfg)
	if err != nil {
		log.Fatalf("Server error: %v (set auth.anon_key and auth.service_key)", err)
	}
	if cfg.Rest.Table != "" {
		server.SeedTable(cfg.Rest.Table, []map[string]any{})
	}

	httpServer := server.HTTPServer()
	go func() {
		<-waitForSignal()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}()

	fmt.Printf("Mock auth service listening on http://%s\n", mcfg.Addr)
	fmt.Printf("Point auth.base_url at it and set probe.allow_insecure_http: true\n")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}

func waitForSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}
