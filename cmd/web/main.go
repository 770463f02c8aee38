// cmd/web/main.go
//
// Clinic tenant router – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (jail-wide file → .env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Optional Vault client (when VAULT_ADDR is set), then config.
//
//  4. Directory pool, directory schema, default pool, default migrations,
//     and model registry validation.  Any failure here is fatal.
//
//  5. Startup migration of every active tenant database (bounded,
//     failures logged).
//
//  6. Tenant router with its reconcile loop, and the lifecycle manager.
//
//  7. Public mux: /healthz, /readyz, /metrics, and the tenant-scoped API.
//     Admin mux: /admin/tenants on its own loopback listener.
//
//  8. Graceful shutdown on SIGINT / SIGTERM: stop listeners, close cached
//     tenant pools, then the default and directory pools.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/clinic/internal/config"
	"github.com/yanizio/clinic/internal/logger"
	"github.com/yanizio/clinic/internal/server"
	"github.com/yanizio/clinic/internal/vault"
)

const serverEnvPath = "/usr/local/etc/clinic/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

func init() { loadEnv() }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootDir, _ := os.Getwd()
	if r := os.Getenv("CLINIC_ROOT"); r != "" {
		rootDir = r
	}
	zlog, err := logger.New(logger.Options{Root: rootDir, Tee: logger.IsTTY()})
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	//
	// ── 1.  Secrets and config ──────────────────────────────────────────
	//
	var sec *vault.Client
	if os.Getenv("VAULT_ADDR") != "" {
		if sec, err = vault.New(ctx, zlog); err != nil {
			zlog.Fatal("vault client", zap.Error(err))
		}
	}
	var resolver config.SecretResolver
	if sec != nil {
		resolver = sec
	}
	cfg, err := config.Load(ctx, resolver)
	if err != nil {
		zlog.Fatal("load config", zap.Error(err))
	}

	//
	// ── 2.  Pools, router, and lifecycle ────────────────────────────────
	//
	a, err := boot(ctx, cfg, sec, zlog)
	if err != nil {
		zlog.Fatal("boot", zap.Error(err))
	}
	defer a.close()

	//
	// ── 3.  Listeners ───────────────────────────────────────────────────
	//
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, server.New(cfg.HTTP.ListenAddr, a.publicMux(cfg)), cfg.HTTP.ShutdownTimeout)
	})
	if cfg.HTTP.AdminListenAddr != "" {
		g.Go(func() error {
			return server.Run(gctx, server.New(cfg.HTTP.AdminListenAddr, a.adminMux()), cfg.HTTP.ShutdownTimeout)
		})
	}

	if err := g.Wait(); err != nil {
		zlog.Error("http server", zap.Error(err))
	}
	zlog.Info("shutting down")
}
