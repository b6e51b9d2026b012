package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"souqpos/backend/internal/cache"
	"souqpos/backend/internal/config"
	"souqpos/backend/internal/domain"
	"souqpos/backend/internal/httpapi"
	"souqpos/backend/internal/report"
	"souqpos/backend/internal/service"
	"souqpos/backend/internal/store"
	"souqpos/backend/internal/store/memory"
	pgstore "souqpos/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()
	decimal.MarshalJSONWithoutQuotes = true

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
		if err := bootstrapAdmin(ctx, repo, os.Getenv("SEED_ADMIN_PASSWORD")); err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
	} else if cfg.SeedDemoData {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory (demo data)")
	} else {
		mem := memory.New()
		mem.SeedUsers()
		repo = mem
		log.Println("repository: in-memory")
	}

	reportCache := cache.ReportCache(cache.NoopReportCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisReportCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			reportCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	svc := service.New(repo)
	reports := report.NewService(repo, reportCache, cfg.ReportCacheTTL())
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), svc)
	api := httpapi.New(svc, reports, auth, cfg.AllowedOrigin)
	api.TrustProxyHeaders(cfg.TrustProxyHeaders)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if strings.TrimSpace(cfg.AllowedOrigin) == "*" && cfg.DatabaseURL != "" {
		return fmt.Errorf("ALLOWED_ORIGIN must name the front-end origin when DATABASE_URL is set")
	}
	return nil
}

// bootstrapAdmin creates the first admin account on an empty user table.
func bootstrapAdmin(ctx context.Context, repo store.Repository, password string) error {
	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if len(password) < 8 {
		log.Println("WARN: no users exist; set SEED_ADMIN_PASSWORD (8+ characters) to create the admin account")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = repo.CreateUser(ctx, domain.SystemUser{
		Username: "admin",
		Name:     "Store Admin",
		Password: string(hash),
		Role:     domain.RoleAdmin,
		Active:   true,
	})
	if err != nil {
		return err
	}
	log.Println("created bootstrap admin account")
	return nil
}
