package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"tutela.org/internal/assignment"
	"tutela.org/internal/auth"
	"tutela.org/internal/httpapi"
	"tutela.org/internal/obs"
	"tutela.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("TUTELA_AUTH_SECRET")
	if secret == "" {
		log.Fatal("TUTELA_AUTH_SECRET is required")
	}
	cipherKey := os.Getenv("TUTELA_REFRESH_CIPHER_KEY")
	if cipherKey == "" {
		log.Fatal("TUTELA_REFRESH_CIPHER_KEY is required")
	}

	dsn := os.Getenv("TUTELA_PG_DSN")
	if dsn == "" {
		log.Fatal("TUTELA_PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	cipher, err := auth.NewRefreshCipher(cipherKey)
	if err != nil {
		log.Fatalf("refresh cipher: %v", err)
	}

	authOpts := []auth.ServiceOption{}
	if ttl := durationEnv("TUTELA_ACCESS_TTL"); ttl > 0 {
		authOpts = append(authOpts, auth.WithAccessTTL(ttl))
	}
	if ttl := durationEnv("TUTELA_REFRESH_TTL"); ttl > 0 {
		authOpts = append(authOpts, auth.WithRefreshTTL(ttl))
	}

	// The blacklist lives in Redis when an address is configured; the
	// Postgres table remains the fallback.
	if addr := os.Getenv("TUTELA_REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("TUTELA_REDIS_PASSWORD"),
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		authOpts = append(authOpts, auth.WithBlacklist(auth.NewRedisBlacklist(client)))
	}

	authSvc, err := auth.NewService(auth.NewPGStore(db), secret, cipher, authOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	events := stream.New()
	assignSvc, err := assignment.NewService(assignment.NewPGStore(db), assignment.WithEvents(events))
	if err != nil {
		log.Fatalf("assignment service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, assignSvc, events)

	addr := os.Getenv("TUTELA_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No write timeout: the assignment SSE feed holds connections open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting tutela-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}

func durationEnv(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}
