package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WooodHead/yeep/internal/httpapi"
	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/obs"
	"github.com/WooodHead/yeep/internal/store/pg"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("YEEP_COMMIT"))

	dsn := os.Getenv("YEEP_PG_DSN")
	if dsn == "" {
		log.Fatal("YEEP_PG_DSN is required")
	}
	secret := os.Getenv("YEEP_AUTH_SECRET")
	if secret == "" {
		log.Fatal("YEEP_AUTH_SECRET is required")
	}
	addr := os.Getenv("YEEP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	svc, err := iam.NewService(store)
	if err != nil {
		log.Fatalf("iam service: %v", err)
	}

	// Seed the yeep.* catalog so grants can reference it from the start.
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := svc.EnsureBuiltins(seedCtx); err != nil {
		seedCancel()
		log.Fatalf("seed builtin permissions: %v", err)
	}
	seedCancel()

	verifier, err := httpapi.NewTokenVerifier([]byte(secret))
	if err != nil {
		log.Fatalf("token verifier: %v", err)
	}

	api := httpapi.New(svc, verifier, httpapi.ReadyProbe{DB: store.DB()}, version)

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.MaxBodyBytes(
						httpapi.RateLimit(api.Handler(), 20, 10),
						1<<20,
					),
				),
			),
		),
	)

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting yeep-api %s on %s", version, srv.Addr)

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
	_ = store.Close()
	log.Println("Stopped")
}
