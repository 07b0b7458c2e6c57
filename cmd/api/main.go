package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mindfulmovement/service-session-go/internal/auth"
	"github.com/mindfulmovement/service-session-go/internal/backend"
	"github.com/mindfulmovement/service-session-go/internal/identity/entity"
	"github.com/mindfulmovement/service-session-go/internal/lookup"
	"github.com/mindfulmovement/service-session-go/internal/routeguard"
	"github.com/mindfulmovement/service-session-go/internal/router"
	"github.com/mindfulmovement/service-session-go/internal/session"
	"github.com/mindfulmovement/service-session-go/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-session-go")

	handle, err := backend.Open(backend.ConfigFromEnv(), sugar)
	if err != nil {
		sugar.Fatalf("backend open: %v", err)
	}
	defer handle.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror := session.NewMirror(handle.State, sugar)
	authSvc := auth.NewService(handle.Identity, handle.Docs, mirror, sugar)

	// keep the mirror in step with the identity session, including the
	// durable session restored below
	stateSub := handle.Identity.SubscribeSessionState(func(acct *entity.AccountView) {
		authSvc.HandleSessionState(ctx, acct)
	})
	defer stateSub.Close()
	if _, err := handle.Identity.ResumeSession(ctx); err != nil {
		sugar.Warnf("resume session: %v", err)
	}

	eventTypes := lookup.New(lookup.EventTypesCollection, lookup.DefaultEventTypes, handle.Docs, sugar)
	suburbs := lookup.New(lookup.SuburbsCollection, lookup.DefaultSuburbs, handle.Docs, sugar)
	if err := eventTypes.Start(ctx); err != nil {
		sugar.Warnf("event types subscription: %v", err)
	}
	defer eventTypes.Stop()
	if err := suburbs.Start(ctx); err != nil {
		sugar.Warnf("suburbs subscription: %v", err)
	}
	defer suburbs.Stop()

	guard := routeguard.NewGuard(mirror, "/auth", "/")
	handler := router.RegisterRoutes(sugar, router.Deps{
		Auth:       auth.NewHandler(authSvc, mirror, sugar),
		EventTypes: lookup.NewHandler(eventTypes, sugar),
		Suburbs:    lookup.NewHandler(suburbs, sugar),
		Guard:      guard,
		Policies:   routeguard.DefaultTable(),
	})

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8431"
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Infow("service is running", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
