package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/resend"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	httphandler "github.com/robertarktes/event-ticketing-payments/internal/http"
	"github.com/robertarktes/event-ticketing-payments/internal/mailer"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.ValidateMailer(); err != nil {
		log.Fatalf("refusing to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "mailer")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	handler := mailer.NewHandler(resend.NewSender(cfg.ResendAPIKey), mailer.Options{
		Secret:     cfg.EmailWebhookSecret,
		Credential: cfg.SupabaseServiceKey,
		From:       cfg.EmailFrom,
		LogoURL:    cfg.EmailLogoURL,
	}, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httphandler.LoggerMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
	}))
	r.Handle("/functions/v1/send-booking-email-secure", handler)
	r.Handle("/", handler)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.WithField("port", cfg.Port).Info("mailer listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown mailer ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
}
