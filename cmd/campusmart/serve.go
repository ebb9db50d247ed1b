package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"campusmart/internal/app"
	"campusmart/internal/assistant"
	"campusmart/internal/cas"
	"campusmart/internal/config"
	"campusmart/internal/payment"
	"campusmart/internal/server"
	"campusmart/internal/util"
	"campusmart/pkg/ai"
	"campusmart/pkg/notify"
	"campusmart/pkg/queue"
	"campusmart/pkg/storage"
	"campusmart/pkg/store"
)

func serve(parent context.Context, cfg config.FileConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	durations, err := cfg.ParseDurations()
	if err != nil {
		return err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init postgres store: %w", err)
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, store.NewRedisTokenRevoker(rdb, ""), store.JWTOptions{
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		Leeway:          durations.Leeway,
		SessionTTL:      durations.Session,
		RegistrationTTL: durations.Bridge,
	})
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	casClient, err := cas.NewClient(cas.Config{
		BaseURL:         cfg.CASURL,
		Protocol:        cfg.CASProtocol,
		AllowedServices: cfg.CASServiceURLs,
	})
	if err != nil {
		return fmt.Errorf("init cas client: %w", err)
	}

	hub := server.NewHub()
	appCfg := app.Config{
		Store:               dataStore,
		Sessions:            sessions,
		CAS:                 casClient,
		Publisher:           hub,
		AdminEmails:         cfg.AdminEmails,
		AllowedEmailDomains: cfg.AllowedEmailDomains,
		DefaultEmailDomain:  cfg.DefaultEmailDomain,
	}

	// Support tickets go through the Redis stream so a SendGrid outage only
	// delays mail.
	var ticketQueue *queue.TicketQueue
	var mailer *notify.SendGridNotifier
	if cfg.SendGridAPIKey != "" {
		mailer, err = notify.NewSendGridNotifier(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
			Inbox:     cfg.SupportInbox,
		})
		if err != nil {
			return fmt.Errorf("init sendgrid: %w", err)
		}
		ticketQueue, err = queue.NewTicketQueue(rdb, queue.Config{MaxRetries: cfg.SupportQueueMaxRetries})
		if err != nil {
			return fmt.Errorf("init support queue: %w", err)
		}
		appCfg.Notifier = ticketQueue
	} else {
		slog.Warn("sendgrid not configured; support tickets are stored only")
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer appCore.Close()

	model, err := ai.NewChatModel(ai.ProviderConfig{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		BaseURL:  cfg.AIBaseURL,
		Model:    cfg.AIModel,
	})
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}
	if model == nil {
		slog.Warn("no llm provider configured; assistant falls back to fixed replies")
	}

	srvCfg := server.Config{
		App:                         appCore,
		Assistant:                   assistant.New(appCore, model),
		Hub:                         hub,
		Redis:                       rdb,
		ServiceName:                 "campusmart",
		AllowedOrigins:              cfg.AllowedOrigins,
		TrustedProxies:              trusted,
		CASRateLimitPerMinute:       cfg.CASRateLimitPerMinute,
		AssistantRateLimitPerMinute: cfg.AssistantRateLimitPerMinute,
		SupportRateLimitPerMinute:   cfg.SupportRateLimitPerMinute,
		UploadRateLimitPerMinute:    cfg.UploadRateLimitPerMinute,
		OTPVerifyRateLimitPerMinute: cfg.OTPVerifyRateLimitPerMinute,
	}
	if cfg.RazorpayKeyID != "" {
		payments, err := payment.NewRazorpayClient(payment.Config{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			BaseURL:   cfg.RazorpayBaseURL,
		})
		if err != nil {
			return fmt.Errorf("init razorpay: %w", err)
		}
		srvCfg.Payments = payments
	} else {
		slog.Warn("razorpay not configured; payment endpoint disabled")
	}
	if cfg.MinioEndpoint != "" {
		images, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("init minio: %w", err)
		}
		srvCfg.Images = images
	} else {
		slog.Warn("minio not configured; image upload disabled")
	}

	httpServer, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if ticketQueue != nil {
		if err := ticketQueue.Start(gctx, cfg.SupportQueueConcurrency, mailTicket(appCore.Store(), mailer)); err != nil {
			return fmt.Errorf("start support queue: %w", err)
		}
	}
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// mailTicket loads the queued ticket and mails it to the support inbox.
func mailTicket(st store.Store, mailer *notify.SendGridNotifier) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		ticket, ok, err := st.GetSupportTicket(job.TicketID)
		if err != nil {
			return err
		}
		if !ok {
			slog.Warn("support ticket vanished before mailing", "ticket_id", job.TicketID, "job_id", job.ID)
			return nil
		}
		return mailer.NotifyTicket(ctx, ticket)
	}
}
