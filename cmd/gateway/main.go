// Copyright 2026 The Bot Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ruJakara/bot-project/internal/config"
	"github.com/ruJakara/bot-project/internal/crm"
	"github.com/ruJakara/bot-project/internal/observability/logger"
	"github.com/ruJakara/bot-project/internal/observability/metrics"
	"github.com/ruJakara/bot-project/internal/observability/tracing"
	"github.com/ruJakara/bot-project/internal/reminder"
	"github.com/ruJakara/bot-project/internal/scheduler"
	"github.com/ruJakara/bot-project/internal/store/postgres"
	"github.com/ruJakara/bot-project/internal/tenant"
	"github.com/ruJakara/bot-project/internal/track"
	transportHTTP "github.com/ruJakara/bot-project/internal/transport/http"
)

const crmIntegration = "alfacrm"

func main() {
	// Local .env, if present; the container/runtime environment wins
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting bot integration gateway", logger.TenantID(cfg.Tenant.ID))

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	// Tenant document: load and validate structure, then resolve secrets.
	// Both are fatal: an integration cannot be partially enabled.
	tenantCfg, err := tenant.LoadConfig(cfg.Tenant.Dir, cfg.Tenant.ID)
	if err != nil {
		slog.Error("failed to load tenant config", logger.Error(err))
		os.Exit(1)
	}
	creds, err := tenant.ResolveCredentials(tenantCfg, nil)
	if err != nil {
		slog.Error("failed to resolve integration credentials", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("tenant initialised",
		logger.TenantID(tenantCfg.TenantID), logger.BotID(tenantCfg.BotID))

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		// Degrade to no tracing; Shutdown is nil-safe
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	eventRepo := postgres.NewEventRepository(db)
	reminderRepo := postgres.NewReminderRepository(db)

	// Initialize services
	tracker := track.NewService(tenantCfg.TenantID, tenantCfg.BotID, eventRepo)

	var crmClient *crm.Client
	if tenantCfg.IntegrationEnabled(crmIntegration) {
		crmCfg, err := crm.ConfigFromParams(
			creds.Integration(crmIntegration), cfg.CRM.TokenTTL, cfg.CRM.RequestTimeout)
		if err != nil {
			slog.Error("failed to build crm config", logger.Error(err))
			os.Exit(1)
		}
		crmClient = crm.New(crmCfg, tracker, meter)
	} else {
		slog.Warn("crm integration disabled for tenant", logger.Integration(crmIntegration))
	}

	reminderService := reminder.NewService(
		tenantCfg.TenantID,
		tenantCfg.BotID,
		reminderRepo,
		tracker,
		reminder.WithMonthLength(cfg.Reminder.MonthLength),
	)

	// Reminder polling
	if cfg.Reminder.SchedulerEnabled {
		sched, err := scheduler.Start(cfg.Reminder.SchedulerTick, reminderService)
		if err != nil {
			slog.Error("failed to start reminder scheduler", logger.Error(err))
			os.Exit(1)
		}
		defer func() { _ = sched.Shutdown() }()
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(crmClient, reminderService, tracker, cfg.Trigger.Secret)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()

	db, err := postgres.New(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 2,
		MinConns: 1,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	slog.Info("schema migration applied")
	return nil
}
