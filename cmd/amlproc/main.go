// amlproc - AML case classification that deploys in 60 seconds.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Shauryaditya/aml-case-processor/internal/api"
	"github.com/Shauryaditya/aml-case-processor/internal/bus"
	"github.com/Shauryaditya/aml-case-processor/internal/cache"
	"github.com/Shauryaditya/aml-case-processor/internal/domain"
	"github.com/Shauryaditya/aml-case-processor/internal/engine"
	"github.com/Shauryaditya/aml-case-processor/internal/jobs"
	"github.com/Shauryaditya/aml-case-processor/internal/narrative"
	"github.com/Shauryaditya/aml-case-processor/internal/repository"
	"github.com/Shauryaditya/aml-case-processor/internal/rules"
	"github.com/Shauryaditya/aml-case-processor/internal/velocity"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("AMLPROC_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting amlproc",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("AMLPROC_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	// LLM narrative generation is opt-in via API key
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		cfg.Narrative.Provider = "openrouter"
		cfg.Narrative.OpenRouterKey = key
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"narrative", cfg.Narrative.Provider,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize submission throttle
	throttle := velocity.NewService(cacheImpl, velocity.DefaultWindow, velocity.DefaultLimit)
	slog.Info("submission throttle initialized", "limit", throttle.Limit())

	// Initialize extension rule engine
	ruleEngine, err := rules.NewEngine(cfg.Engine.MaxWorkers)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}

	// Load extension rules from database (no hardcoded defaults)
	tenantIDs := tenantsFromEnv()
	if err := loadRulesFromDatabase(ctx, repo, ruleEngine, tenantIDs); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleEngine.RulesCount())

	// Initialize classification engine with the extension evaluator
	classifier := engine.New(cfg.Engine, engine.WithExtension(ruleEngine))
	slog.Info("classification engine initialized")

	// Initialize narrative generator
	generator := narrative.New(cfg.Narrative)
	slog.Info("narrative generator initialized", "provider", cfg.Narrative.Provider)

	// Initialize async case processor
	processor := jobs.NewProcessor(busImpl, repo, cacheImpl, classifier, generator)
	if err := processor.Start(jobs.Config{TenantIDs: tenantIDs}); err != nil {
		slog.Error("failed to start case processor", "error", err)
		os.Exit(1)
	}
	slog.Info("case processor started", "tenant_count", len(tenantIDs))

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, classifier, ruleEngine, generator, throttle, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("amlproc is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the case processor first so in-flight jobs finish
	if err := processor.Stop(); err != nil {
		slog.Error("failed to stop case processor", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("amlproc shutdown complete")
}

// tenantsFromEnv parses the comma-separated AMLPROC_TENANTS list. Empty
// means a single global processor handling every tenant.
func tenantsFromEnv() []string {
	raw := os.Getenv("AMLPROC_TENANTS")
	if raw == "" {
		return nil
	}
	var tenants []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadRulesFromDatabase loads each tenant's extension rules into the
// engine. Rules are configured via POST /api/rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, eng *rules.Engine, tenantIDs []string) error {
	total := 0
	for _, tenantID := range tenantIDs {
		configs, err := repo.ListRuleConfigs(ctx, tenantID)
		if err != nil {
			slog.Warn("failed to list rules from database", "tenant_id", tenantID, "error", err)
			continue
		}
		if err := eng.LoadRules(configs); err != nil {
			return err
		}
		total += len(configs)
	}

	if total == 0 {
		slog.Info("no extension rules in database - configure via POST /api/rules")
	} else {
		slog.Info("loaded extension rules from database", "count", total)
	}
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ==============================================")
	fmt.Println("                  AMLPROC")
	fmt.Println("        AML Case Classification Engine")
	fmt.Println("  ==============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/cases                 - Submit a statement or transaction batch")
	fmt.Println("    GET  /api/cases                 - List recent cases")
	fmt.Println("    GET  /api/cases/{id}            - Get case with result and narrative")
	fmt.Println("    GET  /api/cases/{id}/status     - Get case pipeline status")
	fmt.Println("    GET  /api/cases/{id}/narrative  - Get SAR narrative")
	fmt.Println("    POST /api/classify              - Classify a batch synchronously")
	fmt.Println("    GET  /api/rules                 - List extension rules")
	fmt.Println("    POST /api/rules                 - Create an extension rule")
	fmt.Println("    POST /api/rules/reload          - Hot-reload rules from database")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println()
}
