package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pricepulse/pkg/assistant"
	"pricepulse/pkg/channels"
	_ "pricepulse/pkg/channels/autoload" // Register channel factories
	"pricepulse/pkg/config"
	"pricepulse/pkg/dashboard"
	"pricepulse/pkg/gateway"
	"pricepulse/pkg/llm"
	_ "pricepulse/pkg/llm/autoload" // Register LLM provider factories
	"pricepulse/pkg/monitor"
	"pricepulse/pkg/tools"
	"pricepulse/pkg/transcript"
)

func main() {
	monitor.PrintBanner()

	// --- 0. Configuration ---
	cfg, sysCfg, err := config.Load()
	if err != nil {
		slog.Error("❌ Failed to load configuration", "error", err)
		os.Exit(1)
	}
	monitor.SetupSlog(sysCfg.LogLevel)

	// --- 1. LLM backend ---
	client, err := llm.NewFromConfig(cfg.LLM, sysCfg)
	if err != nil {
		slog.Error("❌ Failed to init LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ LLM backend ready", "provider", client.Provider())

	// --- 2. Dashboard state and catalog ---
	state := dashboard.NewState()
	catalog, err := dashboard.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		slog.Warn("⚠️ Could not load product catalog, enrichment disabled", "path", cfg.CatalogPath, "error", err)
		catalog = dashboard.NewCatalog(nil)
	} else {
		slog.Info("📊 Product catalog loaded", "products", catalog.Len())
	}

	// --- 3. Assistant engine ---
	storageDir := cfg.StorageDir
	if storageDir == "" {
		storageDir = "data/sessions"
	}
	sessions := transcript.NewSessionManager(storageDir)

	engine := assistant.NewEngine(client, cfg, sysCfg, sessions, state, catalog)
	engine.RegisterTool(
		tools.NewFiltersTool(state),
		tools.NewDelegateTool(state),
	)

	// --- 4. Gateway and channels ---
	chans := channels.LoadFromConfig(cfg.Channels, channels.Deps{
		Engine: engine,
		State:  state,
		System: sysCfg,
	})

	gw, err := gateway.NewGatewayBuilder().
		WithSystemConfig(sysCfg).
		WithMonitor(monitor.NewCLIMonitor()).
		WithEngine(engine).
		WithChannel(chans...).
		Build()
	if err != nil {
		slog.Error("❌ Failed to build gateway", "error", err)
		os.Exit(1)
	}

	// --- 5. Config hot reload (system.json tuning only) ---
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	reload := config.WatchConfig(watchCtx, "system.json")
	go func() {
		for range reload {
			fresh := config.LoadSystemConfig("system.json")
			*sysCfg = *fresh
			monitor.SetupSlog(sysCfg.LogLevel)
			slog.Info("🔄 system.json reloaded")
		}
	}()

	// --- 6. Wait for shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	slog.Info("Received shutdown signal. Stopping services...")
	gw.StopAll()
	slog.Info("Bye!")
}
