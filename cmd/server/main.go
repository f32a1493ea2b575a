package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/yegors/co-notam/internal/ai"
	"github.com/yegors/co-notam/internal/ai/gemini"
	"github.com/yegors/co-notam/internal/airports"
	"github.com/yegors/co-notam/internal/api"
	"github.com/yegors/co-notam/internal/briefing"
	"github.com/yegors/co-notam/internal/config"
	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/internal/observability"
	"github.com/yegors/co-notam/internal/sources"
	"github.com/yegors/co-notam/internal/storage/sqlite"
	"github.com/yegors/co-notam/internal/templating"
	"github.com/yegors/co-notam/internal/weather"
	"github.com/yegors/co-notam/internal/websocket"
	"github.com/yegors/co-notam/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Co-NOTAM server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.String("home_airport", cfg.Station.AirportCode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reference data
	airportDB, err := airports.Load(cfg.Station.AirportsDBPath, cfg.Station.RunwaysDBPath, log)
	if err != nil {
		log.Error("Failed to load airport database", logger.Error(err))
		os.Exit(1)
	}

	pipeline, err := buildPipeline(cfg.NOTAMs.RulesPath)
	if err != nil {
		log.Error("Failed to build categorization pipeline", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Categorization pipeline ready", logger.Strings("categorizers", pipeline.CategorizerNames()))

	// Create SQLite storage
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLitePath))
		os.Exit(1)
	}
	store, err := sqlite.NewNotamStorage(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	metrics := observability.NewMetrics()

	// Create and start WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run(ctx)

	// Create weather service (optional)
	var weatherService *weather.Service
	if cfg.Weather.FetchMETAR || cfg.Weather.FetchTAF {
		weatherService = weather.NewService(weather.WeatherConfig{
			RefreshIntervalMinutes: cfg.Weather.RefreshIntervalMinutes,
			APIBaseURL:             cfg.Weather.APIBaseURL,
			RequestTimeoutSeconds:  cfg.Weather.RequestTimeoutSeconds,
			MaxRetries:             cfg.Weather.MaxRetries,
			FetchMETAR:             cfg.Weather.FetchMETAR,
			FetchTAF:               cfg.Weather.FetchTAF,
			CacheExpiryMinutes:     cfg.Weather.CacheExpiryMinutes,
		}, cfg.NOTAMs.Airports, clockwork.NewRealClock(), log)

		if err := weatherService.Start(); err != nil {
			log.Error("Failed to start weather service", logger.Error(err))
			os.Exit(1)
		}
	} else {
		log.Info("Weather service disabled in configuration")
	}

	// Create summarizer (if enabled)
	var summarizer ai.Summarizer
	if cfg.AI.Enabled {
		summarizer, err = buildSummarizer(ctx, cfg.AI, log)
		if err != nil {
			// Continue without summaries rather than failing
			log.Error("Failed to create briefing summarizer", logger.Error(err))
			summarizer = nil
		}
	} else {
		log.Info("AI summaries disabled in configuration")
	}

	deps := briefing.Dependencies{
		Sources:    buildSources(cfg, log),
		Pipeline:   pipeline,
		Airports:   airportDB,
		Store:      store,
		Hub:        wsServer,
		Metrics:    metrics,
		Templates:  templating.NewService(cfg.Templating, log),
		Summarizer: summarizer,
	}
	if weatherService != nil {
		deps.Weather = weatherService
	}

	briefingService, err := briefing.NewService(briefing.Config{
		RefreshInterval: time.Duration(cfg.NOTAMs.RefreshIntervalMinutes) * time.Minute,
		DefaultRadiusNM: cfg.NOTAMs.DefaultRadiusNM,
		RouteCorridorNM: cfg.NOTAMs.RouteCorridorNM,
		RetainDays:      cfg.Storage.RetainDays,
	}, deps, log)
	if err != nil {
		log.Error("Failed to create briefing service", logger.Error(err))
		os.Exit(1)
	}
	if err := briefingService.Start(); err != nil {
		log.Error("Failed to start briefing service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	var weatherSource api.WeatherSource
	if weatherService != nil {
		weatherSource = weatherService
	}
	router := api.NewRouter(briefingService, weatherSource, wsServer, metrics, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	handler := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping briefing service...")
	briefingService.Stop()
	log.Info("Briefing service stopped.")

	if weatherService != nil {
		log.Info("Stopping weather service...")
		weatherService.Stop()
		log.Info("Weather service stopped.")
	}

	// Cancel the main context, closing WebSocket clients
	cancel()

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}

// buildPipeline returns the default pipeline, extended with the rules file when set
func buildPipeline(rulesPath string) (*notam.Pipeline, error) {
	if rulesPath == "" {
		return notam.DefaultPipeline(), nil
	}
	rules, err := notam.LoadTextRulesFile(rulesPath)
	if err != nil {
		return nil, err
	}
	return notam.PipelineWithRules(rules...)
}

// buildSources creates one source per configured endpoint. HTTP sources share
// a fetcher so the rate limit and breakers apply across all of them.
func buildSources(cfg *config.Config, log *logger.Logger) []sources.Source {
	fetcher := sources.NewFetcher(sources.FetcherConfig{
		RequestTimeout:    time.Duration(cfg.NOTAMs.RequestTimeoutSeconds) * time.Second,
		MaxRetries:        cfg.NOTAMs.MaxRetries,
		BreakerFailures:   cfg.NOTAMs.BreakerFailures,
		RequestsPerSecond: cfg.NOTAMs.RequestsPerSecond,
		UserAgent:         "co-notam/" + Version,
	}, log)

	var srcs []sources.Source
	if cfg.NOTAMs.APIBaseURL != "" {
		srcs = append(srcs, sources.NewAPISource(fetcher, cfg.NOTAMs.APIBaseURL, cfg.NOTAMs.Airports))
	}
	for _, page := range cfg.NOTAMs.HTMLSources {
		srcs = append(srcs, sources.NewHTMLSource(fetcher, page))
	}
	for _, path := range cfg.NOTAMs.PDFSources {
		srcs = append(srcs, sources.NewPDFSource(path))
	}

	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	log.Info("NOTAM sources configured", logger.Strings("sources", names))
	return srcs
}

func buildSummarizer(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (ai.Summarizer, error) {
	prompt, err := ai.LoadSystemPrompt(cfg.PromptPath)
	if err != nil {
		return nil, err
	}
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		return nil, err
	}
	log.Info("Briefing summaries enabled", logger.String("model", cfg.Model))
	return ai.NewChatSummarizer(client, ai.ChatConfig{Model: cfg.Model}, prompt), nil
}
