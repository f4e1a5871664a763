package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/loomworks/dataloom/config"
	"github.com/loomworks/dataloom/internal/datasets"
	"github.com/loomworks/dataloom/internal/instruction"
	"github.com/loomworks/dataloom/internal/registry"
	"github.com/loomworks/dataloom/internal/runtime"
	"github.com/loomworks/dataloom/internal/security"
	"github.com/loomworks/dataloom/internal/telemetry"
	"github.com/loomworks/dataloom/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
		configDir       string
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.StringVar(&configDir, "config", "", "Directory containing dataloom.yaml (default: working directory)")
	flag.Parse()

	logger := zlog.With().Str("service", "dataloom-server").Logger()
	ctx := logger.WithContext(context.Background())

	cfg, err := config.Load(configDir)
	if err != nil {
		logger.Error().Err(err).Msg("config: failed to load")
		fmt.Fprintln(os.Stderr, "invalid configuration; check dataloom.yaml")
		os.Exit(1)
	}

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv(cfg.Dirs...)
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager")
		fmt.Fprintln(os.Stderr, "invalid security configuration; set DATALOOM_ALLOWED_DIRS or dirs in dataloom.yaml")
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintln(os.Stderr, "no allowed directories configured; set DATALOOM_ALLOWED_DIRS or dirs in dataloom.yaml")
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Msg("security allow-list configured")

	limits := runtime.LimitsFromConfig(cfg)
	runtimeController := runtime.NewController(limits)
	tel := telemetry.NewHooks(logger)
	runtimeMW := runtime.NewMiddleware(runtimeController)
	runtimeMW.SetObserver(tel.OnToolCall)

	manager := datasets.NewManager(config.DefaultDatasetIdleTTL, config.DefaultDatasetCleanupPeriod, runtimeController, nil)
	manager.SetPathValidator(secMgr)
	manager.Start()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = manager.Close(closeCtx)
	}()

	toolRegistry := registry.New()

	deps := registry.Deps{Manager: manager, Log: logger}
	if cfg.Model != "" {
		model, err := openai.New(openai.WithModel(cfg.Model))
		if err != nil {
			logger.Error().Err(err).Str("model", cfg.Model).Msg("model: initialization failed; instruction tools disabled")
		} else {
			toolRegistry.WithModel(model)
			deps.Translator = instruction.NewTranslator(model, logger)
		}
	}

	allowWrites := cfg.Writes
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("DATALOOM_ENABLE_WRITES"))); v == "1" || v == "true" || v == "yes" {
		allowWrites = true
	}
	writeFilter := registry.NewWriteToolFilter(allowWrites)

	srv := server.NewMCPServer(
		"DataLoom Dataset Editing Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(buildHooks(logger, tel)),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return writeFilter.FilterTools(ctx, tools) }),
	)

	registry.RegisterTools(srv, toolRegistry, runtimeController.LimitsSnapshot(), deps)

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_datasets", limits.MaxOpenDatasets).
		Bool("writes_enabled", allowWrites).
		Bool("model_configured", deps.Translator != nil).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		tel.OnServerStart()
		defer tel.OnServerStop()
		if err := server.ServeStdio(srv); err != nil {
			// Use stderr for transport errors so clients don't misinterpret output
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// If no transport flags provided, print usage and exit non-zero
	fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
	os.Exit(2)
}

// buildHooks constructs mcp-go server hooks for basic telemetry. Per-call
// logging lives in the runtime middleware, which also knows the duration.
func buildHooks(logger zerolog.Logger, tel *telemetry.Hooks) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddOnRegisterSession(func(ctx context.Context, session server.ClientSession) {
		tel.OnSessionStart(session.SessionID())
	})

	hooks.AddOnUnregisterSession(func(ctx context.Context, session server.ClientSession) {
		tel.OnSessionEnd(session.SessionID())
	})

	hooks.AddAfterListTools(func(ctx context.Context, id any, req *mcp.ListToolsRequest, res *mcp.ListToolsResult) {
		// Keep it light: tool count only
		logger.Info().Int("tools", len(res.Tools)).Msg("list_tools served")
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		logger.Error().Str("method", string(method)).Err(err).Msg("request error")
	})

	return hooks
}
