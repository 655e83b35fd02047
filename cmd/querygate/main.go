package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/querygate/querygate/internal/adapter/httpapi"
	"github.com/querygate/querygate/internal/adapter/llm"
	"github.com/querygate/querygate/internal/adapter/mcp"
	"github.com/querygate/querygate/internal/adapter/postgres"
	"github.com/querygate/querygate/internal/audit"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/core/domain"
	"github.com/querygate/querygate/internal/core/port"
	"github.com/querygate/querygate/internal/core/service"
	"github.com/querygate/querygate/internal/policy"
	"github.com/querygate/querygate/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

func main() {
	overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags builds config overrides from CLI flags. Only flags the user
// actually passed become overrides, so env vars keep their place in the
// precedence order.
func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("querygate", flag.ContinueOnError)

	databaseURL := fs.String("database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	maxQueryLength := fs.Int("max-query-length", 0, "maximum accepted candidate SQL length in characters")
	maxRows := fs.Int("max-rows", 0, "row cap enforced on every query")
	queryTimeout := fs.Duration("query-timeout", 0, "per-query execution timeout")
	schemaTTL := fs.Duration("schema-cache-ttl", 0, "schema snapshot time-to-live")
	allowedTables := fs.String("allowed-tables", "", "comma-separated table allow-list")
	policyFile := fs.String("policy-file", "", "path to policy YAML")
	llmModel := fs.String("llm-model", "", "chat model used for SQL generation")
	transport := fs.String("transport", "", `transport: "stdio" or "http"`)
	httpAddr := fs.String("http-addr", "", "HTTP listen address")
	bearerToken := fs.String("http-bearer-token", "", "bearer token required by the HTTP API")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics")
	auditLog := fs.String("audit-log", "", "path to NDJSON audit log file")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	var o config.Overrides
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "database-url":
			o.DatabaseURL = databaseURL
		case "log-level":
			o.LogLevel = logLevel
		case "max-query-length":
			o.MaxQueryLength = maxQueryLength
		case "max-rows":
			o.MaxRows = maxRows
		case "query-timeout":
			o.QueryTimeout = queryTimeout
		case "schema-cache-ttl":
			o.SchemaCacheTTL = schemaTTL
		case "allowed-tables":
			o.AllowedTables = allowedTables
		case "policy-file":
			o.PolicyFile = policyFile
		case "llm-model":
			o.LLMModel = llmModel
		case "transport":
			o.Transport = transport
		case "http-addr":
			o.HTTPAddr = httpAddr
		case "http-bearer-token":
			o.HTTPBearerToken = bearerToken
		case "otel":
			o.OTelEnabled = *otelEnabled
		case "audit-log":
			o.AuditLog = *auditLog
		}
	})
	return o, nil
}

func run(overrides config.Overrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr — stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting querygate",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("transport", cfg.Transport),
		slog.String("database_url", redactDSN(cfg.DatabaseURL)),
		slog.Int("max_query_length", cfg.MaxQueryLength),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Observability (optional).
	var tracer trace.Tracer
	var inst port.Instrumentation = port.NoopInstrumentation{}
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "querygate", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
		tracer = otel.Tracer("querygate")
		instruments, err := telemetry.NewInstruments("querygate")
		if err != nil {
			return fmt.Errorf("creating instruments: %w", err)
		}
		inst = instruments
		logger.Info("telemetry enabled")
	} else {
		tracer = telemetry.NoopTracer()
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolSettings{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	// Gate configuration, optionally extended by the policy file.
	gate := domain.NewGateConfig(cfg.MaxQueryLength, cfg.MaxRows)
	allowedTables := cfg.AllowedTables
	var descriptions map[string]string
	var masks map[string]domain.MaskType
	if cfg.PolicyFile != "" {
		pol, err := policy.LoadFromFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		gate, err = gate.Extend(pol.Gate.BlockedKeywords, pol.Gate.BlockedPatterns)
		if err != nil {
			return fmt.Errorf("extending gate from policy: %w", err)
		}
		if len(pol.AllowTables) > 0 {
			allowedTables = pol.AllowTables
		}
		descriptions = pol.Descriptions()
		masks = pol.Masks()
		logger.Info("policy loaded", slog.String("file", cfg.PolicyFile))
	}

	// Audit sink (optional).
	var auditor port.QueryAuditor
	if cfg.AuditLog != "" {
		fileAuditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer fileAuditor.Close()
		auditor = fileAuditor
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	// Adapters
	catalog := postgres.NewCatalog(pool)
	executor := postgres.NewExecutor(pool, cfg.QueryTimeout)
	generator, err := llm.NewGenerator(cfg.LLMModel, cfg.OpenAIAPIKey)
	if err != nil {
		return fmt.Errorf("creating sql generator: %w", err)
	}

	// Services
	registry := service.NewSchemaRegistry(catalog, cfg.SchemaCacheTTL, allowedTables, descriptions, logger)
	if _, err := registry.Refresh(ctx); err != nil {
		// Serve anyway: the registry fails closed until a refresh succeeds.
		logger.Warn("initial schema refresh failed", slog.Any("error", err))
	}
	querySvc := service.NewQueryService(registry, executor, auditor, logger, gate, masks, tracer, inst)
	chatSvc := service.NewChatService(registry, generator, querySvc, logger, tracer)

	switch cfg.Transport {
	case "http":
		handlers := httpapi.NewHandlers(chatSvc, querySvc, registry, logger)
		srv := httpapi.NewServer(cfg.HTTPAddr, cfg.HTTPBearerToken, handlers, logger, inst)
		if err := srv.Serve(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	default:
		mcpServer := mcp.NewServer(version, chatSvc, querySvc, registry, logger, tracer, inst)
		stdioServer := mcpserver.NewStdioServer(mcpServer)
		logger.Info("serving MCP over stdio")
		if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil {
			return fmt.Errorf("stdio server: %w", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// redactDSN replaces the password in a connection string for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
