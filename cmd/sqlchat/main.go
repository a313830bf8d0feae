package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/deepnoodle-ai/sqlchat"
	"github.com/deepnoodle-ai/sqlchat/config"
	"github.com/deepnoodle-ai/sqlchat/llm"
	"github.com/deepnoodle-ai/sqlchat/postgres"
	"github.com/deepnoodle-ai/sqlchat/server"
	"github.com/deepnoodle-ai/sqlchat/sqlite"
	"github.com/fatih/color"
)

// CLI configuration
type cliOptions struct {
	ConfigFile string
	REPL       bool
	JSONLogs   bool
	Verbose    bool
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg, opts)
	ctx := context.Background()

	db, err := postgres.Open(ctx, postgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime.Std(),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Std(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	executor := postgres.NewExecutor(db, logger)
	users := postgres.NewUsers(db)

	store, cleanup, err := openSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer cleanup()

	model, err := llm.NewChatModel(ctx, llm.ModelConfig{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		log.Fatalf("Failed to create chat model: %v", err)
	}

	translator, err := llm.NewSQLTranslator(llm.TranslatorOptions{
		Model:            model,
		InstructionsPath: cfg.LLM.SQLPromptPath,
		SchemaPath:       cfg.LLM.SchemaPath,
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("Failed to create translator: %v", err)
	}

	renderer, err := llm.NewAnswerRenderer(llm.RendererOptions{
		Model:            model,
		InstructionsPath: cfg.LLM.AnswerPromptPath,
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}

	pipeline, err := sqlchat.NewPipeline(sqlchat.PipelineOptions{
		Translator: translator,
		Executor:   executor,
		Renderer:   renderer,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	if opts.REPL {
		runREPL(ctx, pipeline, users)
		return
	}

	serve(cfg, logger, pipeline, users)
}

func parseFlags() *cliOptions {
	opts := &cliOptions{}

	flag.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to the YAML configuration file")
	flag.StringVar(&opts.ConfigFile, "c", "config.yaml", "Path to the YAML configuration file (shorthand)")
	flag.BoolVar(&opts.REPL, "repl", false, "Run an interactive prompt instead of the HTTP server")
	flag.BoolVar(&opts.JSONLogs, "json-logs", false, "Emit logs as JSON")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&opts.Verbose, "v", false, "Enable debug logging (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `sqlchat - answer natural language questions from a SQL database

Usage: %s [options]

Examples:
  # Serve the HTTP API
  %s -config config.yaml

  # Ask questions interactively
  %s -config config.yaml -repl

Options:
`, os.Args[0], os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func setupLogger(cfg config.Config, opts *cliOptions) *slog.Logger {
	level := parseLevel(cfg.Service.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	if opts.JSONLogs || cfg.Service.LogJSON {
		return sqlchat.NewJSONLogger(level)
	}
	return sqlchat.NewLogger(level)
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openSessionStore(cfg config.Config) (sqlchat.SessionStore, func(), error) {
	switch cfg.Sessions.Backend {
	case "memory":
		return sqlchat.NewMemoryStore(), func() {}, nil
	case "sqlite":
		store, err := sqlite.Open(cfg.Sessions.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Sessions.Backend)
	}
}

func serve(cfg config.Config, logger *slog.Logger, pipeline *sqlchat.Pipeline, users sqlchat.UserDirectory) {
	handler := server.NewHandler(cfg.Service.Name, cfg.HTTP.AllowedOrigins, server.Dependencies{
		Logger:   logger,
		Pipeline: pipeline,
		Users:    users,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Std(),
	}

	go func() {
		logger.Info("listening", "address", cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// runREPL answers questions from stdin until EOF or "exit". When a known
// username is given the conversation shares that user's session across
// restarts.
func runREPL(ctx context.Context, pipeline *sqlchat.Pipeline, users sqlchat.UserDirectory) {
	reader := bufio.NewReader(os.Stdin)

	color.Cyan("sqlchat interactive mode. Type 'exit' to quit.")
	fmt.Print("username (blank for anonymous): ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)

	var userID *int64
	sessionID := sqlchat.NewSessionID()
	if username != "" {
		user, err := users.Find(ctx, username)
		if err != nil {
			color.Red("User lookup failed: %v", err)
		} else if user == nil {
			color.Yellow("Unknown user %q, continuing anonymously", username)
		} else {
			userID = &user.ID
			sessionID = sqlchat.UserSessionID(user.ID)
			color.Green("Hello, %s", user.Username)
		}
	}

	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return
		}

		state := pipeline.Run(ctx, sqlchat.Request{
			SessionID: sessionID,
			UserID:    userID,
			Question:  question,
		})
		color.White("%s", state.Answer())
	}
}
