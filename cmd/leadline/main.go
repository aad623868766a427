package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/leadline/leadline/internal/api"
	"github.com/leadline/leadline/internal/automation"
	"github.com/leadline/leadline/internal/dedup"
	"github.com/leadline/leadline/internal/genai"
	"github.com/leadline/leadline/internal/lockfile"
	"github.com/leadline/leadline/internal/pipeline"
	"github.com/leadline/leadline/internal/store"
	"github.com/leadline/leadline/internal/twiliosms"
	"github.com/leadline/leadline/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadLine state data
	DefaultStateDir = "/var/lib/leadline"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadline.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// One LeadLine instance per state directory: the dedup cache is
	// process-local, so a second instance would double-process deliveries.
	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(flags); err != nil {
		slog.Error("LeadLine failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("LeadLine exited successfully")
}

func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	dispatcher := buildDispatcher(flags, st)
	if dispatcher != nil {
		if err := dispatcher.Start(ctx); err != nil {
			return err
		}
		defer dispatcher.Stop()
	}

	orch := newOrchestrator(st, dispatcher)

	server := api.NewServer(orch, st, buildAPIOptions(flags)...)
	slog.Info("Bootstrapping LeadLine",
		"state_dir", *flags.stateDir,
		"record_store", st != nil,
		"automation_webhook_set", *flags.webhookURL != "",
		"signature_validation", *flags.validateSignature)
	return server.Run(ctx)
}

// newOrchestrator wires the pipeline. A nil dispatcher must become a nil
// interface, not a typed nil.
func newOrchestrator(st store.Store, dispatcher *automation.Dispatcher) *pipeline.Orchestrator {
	var trigger automation.Trigger
	if dispatcher != nil {
		trigger = dispatcher
	}
	return pipeline.New(dedup.NewSeenCache(dedup.DefaultMessageCacheSize), st, trigger)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL       string
	StateDir          string
	OpenAIKey         string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	WebhookURL        string
	PublicURL         string
	APIAddr           string
	RecordStore       bool
	ValidateSignature bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir          *string
	dbDSN             *string
	openaiKey         *string
	webhookURL        *string
	publicURL         *string
	apiAddr           *string
	recordStore       *bool
	validateSignature *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StateDir:          os.Getenv("LEADLINE_STATE_DIR"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:  os.Getenv("TWILIO_FROM_NUMBER"),
		WebhookURL:        os.Getenv("AUTOMATION_WEBHOOK_URL"),
		PublicURL:         os.Getenv("LEADLINE_PUBLIC_URL"),
		APIAddr:           os.Getenv("API_ADDR"),
		RecordStore:       util.ParseBoolEnv("RECORD_STORE_ENABLED", true),
		ValidateSignature: util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", false),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADLINE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADLINE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"AUTOMATION_WEBHOOK_URL_SET", config.WebhookURL != "",
		"API_ADDR", config.APIAddr,
		"RECORD_STORE_ENABLED", config.RecordStore,
		"TWILIO_VALIDATE_SIGNATURE", config.ValidateSignature)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	dbDefault := config.DatabaseURL
	if dbDefault == "" {
		dbDefault = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", dbDefault)
	}

	flags := Flags{
		stateDir:          flag.String("state-dir", config.StateDir, "state directory for LeadLine data (overrides $LEADLINE_STATE_DIR)"),
		dbDSN:             flag.String("db-dsn", dbDefault, "database DSN for the record store (overrides $DATABASE_URL)"),
		openaiKey:         flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for drafted first-touch replies (overrides $OPENAI_API_KEY)"),
		webhookURL:        flag.String("automation-webhook", config.WebhookURL, "downstream automation webhook URL (overrides $AUTOMATION_WEBHOOK_URL)"),
		publicURL:         flag.String("public-url", config.PublicURL, "externally visible base URL for signature validation (overrides $LEADLINE_PUBLIC_URL)"),
		apiAddr:           flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		recordStore:       flag.Bool("record-store", config.RecordStore, "enable the lead/message record store (overrides $RECORD_STORE_ENABLED)"),
		validateSignature: flag.Bool("validate-signature", config.ValidateSignature, "validate carrier webhook signatures (overrides $TWILIO_VALIDATE_SIGNATURE)"),
	}

	flag.Parse()

	// A state-dir override moves the default SQLite path along with it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "db_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"webhookURL_set", *flags.webhookURL != "",
		"apiAddr", *flags.apiAddr,
		"recordStore", *flags.recordStore,
		"validateSignature", *flags.validateSignature)

	return flags
}

// buildStore constructs the record store. A disabled record store degrades
// the service to acknowledge-only.
func buildStore(flags Flags) (store.Store, error) {
	if !*flags.recordStore {
		slog.Warn("Record store disabled, running acknowledge-only")
		return nil, nil
	}

	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgres")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildDispatcher constructs the automation dispatcher, or nil when neither a
// webhook nor a responder is configured.
func buildDispatcher(flags Flags, st store.Store) *automation.Dispatcher {
	var opts []automation.Option
	if *flags.webhookURL != "" {
		opts = append(opts, automation.WithWebhookURL(*flags.webhookURL))
	}
	if responder := buildResponder(flags, st); responder != nil {
		opts = append(opts, automation.WithResponder(responder))
	}
	if len(opts) == 0 {
		slog.Info("No automation webhook or responder configured, automation triggers will be dropped")
		return nil
	}
	return automation.NewDispatcher(opts...)
}

// buildResponder wires the drafted first-touch reply path. All of the OpenAI
// key, Twilio credentials, and record store are required; a partial
// configuration disables the responder rather than failing startup.
func buildResponder(flags Flags, st store.Store) *automation.Responder {
	if *flags.openaiKey == "" || st == nil {
		return nil
	}

	drafter, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Warn("Reply drafter unavailable, responder disabled", "error", err)
		return nil
	}
	sender, err := twiliosms.NewClient()
	if err != nil {
		slog.Warn("SMS sender unavailable, responder disabled", "error", err)
		return nil
	}
	return &automation.Responder{Drafter: drafter, Sender: sender, Store: st}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.validateSignature {
		authToken := os.Getenv("TWILIO_AUTH_TOKEN")
		if authToken == "" || *flags.publicURL == "" {
			slog.Warn("Signature validation requested but TWILIO_AUTH_TOKEN or public URL missing, leaving it disabled")
		} else {
			apiOpts = append(apiOpts, api.WithSignatureValidation(authToken, *flags.publicURL))
		}
	}
	return apiOpts
}
