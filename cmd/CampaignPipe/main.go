package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/CampaignPipe/internal/api"
	"github.com/BTreeMap/CampaignPipe/internal/assets"
	"github.com/BTreeMap/CampaignPipe/internal/crm"
	"github.com/BTreeMap/CampaignPipe/internal/email"
	"github.com/BTreeMap/CampaignPipe/internal/flow"
	"github.com/BTreeMap/CampaignPipe/internal/gate"
	"github.com/BTreeMap/CampaignPipe/internal/genai"
	"github.com/BTreeMap/CampaignPipe/internal/messaging"
	"github.com/BTreeMap/CampaignPipe/internal/models"
	"github.com/BTreeMap/CampaignPipe/internal/store"
	"github.com/BTreeMap/CampaignPipe/internal/util"
	"github.com/BTreeMap/CampaignPipe/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CampaignPipe state data
	DefaultStateDir = "/var/lib/campaignpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "campaignpipe.db"
	// DefaultCRMFileName is the default CRM CSV filename inside the state directory
	DefaultCRMFileName = "crm.csv"
	// DefaultAssetsDirName is the default directory for generated ad images inside the state directory
	DefaultAssetsDirName = "assets"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build the checkpoint store
	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize checkpoint store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Build external capabilities
	genaiClient, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	emailSender, err := email.NewSendGridSender(buildEmailOptions(flags)...)
	if err != nil {
		slog.Error("Failed to initialize email sender", "error", err)
		os.Exit(1)
	}

	assetsWriter, err := assets.NewDirWriter(*flags.assetsDir)
	if err != nil {
		slog.Error("Failed to initialize assets directory", "error", err)
		os.Exit(1)
	}

	registry := buildSenderRegistry(flags)

	// Assemble the campaign pipeline
	deps := flow.Deps{
		CRM:        crm.NewCSVLookup(*flags.crmPath),
		Text:       genaiClient,
		Structured: genaiClient,
		Image:      genaiClient,
		Assets:     assetsWriter,
		Email:      emailSender,
		Senders:    registry,
		Mail: flow.MailConfig{
			From:             *flags.mailFrom,
			FromName:         *flags.mailFromName,
			DefaultRecipient: *flags.mailTo,
			Subject:          *flags.mailSubject,
		},
	}
	engine := flow.NewEngine(st, flow.NewPipeline(deps))
	runner := flow.NewRunner(engine, st)
	runner.RecoverIncomplete()

	admission := gate.New(gate.WithCooldown(time.Duration(*flags.cooldownSeconds) * time.Second))

	// Start the service
	slog.Info("Bootstrapping CampaignPipe with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "cooldown_seconds", *flags.cooldownSeconds)
	srv := api.NewServer(admission, runner, st, buildAPIOptions(flags)...)
	if err := srv.Run(); err != nil {
		slog.Error("CampaignPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CampaignPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	SendGridKey     string
	MailFrom        string
	MailFromName    string
	MailTo          string
	MailSubject     string
	CRMPath         string
	AssetsDir       string
	APIAddr         string
	CooldownSeconds int
	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	WhatsAppEnabled bool
	WhatsAppDSN     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	openaiKey       *string
	sendgridKey     *string
	mailFrom        *string
	mailFromName    *string
	mailTo          *string
	mailSubject     *string
	crmPath         *string
	assetsDir       *string
	apiAddr         *string
	cooldownSeconds *int
	twilioSID       *string
	twilioToken     *string
	twilioFrom      *string
	whatsappEnabled *bool
	whatsappDSN     *string
	qrOutput        *string
	numeric         *bool
}

// initializeLogger sets up structured logging; debug level is opt-in via
// CAMPAIGNPIPE_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CAMPAIGNPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("CAMPAIGNPIPE_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		SendGridKey:     os.Getenv("SENDGRID_API_KEY"),
		MailFrom:        os.Getenv("MAIL_FROM"),
		MailFromName:    os.Getenv("MAIL_FROM_NAME"),
		MailTo:          os.Getenv("MAIL_DEFAULT_RECIPIENT"),
		MailSubject:     os.Getenv("MAIL_SUBJECT"),
		CRMPath:         os.Getenv("CRM_CSV_PATH"),
		AssetsDir:       os.Getenv("ASSETS_DIR"),
		APIAddr:         os.Getenv("API_ADDR"),
		CooldownSeconds: util.ParseIntEnv("TRIGGER_COOLDOWN_SECONDS", int(gate.DefaultCooldown/time.Second)),
		TwilioSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:      os.Getenv("TWILIO_FROM_NUMBER"),
		WhatsAppEnabled: util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		WhatsAppDSN:     os.Getenv("WHATSAPP_DB_DSN"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CAMPAIGNPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("CAMPAIGNPIPE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.CRMPath == "" {
		config.CRMPath = filepath.Join(config.StateDir, DefaultCRMFileName)
	}
	if config.AssetsDir == "" {
		config.AssetsDir = filepath.Join(config.StateDir, DefaultAssetsDirName)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CAMPAIGNPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"SENDGRID_API_KEY_SET", config.SendGridKey != "",
		"MAIL_FROM", config.MailFrom,
		"CRM_CSV_PATH", config.CRMPath,
		"API_ADDR", config.APIAddr,
		"TRIGGER_COOLDOWN_SECONDS", config.CooldownSeconds,
		"TWILIO_CONFIGURED", config.TwilioSID != "",
		"WHATSAPP_ENABLED", config.WhatsAppEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for CampaignPipe data (overrides $CAMPAIGNPIPE_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "checkpoint database DSN (overrides $DATABASE_URL)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		sendgridKey:     flag.String("sendgrid-api-key", config.SendGridKey, "SendGrid API key (overrides $SENDGRID_API_KEY)"),
		mailFrom:        flag.String("mail-from", config.MailFrom, "sender address for campaign emails (overrides $MAIL_FROM)"),
		mailFromName:    flag.String("mail-from-name", config.MailFromName, "sender display name for campaign emails (overrides $MAIL_FROM_NAME)"),
		mailTo:          flag.String("mail-to", config.MailTo, "fallback recipient when the CRM record has no email (overrides $MAIL_DEFAULT_RECIPIENT)"),
		mailSubject:     flag.String("mail-subject", config.MailSubject, "subject for campaign emails (overrides $MAIL_SUBJECT)"),
		crmPath:         flag.String("crm-csv", config.CRMPath, "path to the CRM CSV file (overrides $CRM_CSV_PATH)"),
		assetsDir:       flag.String("assets-dir", config.AssetsDir, "directory for generated ad images (overrides $ASSETS_DIR)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		cooldownSeconds: flag.Int("cooldown-seconds", config.CooldownSeconds, "per-user trigger cooldown in seconds (overrides $TRIGGER_COOLDOWN_SECONDS)"),
		twilioSID:       flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID for SMS delivery (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:     flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token for SMS delivery (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:      flag.String("twilio-from-number", config.TwilioFrom, "Twilio sender number for SMS delivery (overrides $TWILIO_FROM_NUMBER)"),
		whatsappEnabled: flag.Bool("whatsapp", config.WhatsAppEnabled, "enable the WhatsApp delivery channel (overrides $WHATSAPP_ENABLED)"),
		whatsappDSN:     flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow database DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:        flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:         flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"sendgridKeySet", *flags.sendgridKey != "",
		"mailFrom", *flags.mailFrom,
		"crmPath", *flags.crmPath,
		"assetsDir", *flags.assetsDir,
		"apiAddr", *flags.apiAddr,
		"cooldownSeconds", *flags.cooldownSeconds,
		"twilioConfigured", *flags.twilioSID != "",
		"whatsappEnabled", *flags.whatsappEnabled)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore selects the checkpoint store backend from the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildEmailOptions constructs SendGrid configuration options
func buildEmailOptions(flags Flags) []email.Option {
	var emailOpts []email.Option
	if *flags.sendgridKey != "" {
		emailOpts = append(emailOpts, email.WithAPIKey(*flags.sendgridKey))
	}
	return emailOpts
}

// buildSenderRegistry wires the optional SMS and WhatsApp channels. Either
// channel failing to initialize is non-fatal; email remains the primary path.
func buildSenderRegistry(flags Flags) *messaging.Registry {
	registry := messaging.NewRegistry()

	if *flags.twilioSID != "" && *flags.twilioToken != "" && *flags.twilioFrom != "" {
		svc, err := messaging.NewTwilioService(
			messaging.WithAccountSID(*flags.twilioSID),
			messaging.WithAuthToken(*flags.twilioToken),
			messaging.WithFromNumber(*flags.twilioFrom),
		)
		if err != nil {
			slog.Warn("Failed to initialize Twilio SMS sender, SMS channel disabled", "error", err)
		} else {
			registry.Register(models.ChannelSMS, svc)
			slog.Info("SMS channel enabled via Twilio")
		}
	} else {
		slog.Debug("Twilio credentials not configured, SMS channel disabled")
	}

	if *flags.whatsappEnabled {
		var waOpts []whatsapp.Option
		if *flags.whatsappDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			slog.Warn("Failed to initialize WhatsApp client, WhatsApp channel disabled", "error", err)
		} else {
			registry.Register(models.ChannelWhatsApp, messaging.NewWhatsAppService(client))
			slog.Info("WhatsApp channel enabled")
		}
	} else {
		slog.Debug("WhatsApp channel not enabled")
	}

	return registry
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
