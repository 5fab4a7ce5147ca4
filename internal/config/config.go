package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress     string
	DatabaseURI    string
	PangaeaAddress string

	ActorID      string
	ActorToken   string
	Cashbox      string
	Taxation     int
	BillingPlace string
	Agent        bool

	// PreFullScheme enables the two-receipt scheme: a prepayment receipt on
	// payment, a full settlement receipt on delivery.
	PreFullScheme bool

	APIKeyHash string
	RedisURL   string

	PipelineInterval time.Duration
	PipelineBatch    int
	ReceiptTTL       time.Duration
	ShutdownTimeout  time.Duration
}

const (
	defaultRunAddress       = ":8080"
	defaultPipelineInterval = time.Minute
	defaultPipelineBatch    = 50
	defaultReceiptTTL       = 24 * time.Hour
	defaultShutdownTimeout  = 10 * time.Second
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:       getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:      getString(lookup, "DATABASE_URI", ""),
		PangaeaAddress:   getString(lookup, "PANGAEA_ADDRESS", ""),
		ActorID:          getString(lookup, "ACTOR_ID", ""),
		ActorToken:       getString(lookup, "ACTOR_TOKEN", ""),
		Cashbox:          getString(lookup, "CASHBOX", ""),
		Taxation:         getInt(lookup, "TAXATION", 0),
		BillingPlace:     getString(lookup, "BILLING_PLACE", ""),
		Agent:            getBool(lookup, "AGENT", false),
		PreFullScheme:    getBool(lookup, "PRE_FULL_SCHEME", false),
		APIKeyHash:       getString(lookup, "API_KEY_HASH", ""),
		RedisURL:         getString(lookup, "REDIS_URL", ""),
		PipelineInterval: getDuration(lookup, "PIPELINE_INTERVAL", defaultPipelineInterval),
		PipelineBatch:    getInt(lookup, "PIPELINE_BATCH", defaultPipelineBatch),
		ReceiptTTL:       getDuration(lookup, "RECEIPT_TTL", defaultReceiptTTL),
		ShutdownTimeout:  getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}

	fs := flag.NewFlagSet("fiscalgate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		pipelineIntervalStr = cfg.PipelineInterval.String()
		receiptTTLStr       = cfg.ReceiptTTL.String()
		shutdownTimeoutStr  = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.PangaeaAddress, "g", cfg.PangaeaAddress, "Fiscal gateway base URL")
	fs.StringVar(&cfg.ActorID, "actor-id", cfg.ActorID, "Gateway actor identifier")
	fs.StringVar(&cfg.ActorToken, "actor-token", cfg.ActorToken, "Gateway actor token")
	fs.StringVar(&cfg.Cashbox, "cashbox", cfg.Cashbox, "Cashbox group identifier")
	fs.IntVar(&cfg.Taxation, "taxation", cfg.Taxation, "Taxation regime code")
	fs.StringVar(&cfg.BillingPlace, "billing-place", cfg.BillingPlace, "Registered billing place")
	fs.BoolVar(&cfg.Agent, "agent", cfg.Agent, "Submit receipts through the agent endpoint")
	fs.BoolVar(&cfg.PreFullScheme, "pre-full", cfg.PreFullScheme, "Issue prepayment receipts before full settlement")
	fs.StringVar(&cfg.APIKeyHash, "api-key-hash", cfg.APIKeyHash, "Bcrypt hash of the caller API key")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for the pipeline run lease (optional)")
	fs.IntVar(&cfg.PipelineBatch, "pipeline-batch", cfg.PipelineBatch, "Maximum receipts per pipeline run")
	fs.StringVar(&pipelineIntervalStr, "pipeline-interval", pipelineIntervalStr, "Interval between pipeline runs")
	fs.StringVar(&receiptTTLStr, "receipt-ttl", receiptTTLStr, "Allowed attempt window before a receipt expires")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.PipelineInterval, err = time.ParseDuration(pipelineIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid pipeline interval: %w", err)
	}

	if cfg.ReceiptTTL, err = time.ParseDuration(receiptTTLStr); err != nil {
		return nil, fmt.Errorf("invalid receipt ttl: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if tokenFile, ok := lookup("ACTOR_TOKEN_FILE"); ok && tokenFile != "" {
		content, err := os.ReadFile(tokenFile)
		if err != nil {
			return nil, fmt.Errorf("read actor token file: %w", err)
		}
		cfg.ActorToken = string(content)
	}

	if cfg.PipelineBatch <= 0 {
		cfg.PipelineBatch = defaultPipelineBatch
	}

	if cfg.PipelineInterval <= 0 {
		cfg.PipelineInterval = defaultPipelineInterval
	}

	if cfg.ReceiptTTL <= 0 {
		cfg.ReceiptTTL = defaultReceiptTTL
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.PangaeaAddress == "" {
		return nil, fmt.Errorf("fiscal gateway address must be provided")
	}

	if cfg.ActorID == "" || cfg.ActorToken == "" {
		return nil, fmt.Errorf("gateway actor credentials must be provided")
	}

	if cfg.Cashbox == "" {
		return nil, fmt.Errorf("cashbox group must be provided")
	}

	if cfg.Taxation == 0 {
		return nil, fmt.Errorf("taxation regime must be provided")
	}

	if cfg.BillingPlace == "" {
		return nil, fmt.Errorf("billing place must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
