package domain

import "time"

// Config holds the complete service configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Engine thresholds for the pattern detector bank
	Engine EngineConfig `json:"engine"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Narrative generation settings
	Narrative NarrativeConfig `json:"narrative"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// EngineConfig holds every detector threshold as immutable data passed
// into the engine at construction, so deployments can tune thresholds
// without code edits. The severity ordering and indicator tables stay
// in the engine package as auditable static data.
type EngineConfig struct {
	// Structuring: cash amounts strictly inside (lower, upper)
	StructuringLower float64 `json:"structuringLower"`
	StructuringUpper float64 `json:"structuringUpper"`

	// Rapid cash-to-wire: minimum same-day wire amount
	CashToWireMinWire float64 `json:"cashToWireMinWire"`

	// Inbound smurfing
	SmurfingMinCount     int     `json:"smurfingMinCount"`
	SmurfingMinSenders   int     `json:"smurfingMinSenders"`
	SmurfingPerCreditMax float64 `json:"smurfingPerCreditMax"`
	SmurfingMinTotal     float64 `json:"smurfingMinTotal"`

	// P2P burst
	P2PBurstMinCount int `json:"p2pBurstMinCount"`

	// Crypto-to-bank flow
	CryptoMinOutflow float64  `json:"cryptoMinOutflow"`
	CryptoWindowDays int      `json:"cryptoWindowDays"`
	CryptoKeywords   []string `json:"cryptoKeywords"`

	// High-risk jurisdiction wires
	HighRiskKeywords []string `json:"highRiskKeywords"`

	// ATM structuring: amounts in [min, max)
	ATMStructMinAmount float64 `json:"atmStructMinAmount"`
	ATMStructMaxAmount float64 `json:"atmStructMaxAmount"`
	ATMStructMinCount  int     `json:"atmStructMinCount"`

	// Rapid outflow
	OutflowMinAmount  float64 `json:"outflowMinAmount"`
	OutflowWindowDays int     `json:"outflowWindowDays"`
	OutflowRatio      float64 `json:"outflowRatio"`

	// Layering
	LayeringWindowDays  int     `json:"layeringWindowDays"`
	LayeringMinTxs      int     `json:"layeringMinTxs"`
	LayeringMinChannels int     `json:"layeringMinChannels"`
	LayeringMinMovement float64 `json:"layeringMinMovement"`

	// Funneling
	FunnelingWindowDays         int     `json:"funnelingWindowDays"`
	FunnelingMinCredits         int     `json:"funnelingMinCredits"`
	FunnelingMinSenders         int     `json:"funnelingMinSenders"`
	FunnelingMinTotal           float64 `json:"funnelingMinTotal"`
	FunnelingConsolidationRatio float64 `json:"funnelingConsolidationRatio"`

	// MaxWorkers bounds detector parallelism
	MaxWorkers int `json:"maxWorkers"`
}

// DefaultEngineConfig returns the canonical threshold table.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StructuringLower:  9900.0,
		StructuringUpper:  10000.0,
		CashToWireMinWire: 5000.0,

		SmurfingMinCount:     4,
		SmurfingMinSenders:   3,
		SmurfingPerCreditMax: 1000.0,
		SmurfingMinTotal:     1500.0,

		P2PBurstMinCount: 2,

		CryptoMinOutflow: 5000.0,
		CryptoWindowDays: 2,
		CryptoKeywords:   []string{"cryptoexchange", "crypto exchange", "coinbase", "binance", "kraken"},

		HighRiskKeywords: []string{"highriskcountry", "sanctionedcountry", "xyz", "countryx"},

		ATMStructMinAmount: 8000.0,
		ATMStructMaxAmount: 10000.0,
		ATMStructMinCount:  3,

		OutflowMinAmount:  5000.0,
		OutflowWindowDays: 1,
		OutflowRatio:      0.8,

		LayeringWindowDays:  7,
		LayeringMinTxs:      4,
		LayeringMinChannels: 3,
		LayeringMinMovement: 6000.0,

		FunnelingWindowDays:         7,
		FunnelingMinCredits:         4,
		FunnelingMinSenders:         4,
		FunnelingMinTotal:           10000.0,
		FunnelingConsolidationRatio: 0.8,

		MaxWorkers: 10,
	}
}

// NarrativeConfig holds SAR narrative generation settings.
type NarrativeConfig struct {
	// Provider is "template" (deterministic) or "openrouter"
	Provider string `json:"provider"`

	// OpenRouter settings; the client falls back to the template on
	// any transport or model error.
	OpenRouterURL   string        `json:"openRouterUrl"`
	OpenRouterKey   string        `json:"-"`
	OpenRouterModel string        `json:"openRouterModel"`
	RequestTimeout  time.Duration `json:"requestTimeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
	Endpoint    string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:   TierCommunity,
		Engine: DefaultEngineConfig(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./amlproc.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Narrative: NarrativeConfig{
			Provider:        "template",
			OpenRouterURL:   "https://openrouter.ai/api/v1/chat/completions",
			OpenRouterModel: "deepseek/deepseek-r1-0528:free",
			RequestTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "amlproc",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "amlproc",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
