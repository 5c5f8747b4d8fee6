package ops

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"tradepipe/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	yerrors "github.com/yanun0323/errors"
)

// EnvPrefix prefixes every environment override, e.g. TRADEPIPE_GATEWAY_ADDRESS.
const EnvPrefix = "TRADEPIPE"

// FileConfig mirrors the config file layout.
type FileConfig struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Book      BookConfig      `mapstructure:"book"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Store     StoreConfig     `mapstructure:"store"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Obs       ObsConfig       `mapstructure:"obs"`
	Random    RandomConfig    `mapstructure:"random"`

	Symbols         []string      `mapstructure:"symbols"`
	StatsInterval   time.Duration `mapstructure:"stats_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// EndpointConfig is a listen or dial address.
type EndpointConfig struct {
	Network string `mapstructure:"network"`
	Address string `mapstructure:"address"`
}

type GatewayConfig struct {
	Endpoint           EndpointConfig `mapstructure:"endpoint"`
	MarketDataInterval time.Duration  `mapstructure:"market_data_interval"`
	NewsInterval       time.Duration  `mapstructure:"news_interval"`
	PollInterval       time.Duration  `mapstructure:"poll_interval"`
	Depth              int            `mapstructure:"depth"`
}

type BookConfig struct {
	PrimarySymbol string      `mapstructure:"primary_symbol"`
	Mirror        RedisConfig `mapstructure:"mirror"`
}

type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StrategyConfig struct {
	Alpha              float64 `mapstructure:"alpha"`
	PriceThreshold     float64 `mapstructure:"price_threshold"`
	SentimentThreshold float64 `mapstructure:"sentiment_threshold"`
	MinQuantity        int     `mapstructure:"min_quantity"`
	MaxQuantity        int     `mapstructure:"max_quantity"`
	AttachStore        bool    `mapstructure:"attach_store"`
}

type ExecutionConfig struct {
	Endpoint    EndpointConfig `mapstructure:"endpoint"`
	MaxSlippage float64        `mapstructure:"max_slippage"`
	QueueSize   int            `mapstructure:"queue_size"`
	Journal     JournalConfig  `mapstructure:"journal"`
}

type JournalConfig struct {
	Path     string      `mapstructure:"path"`
	Postgres string      `mapstructure:"postgres"`
	Kafka    KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type StoreConfig struct {
	Dir      string `mapstructure:"dir"`
	Name     string `mapstructure:"name"`
	Capacity int    `mapstructure:"capacity"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

type ObsConfig struct {
	MetricsAddress   string `mapstructure:"metrics_address"`
	PyroscopeAddress string `mapstructure:"pyroscope_address"`
}

type RandomConfig struct {
	Seed          int64 `mapstructure:"seed"`
	Deterministic bool  `mapstructure:"deterministic"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	FileConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.endpoint.network", "tcp")
	v.SetDefault("gateway.endpoint.address", "127.0.0.1:5555")
	v.SetDefault("gateway.market_data_interval", 100*time.Millisecond)
	v.SetDefault("gateway.news_interval", 2*time.Second)
	v.SetDefault("gateway.poll_interval", 10*time.Millisecond)
	v.SetDefault("gateway.depth", 5)

	v.SetDefault("book.primary_symbol", "")
	v.SetDefault("book.mirror.address", "")
	v.SetDefault("book.mirror.password", "")
	v.SetDefault("book.mirror.db", 0)
	v.SetDefault("book.mirror.key", "tradepipe:book")
	v.SetDefault("book.mirror.ttl", 5*time.Second)

	v.SetDefault("strategy.alpha", 0.3)
	v.SetDefault("strategy.price_threshold", 0.005)
	v.SetDefault("strategy.sentiment_threshold", 0.3)
	v.SetDefault("strategy.min_quantity", 10)
	v.SetDefault("strategy.max_quantity", 100)
	v.SetDefault("strategy.attach_store", true)

	v.SetDefault("execution.endpoint.network", "tcp")
	v.SetDefault("execution.endpoint.address", "127.0.0.1:5558")
	v.SetDefault("execution.max_slippage", 0.001)
	v.SetDefault("execution.queue_size", 1024)
	v.SetDefault("execution.journal.path", "trades.log")
	v.SetDefault("execution.journal.postgres", "")
	v.SetDefault("execution.journal.kafka.brokers", []string{})
	v.SetDefault("execution.journal.kafka.topic", "tradepipe.executions")

	v.SetDefault("store.dir", "/dev/shm")
	v.SetDefault("store.name", "orderbook_shm")
	v.SetDefault("store.capacity", 65536)

	v.SetDefault("retry.attempts", 5)
	v.SetDefault("retry.delay", time.Second)

	v.SetDefault("obs.metrics_address", "")
	v.SetDefault("obs.pyroscope_address", "")

	v.SetDefault("random.seed", 0)
	v.SetDefault("random.deterministic", false)

	v.SetDefault("symbols", []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"})
	v.SetDefault("stats_interval", 10*time.Second)
	v.SetDefault("shutdown_timeout", 5*time.Second)
}

// Load resolves the configuration from defaults, an optional .env file, an
// optional config file (JSON or YAML) and TRADEPIPE_* environment variables,
// in increasing precedence.
func Load(path string) (Loaded, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Loaded{}, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Loaded{}, err
		}
	}

	var cfg FileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	cfg.Symbols = normalizeSymbols(cfg.Symbols)
	if len(cfg.Symbols) == 0 {
		return Loaded{}, invalid("symbols is empty")
	}
	if cfg.Book.PrimarySymbol == "" {
		cfg.Book.PrimarySymbol = cfg.Symbols[0]
	}
	cfg.Book.PrimarySymbol = strings.ToUpper(cfg.Book.PrimarySymbol)

	if err := validateEndpoint("gateway", cfg.Gateway.Endpoint); err != nil {
		return Loaded{}, err
	}
	if err := validateEndpoint("execution", cfg.Execution.Endpoint); err != nil {
		return Loaded{}, err
	}
	if cfg.Gateway.MarketDataInterval <= 0 || cfg.Gateway.NewsInterval <= 0 || cfg.Gateway.PollInterval <= 0 {
		return Loaded{}, invalid("gateway intervals must be > 0")
	}
	if cfg.Gateway.Depth <= 0 {
		return Loaded{}, invalid("gateway depth must be > 0")
	}
	if cfg.Strategy.Alpha <= 0 || cfg.Strategy.Alpha > 1 {
		return Loaded{}, invalid("strategy alpha must be in (0, 1]")
	}
	if cfg.Strategy.PriceThreshold < 0 || cfg.Strategy.SentimentThreshold < 0 {
		return Loaded{}, invalid("strategy thresholds must be >= 0")
	}
	if cfg.Strategy.MinQuantity <= 0 || cfg.Strategy.MaxQuantity < cfg.Strategy.MinQuantity {
		return Loaded{}, invalid("strategy quantity range is invalid")
	}
	if cfg.Execution.MaxSlippage < 0 || cfg.Execution.MaxSlippage >= 1 {
		return Loaded{}, invalid("execution max_slippage must be in [0, 1)")
	}
	if cfg.Execution.QueueSize <= 0 {
		return Loaded{}, invalid("execution queue_size must be > 0")
	}
	if cfg.Store.Name == "" || strings.ContainsRune(cfg.Store.Name, '/') {
		return Loaded{}, invalid("store name is invalid")
	}
	if cfg.Store.Capacity <= 0 {
		return Loaded{}, invalid("store capacity must be > 0")
	}
	if cfg.Retry.Attempts <= 0 || cfg.Retry.Delay < 0 {
		return Loaded{}, invalid("retry policy is invalid")
	}
	if cfg.StatsInterval <= 0 {
		return Loaded{}, invalid("stats_interval must be > 0")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Loaded{}, invalid("shutdown_timeout must be > 0")
	}
	if len(cfg.Execution.Journal.Kafka.Brokers) > 0 && cfg.Execution.Journal.Kafka.Topic == "" {
		return Loaded{}, invalid("kafka topic is empty")
	}
	return Loaded{FileConfig: cfg}, nil
}

func validateEndpoint(name string, e EndpointConfig) error {
	if e.Network != "tcp" && e.Network != "unix" {
		return invalid(name + " network must be tcp or unix")
	}
	if e.Address == "" {
		return invalid(name + " address is empty")
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func invalid(reason string) error {
	return yerrors.Wrap(exception.ErrInvalidConfig, reason)
}
