package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Milvus    MilvusConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
	Billing   BillingConfig
	Ingestion IngestionConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	AdminToken   string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

// RouteLimit is one fixed-window budget: at most MaxRequests per WindowMs
// for a given identifier on that route.
type RouteLimit struct {
	WindowMs    int
	MaxRequests int
}

func (r RouteLimit) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

type RateLimitConfig struct {
	UseRedis bool
	Routes   map[string]RouteLimit
}

type BillingConfig struct {
	Costs map[string]int
}

type IngestionConfig struct {
	ArxivAPIBase   string
	UserAgent      string
	PageSize       int
	RequestsPerSec float64
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/reef")

	viper.SetEnvPrefix("REEF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 300)
	viper.SetDefault("server.bodyLimit", 4194304)

	viper.SetDefault("sqlite.path", "./data/reef.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "papers")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.4)
	viper.SetDefault("llm.maxTokens", 4096)
	viper.SetDefault("llm.timeoutSec", 120)

	viper.SetDefault("ratelimit.useRedis", false)
	viper.SetDefault("ratelimit.routes.search.windowMs", 60_000)
	viper.SetDefault("ratelimit.routes.search.maxRequests", 20)
	viper.SetDefault("ratelimit.routes.extract-claims.windowMs", 300_000)
	viper.SetDefault("ratelimit.routes.extract-claims.maxRequests", 10)
	viper.SetDefault("ratelimit.routes.gen-angles.windowMs", 600_000)
	viper.SetDefault("ratelimit.routes.gen-angles.maxRequests", 5)
	viper.SetDefault("ratelimit.routes.gen-abstract.windowMs", 600_000)
	viper.SetDefault("ratelimit.routes.gen-abstract.maxRequests", 10)
	viper.SetDefault("ratelimit.routes.build-plan.windowMs", 600_000)
	viper.SetDefault("ratelimit.routes.build-plan.maxRequests", 3)
	viper.SetDefault("ratelimit.routes.critique-plan.windowMs", 600_000)
	viper.SetDefault("ratelimit.routes.critique-plan.maxRequests", 5)

	viper.SetDefault("billing.costs.gen-abstract", 1)
	viper.SetDefault("billing.costs.critique-plan", 5)
	viper.SetDefault("billing.costs.gen-angles", 10)
	viper.SetDefault("billing.costs.build-plan", 15)

	viper.SetDefault("ingestion.arxivAPIBase", "https://export.arxiv.org/api/query")
	viper.SetDefault("ingestion.userAgent", "reef-ingest/1.0")
	viper.SetDefault("ingestion.pageSize", 100)
	viper.SetDefault("ingestion.requestsPerSec", 0.33)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
