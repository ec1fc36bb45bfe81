package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"RepoChat/backend/go/internal/ingestion/ingesterr"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// GitHubConfig describes the repository reference and how files are fetched from it.
type GitHubConfig struct {
	RepoURL        string   `yaml:"repoURL"`        // Repository to ingest, e.g. https://github.com/owner/repo
	Branch         string   `yaml:"branch"`         // Branch or ref to read; empty means the URL's branch or main
	Token          string   `yaml:"token"`          // Access token, required for private repositories
	APIBaseURL     string   `yaml:"apiBaseURL"`     // GitHub REST API base URL
	IgnoreFiles    []string `yaml:"ignoreFiles"`    // Extra ignore globs layered over the built-in set
	MaxConcurrency int      `yaml:"maxConcurrency"` // Parallel content fetches
	MaxFileBytes   int64    `yaml:"maxFileBytes"`   // Files above this size are skipped
}

// IngestionConfig holds the chunking and shipping parameters of the pipeline.
type IngestionConfig struct {
	ChunkSize    int    `yaml:"chunkSize"`    // Characters per chunk
	ChunkOverlap int    `yaml:"chunkOverlap"` // Characters shared by consecutive chunks
	BatchSize    int    `yaml:"batchSize"`    // Records per upsert call
	IDScheme     string `yaml:"idScheme"`     // "timestamp" or "content"
	Archive      bool   `yaml:"archive"`      // Archive loaded documents to MinIO
}

// EmbeddingConfig 包含了 Embedding 提供商的配置。
type EmbeddingConfig struct {
	Provider     string            `yaml:"provider"`     // Embedding提供商 ("openai", "ollama", "gemini", "huggingface")
	Model        string            `yaml:"model"`        // 模型名称
	APIKey       string            `yaml:"apiKey"`       // API 密钥
	BaseURL      string            `yaml:"baseURL"`      // 服务基础 URL (可选)
	MaxBatchSize int               `yaml:"maxBatchSize"` // Maximum texts per embedding request
	RateLimit    TokenBucketConfig `yaml:"rateLimit"`    // Throttle for embedding requests
	CacheSize    int               `yaml:"cacheSize"`    // 缓存的向量条数，0 表示不缓存
}

// PineconeConfig 定义了 Pinecone 索引的连接配置。
type PineconeConfig struct {
	APIKey        string `yaml:"apiKey"`        // Pinecone API 密钥
	IndexName     string `yaml:"indexName"`     // 索引名称
	Host          string `yaml:"host"`          // Data plane host; resolved from the index name when empty
	ControllerURL string `yaml:"controllerURL"` // Control plane URL
	Namespace     string `yaml:"namespace"`     // 命名空间 (可选)
}

// MilvusConfig 定义了 Milvus 数据库的连接配置。
type MilvusConfig struct {
	Address    string `yaml:"address"`    // Milvus 服务地址
	Collection string `yaml:"collection"` // 集合名称 (必须预先创建)
}

// PostgresConfig 定义了 pgvector 表的连接配置。
type PostgresConfig struct {
	DSN   string `yaml:"dsn"`   // 连接字符串
	Table string `yaml:"table"` // 表名 (必须预先创建)
}

// VectorStoreConfig selects the index backend the vector sink writes to.
type VectorStoreConfig struct {
	Backend  string         `yaml:"backend"` // "pinecone", "milvus", "postgres" or "memory"
	Pinecone PineconeConfig `yaml:"pinecone"`
	Milvus   MilvusConfig   `yaml:"milvus"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 默认存储桶名称
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`    // MongoDB 服务器地址
	Username   string `yaml:"username"`   // 用户名
	Password   string `yaml:"password"`   // 密码
	Database   string `yaml:"database"`   // 数据库名称
	Collection string `yaml:"collection"` // Run records collection
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topic   string   `yaml:"topic"`   // Progress event topic
}

// DatabaseConfigs 包含所有外部存储的配置。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`   // Redis 数据库配置
	MinIO   MinIOConfig `yaml:"minio"`   // MinIO 对象存储配置
	MongoDB MongoConfig `yaml:"mongodb"` // MongoDB 数据库配置
	Kafka   KafkaConfig `yaml:"kafka"`   // Kafka 消息队列配置
}

// ServerConfig configures the ingestion HTTP API.
type ServerConfig struct {
	Address   string            `yaml:"address"`   // Listen address, e.g. ":8080"
	RunStore  string            `yaml:"runStore"`  // "memory", "mongo" or "redis"
	RateLimit TokenBucketConfig `yaml:"rateLimit"` // Throttle for run submissions
}

// DiscoveryConfig 定义了 etcd 服务注册的配置。Endpoints 为空时不注册。
type DiscoveryConfig struct {
	Endpoints     []string `yaml:"endpoints"`     // etcd 地址列表
	ServiceName   string   `yaml:"serviceName"`   // 注册的服务名
	AdvertiseAddr string   `yaml:"advertiseAddr"` // 对外公布的地址，为空时使用 server.address
	TTL           int64    `yaml:"ttl"`           // 租约秒数
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App            AppInfo              `yaml:"app"`
	Logger         LoggerConfig         `yaml:"logger"`
	GitHub         GitHubConfig         `yaml:"github"`
	Ingestion      IngestionConfig      `yaml:"ingestion"`
	Embedding      EmbeddingConfig      `yaml:"embedding"`
	VectorStore    VectorStoreConfig    `yaml:"vectorStore"`
	Databases      DatabaseConfigs      `yaml:"databases"`
	Server         ServerConfig         `yaml:"server"`
	Discovery      DiscoveryConfig      `yaml:"discovery"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// Defaults returns a configuration carrying every non-credential default.
func Defaults() *AppConfig {
	return &AppConfig{
		App:    AppInfo{Name: "repochat-ingest", Version: "1.0.0", Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		GitHub: GitHubConfig{
			APIBaseURL:     "https://api.github.com",
			MaxConcurrency: 2,
			MaxFileBytes:   1 << 20,
		},
		Ingestion: IngestionConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			BatchSize:    100,
			IDScheme:     "timestamp",
		},
		Embedding: EmbeddingConfig{
			Provider:     "openai",
			Model:        "text-embedding-3-small",
			MaxBatchSize: 512,
			RateLimit:    TokenBucketConfig{Rate: 5, Capacity: 5},
		},
		VectorStore: VectorStoreConfig{
			Backend: "pinecone",
			Pinecone: PineconeConfig{
				ControllerURL: "https://api.pinecone.io",
			},
			Postgres: PostgresConfig{Table: "repo_chunks"},
		},
		Databases: DatabaseConfigs{
			MongoDB: MongoConfig{Database: "repochat", Collection: "ingestion_runs"},
			Kafka:   KafkaConfig{Topic: "ingestion_progress"},
			MinIO:   MinIOConfig{Bucket: "repochat-documents"},
		},
		Server: ServerConfig{
			Address:   ":8080",
			RunStore:  "memory",
			RateLimit: TokenBucketConfig{Rate: 1, Capacity: 5},
		},
		Discovery: DiscoveryConfig{
			ServiceName: "ingest-service",
			TTL:         10,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          "30s",
		},
	}
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
// 文件内容覆盖在 Defaults 之上；path 为空时只使用默认值。
// 随后加载 .env 并应用环境变量覆盖。
func LoadConfig(path string) (*AppConfig, error) {
	cfg := Defaults()
	if path != "" {
		yamlFile, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
		}
	}

	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides configuration values from the environment. lookup is
// os.LookupEnv in production and a map lookup in tests.
func (c *AppConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &ingesterr.ConfigError{Field: key, Reason: fmt.Sprintf("not an integer: %q", v)}
		}
		*dst = n
		return nil
	}

	str("GITHUB_REPO_URL", &c.GitHub.RepoURL)
	str("GITHUB_TOKEN", &c.GitHub.Token)
	str("GITHUB_BRANCH", &c.GitHub.Branch)
	str("EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	str("OPENAI_API_KEY", &c.Embedding.APIKey)
	str("VECTOR_STORE_BACKEND", &c.VectorStore.Backend)
	str("PINECONE_API_KEY", &c.VectorStore.Pinecone.APIKey)
	str("PINECONE_INDEX_NAME", &c.VectorStore.Pinecone.IndexName)
	str("PINECONE_INDEX_HOST", &c.VectorStore.Pinecone.Host)
	str("LOG_LEVEL", &c.Logger.Level)

	for key, dst := range map[string]*int{
		"CHUNK_SIZE":    &c.Ingestion.ChunkSize,
		"CHUNK_OVERLAP": &c.Ingestion.ChunkOverlap,
		"BATCH_SIZE":    &c.Ingestion.BatchSize,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the relations between settings and the credentials the
// selected backends need. It does not require a repository URL: the service
// receives one per request.
func (c *AppConfig) Validate() error {
	if c.Ingestion.ChunkSize <= 0 {
		return &ingesterr.ConfigError{Field: "ingestion.chunkSize", Reason: "must be positive"}
	}
	if c.Ingestion.ChunkOverlap < 0 {
		return &ingesterr.ConfigError{Field: "ingestion.chunkOverlap", Reason: "must not be negative"}
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		return &ingesterr.ConfigError{
			Field:  "ingestion.chunkOverlap",
			Reason: fmt.Sprintf("overlap %d must be less than chunk size %d", c.Ingestion.ChunkOverlap, c.Ingestion.ChunkSize),
		}
	}
	if c.Ingestion.BatchSize <= 0 {
		return &ingesterr.ConfigError{Field: "ingestion.batchSize", Reason: "must be positive"}
	}
	switch c.Ingestion.IDScheme {
	case "timestamp", "content":
	default:
		return &ingesterr.ConfigError{Field: "ingestion.idScheme", Reason: fmt.Sprintf("unsupported scheme %q", c.Ingestion.IDScheme)}
	}

	switch c.Embedding.Provider {
	case "openai", "gemini", "huggingface":
		if c.Embedding.APIKey == "" {
			return &ingesterr.ConfigError{Field: "embedding.apiKey", Reason: fmt.Sprintf("required for provider %q", c.Embedding.Provider)}
		}
	case "ollama":
	default:
		return &ingesterr.ConfigError{Field: "embedding.provider", Reason: fmt.Sprintf("unsupported provider %q", c.Embedding.Provider)}
	}
	if c.Embedding.Model == "" {
		return &ingesterr.ConfigError{Field: "embedding.model", Reason: "must not be empty"}
	}

	switch c.VectorStore.Backend {
	case "pinecone":
		if c.VectorStore.Pinecone.APIKey == "" {
			return &ingesterr.ConfigError{Field: "vectorStore.pinecone.apiKey", Reason: "required"}
		}
		if c.VectorStore.Pinecone.IndexName == "" {
			return &ingesterr.ConfigError{Field: "vectorStore.pinecone.indexName", Reason: "required"}
		}
	case "milvus":
		if c.VectorStore.Milvus.Address == "" || c.VectorStore.Milvus.Collection == "" {
			return &ingesterr.ConfigError{Field: "vectorStore.milvus", Reason: "address and collection are required"}
		}
	case "postgres":
		if c.VectorStore.Postgres.DSN == "" {
			return &ingesterr.ConfigError{Field: "vectorStore.postgres.dsn", Reason: "required"}
		}
	case "memory":
	default:
		return &ingesterr.ConfigError{Field: "vectorStore.backend", Reason: fmt.Sprintf("unsupported backend %q", c.VectorStore.Backend)}
	}

	if c.Ingestion.Archive && (c.Databases.MinIO.Endpoint == "" || c.Databases.MinIO.Bucket == "") {
		return &ingesterr.ConfigError{Field: "databases.minio", Reason: "endpoint and bucket are required when archiving is enabled"}
	}
	return nil
}

// ValidateServer checks the settings only the ingestion service reads.
func (c *AppConfig) ValidateServer() error {
	switch c.Server.RunStore {
	case "memory":
	case "mongo":
		if c.Databases.MongoDB.Address == "" {
			return &ingesterr.ConfigError{Field: "databases.mongodb.address", Reason: "required for the mongo run store"}
		}
	case "redis":
		if c.Databases.Redis.Address == "" {
			return &ingesterr.ConfigError{Field: "databases.redis.address", Reason: "required for the redis run store"}
		}
	default:
		return &ingesterr.ConfigError{Field: "server.runStore", Reason: fmt.Sprintf("unsupported run store %q", c.Server.RunStore)}
	}
	if c.Server.RateLimit.Rate <= 0 || c.Server.RateLimit.Capacity <= 0 {
		return &ingesterr.ConfigError{Field: "server.rateLimit", Reason: "rate and capacity must be positive"}
	}
	return nil
}

// IndexName returns the name of the configured vector index.
func (c *AppConfig) IndexName() string {
	switch c.VectorStore.Backend {
	case "pinecone":
		return c.VectorStore.Pinecone.IndexName
	case "milvus":
		return c.VectorStore.Milvus.Collection
	case "postgres":
		return c.VectorStore.Postgres.Table
	default:
		return "memory"
	}
}
