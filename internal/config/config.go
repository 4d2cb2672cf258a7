package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "TOOL_CURATOR_CONFIG"
	publicBaseURLEnv  = "PUBLIC_BASE_URL"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	storageBackendEnv = "TOOL_CURATOR_STORAGE_BACKEND"
	localDataDirEnv   = "TOOL_CURATOR_LOCAL_DATA_DIR"
	minioEndpointEnv  = "MINIO_ENDPOINT"
	minioAccessKeyEnv = "MINIO_ACCESS_KEY"
	minioSecretKeyEnv = "MINIO_SECRET_KEY"
	minioBucketEnv    = "MINIO_BUCKET_NAME"
	logLevelEnv       = "TOOL_CURATOR_LOG_LEVEL"

	detectorModelEnv  = "COMPARISON_DETECTOR_MODEL"
	generatorModelEnv = "COMPARISON_GENERATOR_MODEL"
	validatorModelEnv = "VALIDATION_MODEL"
	enhancerModelEnv  = "CONTENT_ENHANCER_MODEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	PublicBaseURL string          `yaml:"publicBaseUrl"`
	Logging       LoggingConfig   `yaml:"logging"`
	Storage       StorageConfig   `yaml:"storage"`
	Model         ModelConfig     `yaml:"model"`
	Discovery     DiscoveryConfig `yaml:"discovery"`
	Detector      DetectorConfig  `yaml:"detector"`
	Generator     GeneratorConfig `yaml:"generator"`
	Enhancer      EnhancerConfig  `yaml:"enhancer"`
	Limits        LimitsConfig    `yaml:"limits"`
}

// LoggingConfig controls console log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageBackend selects the BlobStore implementation.
type StorageBackend string

const (
	BackendLocal StorageBackend = "local"
	BackendMinio StorageBackend = "minio"
)

// StorageConfig describes where the registry dataset lives.
type StorageConfig struct {
	Backend      StorageBackend `yaml:"backend"`
	LocalDataDir string         `yaml:"localDataDir"`
	Minio        MinioConfig    `yaml:"minio"`
	RunHistoryDB string         `yaml:"runHistoryDb"`
}

// MinioConfig wires the networked object store backend.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// ModelConfig names the model used by each pipeline stage.
type ModelConfig struct {
	APIKey         string `yaml:"apiKey"`
	ValidatorModel string `yaml:"validatorModel"`
	DetectorModel  string `yaml:"detectorModel"`
	GeneratorModel string `yaml:"generatorModel"`
	EnhancerModel  string `yaml:"enhancerModel"`
}

// DiscoveryConfig drives the candidate search phase.
type DiscoveryConfig struct {
	Queries          []string `yaml:"queries"`
	ResultsPerQuery  int      `yaml:"resultsPerQuery"`
	PlausibilityGate float64  `yaml:"plausibilityGate"`
	VerificationGate float64  `yaml:"verificationGate"`
}

// DetectorConfig tunes comparison-opportunity detection.
type DetectorConfig struct {
	BatchSize       int `yaml:"batchSize"`
	MaxComparisons  int `yaml:"maxComparisons"`
	StaleDays       int `yaml:"staleDays"`
	MinValueScore   int `yaml:"minValueScore"`
	MinRationaleLen int `yaml:"minRationaleLen"`
}

// GeneratorConfig tunes comparison document generation.
type GeneratorConfig struct {
	MaxPerRun    int `yaml:"maxPerRun"`
	StaleDays    int `yaml:"staleDays"`
	MinLength    int `yaml:"minLength"`
	MinCitations int `yaml:"minCitations"`
}

// EnhancerConfig tunes per-tool content enhancement.
type EnhancerConfig struct {
	MaxPerRun int `yaml:"maxPerRun"`
	MinLength int `yaml:"minLength"`
}

// LimitsConfig caps external-call usage for every run.
type LimitsConfig struct {
	CallTimeout         time.Duration `yaml:"callTimeout"`
	MaxAttempts         int           `yaml:"maxAttempts"`
	RetryBackoff        time.Duration `yaml:"retryBackoff"`
	ConsecutiveFailures int           `yaml:"consecutiveFailures"`
	CostPerCallCents    int           `yaml:"costPerCallCents"`
	CostCeilingCents    int           `yaml:"costCeilingCents"`
}

// Load reads YAML configuration (if present), applies environment overrides,
// and validates required settings. Missing required settings are a startup
// error, never a silent fallback.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(publicBaseURLEnv); v != "" {
		c.PublicBaseURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv(storageBackendEnv); v != "" {
		c.Storage.Backend = StorageBackend(v)
	}
	if v := os.Getenv(localDataDirEnv); v != "" {
		c.Storage.LocalDataDir = v
	}
	if v := os.Getenv(minioEndpointEnv); v != "" {
		c.Storage.Minio.Endpoint = v
	}
	if v := os.Getenv(minioAccessKeyEnv); v != "" {
		c.Storage.Minio.AccessKey = v
	}
	if v := os.Getenv(minioSecretKeyEnv); v != "" {
		c.Storage.Minio.SecretKey = v
	}
	if v := os.Getenv(minioBucketEnv); v != "" {
		c.Storage.Minio.Bucket = v
	}

	if v := os.Getenv(validatorModelEnv); v != "" {
		c.Model.ValidatorModel = v
	}
	if v := os.Getenv(detectorModelEnv); v != "" {
		c.Model.DetectorModel = v
	}
	if v := os.Getenv(generatorModelEnv); v != "" {
		c.Model.GeneratorModel = v
	}
	if v := os.Getenv(enhancerModelEnv); v != "" {
		c.Model.EnhancerModel = v
	}
}

func (c *Config) validate() error {
	if c.PublicBaseURL == "" {
		return fmt.Errorf("config: %s is required and has no default", publicBaseURLEnv)
	}
	if c.Model.APIKey == "" {
		return fmt.Errorf("config: %s is required and has no default", geminiAPIKeyEnv)
	}

	switch c.Storage.Backend {
	case BackendLocal:
		// localDataDir has a documented default
	case BackendMinio:
		m := c.Storage.Minio
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return fmt.Errorf("config: minio backend requires %s, %s, %s and %s",
				minioEndpointEnv, minioAccessKeyEnv, minioSecretKeyEnv, minioBucketEnv)
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if c.Discovery.PlausibilityGate <= 0 || c.Discovery.PlausibilityGate > 1 {
		return fmt.Errorf("config: plausibility gate %v out of (0,1]", c.Discovery.PlausibilityGate)
	}
	if c.Discovery.VerificationGate <= 0 || c.Discovery.VerificationGate > 1 {
		return fmt.Errorf("config: verification gate %v out of (0,1]", c.Discovery.VerificationGate)
	}
	return nil
}

func mergeConfig(base, override Config) Config {
	if override.PublicBaseURL != "" {
		base.PublicBaseURL = override.PublicBaseURL
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Storage.Backend != "" {
		base.Storage.Backend = override.Storage.Backend
	}
	if override.Storage.LocalDataDir != "" {
		base.Storage.LocalDataDir = override.Storage.LocalDataDir
	}
	if override.Storage.RunHistoryDB != "" {
		base.Storage.RunHistoryDB = override.Storage.RunHistoryDB
	}
	if override.Storage.Minio.Endpoint != "" {
		base.Storage.Minio = override.Storage.Minio
	}

	if override.Model.APIKey != "" {
		base.Model.APIKey = override.Model.APIKey
	}
	if override.Model.ValidatorModel != "" {
		base.Model.ValidatorModel = override.Model.ValidatorModel
	}
	if override.Model.DetectorModel != "" {
		base.Model.DetectorModel = override.Model.DetectorModel
	}
	if override.Model.GeneratorModel != "" {
		base.Model.GeneratorModel = override.Model.GeneratorModel
	}
	if override.Model.EnhancerModel != "" {
		base.Model.EnhancerModel = override.Model.EnhancerModel
	}

	if len(override.Discovery.Queries) > 0 {
		base.Discovery.Queries = override.Discovery.Queries
	}
	if override.Discovery.ResultsPerQuery > 0 {
		base.Discovery.ResultsPerQuery = override.Discovery.ResultsPerQuery
	}
	if override.Discovery.PlausibilityGate > 0 {
		base.Discovery.PlausibilityGate = override.Discovery.PlausibilityGate
	}
	if override.Discovery.VerificationGate > 0 {
		base.Discovery.VerificationGate = override.Discovery.VerificationGate
	}

	if override.Detector.BatchSize > 0 {
		base.Detector.BatchSize = override.Detector.BatchSize
	}
	if override.Detector.MaxComparisons > 0 {
		base.Detector.MaxComparisons = override.Detector.MaxComparisons
	}
	if override.Detector.StaleDays > 0 {
		base.Detector.StaleDays = override.Detector.StaleDays
	}
	if override.Detector.MinValueScore > 0 {
		base.Detector.MinValueScore = override.Detector.MinValueScore
	}
	if override.Detector.MinRationaleLen > 0 {
		base.Detector.MinRationaleLen = override.Detector.MinRationaleLen
	}

	if override.Generator.MaxPerRun > 0 {
		base.Generator.MaxPerRun = override.Generator.MaxPerRun
	}
	if override.Generator.StaleDays > 0 {
		base.Generator.StaleDays = override.Generator.StaleDays
	}
	if override.Generator.MinLength > 0 {
		base.Generator.MinLength = override.Generator.MinLength
	}
	if override.Generator.MinCitations > 0 {
		base.Generator.MinCitations = override.Generator.MinCitations
	}

	if override.Enhancer.MaxPerRun > 0 {
		base.Enhancer.MaxPerRun = override.Enhancer.MaxPerRun
	}
	if override.Enhancer.MinLength > 0 {
		base.Enhancer.MinLength = override.Enhancer.MinLength
	}

	if override.Limits.CallTimeout > 0 {
		base.Limits.CallTimeout = override.Limits.CallTimeout
	}
	if override.Limits.MaxAttempts > 0 {
		base.Limits.MaxAttempts = override.Limits.MaxAttempts
	}
	if override.Limits.RetryBackoff > 0 {
		base.Limits.RetryBackoff = override.Limits.RetryBackoff
	}
	if override.Limits.ConsecutiveFailures > 0 {
		base.Limits.ConsecutiveFailures = override.Limits.ConsecutiveFailures
	}
	if override.Limits.CostPerCallCents > 0 {
		base.Limits.CostPerCallCents = override.Limits.CostPerCallCents
	}
	if override.Limits.CostCeilingCents > 0 {
		base.Limits.CostCeilingCents = override.Limits.CostCeilingCents
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Storage: StorageConfig{
			Backend:      BackendLocal,
			LocalDataDir: "dev_cache",
			RunHistoryDB: "pipeline_history.db",
		},
		Model: ModelConfig{
			ValidatorModel: "gemini-2.5-flash",
			DetectorModel:  "gemini-2.5-flash",
			GeneratorModel: "gemini-2.5-pro",
			EnhancerModel:  "gemini-2.5-flash",
		},
		Discovery: DiscoveryConfig{
			Queries: []string{
				"new AI tool launch site:producthunt.com",
				"new AI tool release site:github.com",
				"new model site:huggingface.co",
				"new model site:replicate.com",
				"indie AI tool launch",
				"open source AI tool release",
			},
			ResultsPerQuery:  10,
			PlausibilityGate: 0.80,
			VerificationGate: 0.90,
		},
		Detector: DetectorConfig{
			BatchSize:       12,
			MaxComparisons:  50,
			StaleDays:       30,
			MinValueScore:   6,
			MinRationaleLen: 50,
		},
		Generator: GeneratorConfig{
			MaxPerRun:    10,
			StaleDays:    7,
			MinLength:    1500,
			MinCitations: 2,
		},
		Enhancer: EnhancerConfig{
			MaxPerRun: 25,
			MinLength: 400,
		},
		Limits: LimitsConfig{
			CallTimeout:         3 * time.Minute,
			MaxAttempts:         3,
			RetryBackoff:        2 * time.Second,
			ConsecutiveFailures: 5,
			CostPerCallCents:    2,
			CostCeilingCents:    500,
		},
	}
}
