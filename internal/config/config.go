package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	BlobMemory = "memory"
	BlobS3     = "s3"

	DispatchSerial = "serial"
	DispatchQueued = "queued"
)

// Config stores runtime configuration for the pipeline processes.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	LogLevel           logging.Level

	StoreDriver             string
	DBURL                   string
	DBDisablePreparedBinary bool
	DBSeedEnabled           bool
	RedisURL                string

	Timezone            string
	DispatchMode        string
	DispatchItemTimeout time.Duration
	OverdueLimit        int
	FinalizeDelay       time.Duration
	FinalizeMaxRetries  int
	LockWorkers         int
	LockItemTimeout     time.Duration
	StrictScore         bool

	BatchWorkers       int
	BatchItemTimeout   time.Duration
	BatchWriteURLTTL   time.Duration
	BatchReadURLTTL    time.Duration
	RequestTokenSecret string
	RequestTokenMaxAge time.Duration

	HeartbeatRequiredStages []string
	LongRunningAfter        time.Duration
	StaleScanLimit          int

	LockSecret        string
	OrchestrateSecret string
	StartSecret       string
	ResultsSecret     string
	SchedulerSecret   string
	BatchSecret       string

	PublicBaseURL               string
	WorkerURL                   string
	WorkerToken                 string
	WorkerTimeout               time.Duration
	WorkerRequestsPerSecond     float64
	WorkerBurst                 int
	WorkerCircuitEnabled        bool
	WorkerCircuitFailureCount   int
	WorkerCircuitOpenTimeout    time.Duration
	WorkerCircuitHalfOpenMaxReq int

	BlobDriver        string
	BlobMemoryBaseURL string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3PathStyle       bool

	SlackWebhookURL string

	InternalJobToken            string
	QStashEnabled               bool
	QStashBaseURL               string
	QStashToken                 string
	QStashTargetBaseURL         string
	QStashRetries               int
	QStashTimeout               time.Duration
	QStashCircuitEnabled        bool
	QStashCircuitFailureCount   int
	QStashCircuitOpenTimeout    time.Duration
	QStashCircuitHalfOpenMaxReq int

	SchedulerAPIBaseURL string
	SchedulerLeaderKey  string
	SchedulerLeaderTTL  time.Duration
	SchedulerInstanceID string

	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}
	logLevel, err := logLevelEnv()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "matchday-pipeline"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:           logLevel,
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.ReadTimeout, err = positiveDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = positiveDuration("APP_WRITE_TIMEOUT", "60s"); err != nil {
		return Config{}, err
	}

	if err := loadStore(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadPipeline(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadSecrets(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadWorker(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadBlobStore(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadQStash(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadScheduler(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadStore(cfg *Config) error {
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", StoreMemory)))
	switch cfg.StoreDriver {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: valid values are %s, %s", cfg.StoreDriver, StoreMemory, StorePostgres)
	}

	cfg.DBURL = strings.TrimSpace(getEnv("DB_URL", ""))
	if cfg.StoreDriver == StorePostgres && cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required when STORE_DRIVER=postgres")
	}

	var err error
	if cfg.DBDisablePreparedBinary, err = boolEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true"); err != nil {
		return err
	}
	if cfg.DBSeedEnabled, err = boolEnv("DB_SEED_ENABLED", "false"); err != nil {
		return err
	}
	cfg.RedisURL = strings.TrimSpace(getEnv("REDIS_URL", ""))
	return nil
}

func loadPipeline(cfg *Config) error {
	var err error

	cfg.Timezone = strings.TrimSpace(getEnv("PIPELINE_TIMEZONE", "Europe/Istanbul"))
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("parse PIPELINE_TIMEZONE: %w", err)
	}

	cfg.DispatchMode = strings.ToLower(strings.TrimSpace(getEnv("DISPATCH_MODE", DispatchSerial)))
	switch cfg.DispatchMode {
	case DispatchSerial, DispatchQueued:
	default:
		return fmt.Errorf("invalid DISPATCH_MODE %q: valid values are %s, %s", cfg.DispatchMode, DispatchSerial, DispatchQueued)
	}

	if cfg.DispatchItemTimeout, err = positiveDuration("DISPATCH_ITEM_TIMEOUT", "20s"); err != nil {
		return err
	}
	if cfg.OverdueLimit, err = positiveInt("DISPATCH_OVERDUE_LIMIT", 50); err != nil {
		return err
	}
	if cfg.FinalizeDelay, err = positiveDuration("FINALIZE_WATCHDOG_DELAY", "20m"); err != nil {
		return err
	}
	if cfg.FinalizeMaxRetries, err = positiveInt("FINALIZE_MAX_RETRIES", 3); err != nil {
		return err
	}
	if cfg.LockWorkers, err = positiveInt("LOCK_WORKERS", 8); err != nil {
		return err
	}
	if cfg.LockItemTimeout, err = positiveDuration("LOCK_ITEM_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.StrictScore, err = boolEnv("RESULT_STRICT_SCORE", "false"); err != nil {
		return err
	}

	if cfg.BatchWorkers, err = positiveInt("BATCH_WORKERS", 8); err != nil {
		return err
	}
	if cfg.BatchItemTimeout, err = positiveDuration("BATCH_ITEM_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.BatchWriteURLTTL, err = positiveDuration("BATCH_WRITE_URL_TTL", "3h"); err != nil {
		return err
	}
	if cfg.BatchReadURLTTL, err = positiveDuration("BATCH_READ_URL_TTL", "2h"); err != nil {
		return err
	}
	if cfg.RequestTokenMaxAge, err = positiveDuration("REQUEST_TOKEN_MAX_AGE", "24h"); err != nil {
		return err
	}
	cfg.RequestTokenSecret = strings.TrimSpace(getEnv("REQUEST_TOKEN_SECRET", ""))

	cfg.HeartbeatRequiredStages = splitCSV(getEnv("HEARTBEAT_REQUIRED_STAGES", "lockOk,orchestrateOk|batchOk"))
	if cfg.LongRunningAfter, err = positiveDuration("HEARTBEAT_LONG_RUNNING_AFTER", "20m"); err != nil {
		return err
	}
	if cfg.StaleScanLimit, err = positiveInt("HEARTBEAT_STALE_SCAN_LIMIT", 50); err != nil {
		return err
	}
	return nil
}

func loadSecrets(cfg *Config) error {
	cfg.LockSecret = strings.TrimSpace(getEnv("LOCK_SECRET", ""))
	cfg.OrchestrateSecret = strings.TrimSpace(getEnv("ORCHESTRATE_SECRET", ""))
	cfg.StartSecret = strings.TrimSpace(getEnv("START_SECRET", ""))
	cfg.ResultsSecret = strings.TrimSpace(getEnv("RESULTS_SECRET", ""))
	cfg.SchedulerSecret = strings.TrimSpace(getEnv("SCHEDULER_SECRET", ""))
	cfg.BatchSecret = strings.TrimSpace(getEnv("BATCH_SECRET", ""))

	if cfg.AppEnv == EnvProd && cfg.OrchestrateSecret == "" && cfg.SchedulerSecret == "" {
		return fmt.Errorf("ORCHESTRATE_SECRET or SCHEDULER_SECRET is required when APP_ENV=prod")
	}
	return nil
}

func loadWorker(cfg *Config) error {
	var err error

	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("APP_PUBLIC_BASE_URL", "")), "/")
	cfg.WorkerURL = strings.TrimSpace(getEnv("WORKER_URL", ""))
	cfg.WorkerToken = strings.TrimSpace(getEnv("WORKER_TOKEN", ""))
	if cfg.WorkerTimeout, err = positiveDuration("WORKER_TIMEOUT", "10s"); err != nil {
		return err
	}

	rps := strings.TrimSpace(getEnv("WORKER_REQUESTS_PER_SECOND", "5"))
	cfg.WorkerRequestsPerSecond, err = strconv.ParseFloat(rps, 64)
	if err != nil {
		return fmt.Errorf("parse WORKER_REQUESTS_PER_SECOND: %w", err)
	}
	if cfg.WorkerRequestsPerSecond < 0 {
		return fmt.Errorf("WORKER_REQUESTS_PER_SECOND must be >= 0")
	}
	if cfg.WorkerBurst, err = positiveInt("WORKER_BURST", 5); err != nil {
		return err
	}

	if cfg.WorkerCircuitEnabled, err = boolEnv("WORKER_CIRCUIT_ENABLED", "true"); err != nil {
		return err
	}
	if cfg.WorkerCircuitFailureCount, err = positiveInt("WORKER_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return err
	}
	if cfg.WorkerCircuitOpenTimeout, err = positiveDuration("WORKER_CIRCUIT_OPEN_TIMEOUT", "30s"); err != nil {
		return err
	}
	if cfg.WorkerCircuitHalfOpenMaxReq, err = positiveInt("WORKER_CIRCUIT_HALF_OPEN_MAX_REQ", 1); err != nil {
		return err
	}

	cfg.SlackWebhookURL = strings.TrimSpace(getEnv("SLACK_WEBHOOK_URL", ""))
	return nil
}

func loadBlobStore(cfg *Config) error {
	var err error

	cfg.BlobDriver = strings.ToLower(strings.TrimSpace(getEnv("BLOB_DRIVER", BlobMemory)))
	switch cfg.BlobDriver {
	case BlobMemory, BlobS3:
	default:
		return fmt.Errorf("invalid BLOB_DRIVER %q: valid values are %s, %s", cfg.BlobDriver, BlobMemory, BlobS3)
	}

	cfg.BlobMemoryBaseURL = strings.TrimSpace(getEnv("BLOB_MEMORY_BASE_URL", "http://localhost:8080/blobs"))
	cfg.S3Bucket = strings.TrimSpace(getEnv("S3_BUCKET", ""))
	cfg.S3Region = strings.TrimSpace(getEnv("S3_REGION", getEnv("AWS_REGION", "eu-central-1")))
	cfg.S3Endpoint = strings.TrimSpace(getEnv("S3_ENDPOINT", ""))
	if cfg.S3PathStyle, err = boolEnv("S3_PATH_STYLE", "false"); err != nil {
		return err
	}
	if cfg.BlobDriver == BlobS3 && cfg.S3Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when BLOB_DRIVER=s3")
	}
	return nil
}

func loadQStash(cfg *Config) error {
	var err error

	if cfg.QStashEnabled, err = boolEnv("QSTASH_ENABLED", "false"); err != nil {
		return err
	}
	cfg.QStashRetries, err = getEnvAsInt("QSTASH_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("parse QSTASH_RETRIES: %w", err)
	}
	if cfg.QStashRetries < 0 {
		return fmt.Errorf("QSTASH_RETRIES must be >= 0")
	}
	if cfg.QStashTimeout, err = positiveDuration("QSTASH_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.QStashCircuitEnabled, err = boolEnv("QSTASH_CIRCUIT_ENABLED", "true"); err != nil {
		return err
	}
	if cfg.QStashCircuitFailureCount, err = positiveInt("QSTASH_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return err
	}
	if cfg.QStashCircuitOpenTimeout, err = positiveDuration("QSTASH_CIRCUIT_OPEN_TIMEOUT", "15s"); err != nil {
		return err
	}
	if cfg.QStashCircuitHalfOpenMaxReq, err = positiveInt("QSTASH_CIRCUIT_HALF_OPEN_MAX_REQ", 2); err != nil {
		return err
	}

	cfg.QStashBaseURL = strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io"))
	cfg.QStashToken = strings.TrimSpace(getEnv("QSTASH_TOKEN", ""))
	cfg.QStashTargetBaseURL = strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", cfg.PublicBaseURL))
	cfg.InternalJobToken = strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", cfg.StartSecret))

	if cfg.QStashEnabled {
		if cfg.QStashToken == "" {
			return fmt.Errorf("QSTASH_TOKEN is required when QSTASH_ENABLED=true")
		}
		if cfg.QStashTargetBaseURL == "" {
			return fmt.Errorf("QSTASH_TARGET_BASE_URL is required when QSTASH_ENABLED=true")
		}
		if cfg.InternalJobToken == "" {
			return fmt.Errorf("INTERNAL_JOB_TOKEN is required when QSTASH_ENABLED=true")
		}
	}
	if cfg.DispatchMode == DispatchQueued && !cfg.QStashEnabled {
		return fmt.Errorf("QSTASH_ENABLED=true is required when DISPATCH_MODE=queued")
	}
	// A triggered worker needs the delayed finalize recheck behind it.
	if cfg.WorkerURL != "" && !cfg.QStashEnabled {
		return fmt.Errorf("QSTASH_ENABLED=true is required when WORKER_URL is set")
	}
	return nil
}

func loadScheduler(cfg *Config) error {
	var err error

	cfg.SchedulerAPIBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("SCHEDULER_API_BASE_URL", "http://localhost:8080")), "/")
	cfg.SchedulerLeaderKey = strings.TrimSpace(getEnv("SCHEDULER_LEADER_KEY", "scheduler:leader"))
	if cfg.SchedulerLeaderTTL, err = positiveDuration("SCHEDULER_LEADER_TTL", "30s"); err != nil {
		return err
	}
	cfg.SchedulerInstanceID = strings.TrimSpace(getEnv("SCHEDULER_INSTANCE_ID", ""))
	if cfg.SchedulerInstanceID == "" {
		hostname, _ := os.Hostname()
		cfg.SchedulerInstanceID = hostname
	}
	return nil
}

func loadObservability(cfg *Config) error {
	var err error

	if cfg.UptraceEnabled, err = boolEnv("UPTRACE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	if cfg.PprofEnabled, err = boolEnv("PPROF_ENABLED", "false"); err != nil {
		return err
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))

	if cfg.PyroscopeEnabled, err = boolEnv("PYROSCOPE_ENABLED", "false"); err != nil {
		return err
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PyroscopeUploadRate, err = positiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	return nil
}

// TriggerConfig configures the storage-event forwarder.
type TriggerConfig struct {
	FinalizeURL string
	Secret      string
	Timeout     time.Duration
	LogLevel    logging.Level
}

func LoadTrigger() (TriggerConfig, error) {
	logLevel, err := logLevelEnv()
	if err != nil {
		return TriggerConfig{}, err
	}
	cfg := TriggerConfig{
		FinalizeURL: strings.TrimSpace(getEnv("RESULT_FINALIZE_URL", "")),
		Secret:      strings.TrimSpace(getEnv("RESULTS_SECRET", "")),
		LogLevel:    logLevel,
	}
	if cfg.FinalizeURL == "" {
		return TriggerConfig{}, fmt.Errorf("RESULT_FINALIZE_URL is required")
	}
	if cfg.Secret == "" {
		return TriggerConfig{}, fmt.Errorf("RESULTS_SECRET is required")
	}
	if cfg.Timeout, err = positiveDuration("RESULT_FINALIZE_TIMEOUT", "15s"); err != nil {
		return TriggerConfig{}, err
	}
	return cfg, nil
}

func logLevelEnv() (logging.Level, error) {
	level, err := logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info"))
	if err != nil {
		return level, fmt.Errorf("invalid APP_LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func boolEnv(key, fallback string) (bool, error) {
	out, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return out, nil
}

func positiveInt(key string, fallback int) (int, error) {
	out, err := getEnvAsInt(key, fallback)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func positiveDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
