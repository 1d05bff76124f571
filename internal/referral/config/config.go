package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type StorageConfig struct {
	// Driver selects the adapter: "memory" (in-process + JSON snapshot)
	// or "postgres".
	Driver       string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	SnapshotPath string `yaml:"snapshot_path" env:"SNAPSHOT_PATH" env-default:"data.json"`
	PostgresURL  string `yaml:"postgres_url" env:"POSTGRES_URL"`
}

type VerificationConfig struct {
	// Mode selects the strategy: "manual" (admin review queue) or "auto"
	// (simulated synchronous check).
	Mode    string        `yaml:"mode" env:"VERIFICATION_MODE" env-default:"manual"`
	Timeout time.Duration `yaml:"timeout" env:"VERIFICATION_TIMEOUT" env-default:"3s"`
	Latency time.Duration `yaml:"latency" env:"VERIFICATION_LATENCY" env-default:"500ms"`
	// SuccessRates maps task id to the simulated check's success
	// probability; unlisted tasks get 0.5.
	SuccessRates map[string]float64 `yaml:"success_rates"`
}

type Config struct {
	HttpPort          string             `yaml:"http_port" env:"HTTP_PORT" env-default:"10000"`
	LogLevel          string             `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	JWTSecret         string             `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AdminPasswordHash string             `yaml:"admin_password_hash" env:"ADMIN_PASSWORD_HASH" env-required:"true"`
	Storage           StorageConfig      `yaml:"storage"`
	Verification      VerificationConfig `yaml:"verification"`
}

const defaultConfigPath = "./config/config.yaml"

// MustLoad reads the YAML config named by CONFIG_PATH (falling back to
// ./config/config.yaml, then to environment-only) and panics on any
// problem: the process cannot run half-configured.
func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			panic(err)
		}
		return cfg
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		panic(err)
	}
	return cfg
}
