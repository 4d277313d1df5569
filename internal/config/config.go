package config

import (
	"strings"

	"github.com/caarlos0/env/v9"
)

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	AuthMode          string `env:"AUTH_MODE" envDefault:"firebase"` // firebase | jwt | none
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`
	JWTSecret         string `env:"JWT_SECRET"`

	GoogleCredentialsJSON string `env:"GOOGLE_CREDENTIALS_JSON"`
	GoogleCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	StorageBucket         string `env:"STORAGE_BUCKET"`
	UploadMaxBytes        int64  `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`

	GeminiAPIKey          string `env:"GEMINI_API_KEY"`
	GeminiModerationModel string `env:"GEMINI_MODERATION_MODEL" envDefault:"gemini-2.5-flash"`

	RedisURL       string  `env:"REDIS_URL"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	ExpirySweepSpec string `env:"EXPIRY_SWEEP_SPEC" envDefault:"@every 10m"`
	RequestTTLHours int    `env:"REQUEST_TTL_HOURS" envDefault:"168"`

	AllowedOriginSuffixes []string `env:"ALLOWED_ORIGIN_SUFFIXES" envSeparator:"," envDefault:"vercel.app"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	GitSHA    string `env:"GIT_SHA" envDefault:"dev"`
	BuildTime string `env:"BUILD_TIME"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))
	return &cfg, nil
}
