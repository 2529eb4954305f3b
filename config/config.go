package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Telegram    Telegram
	Redis       Redis
	API         API
	Session     Session
	Modal       Modal
	Jobs        Jobs
	GoogleDrive GoogleDrive
}

type Telegram struct {
	Token            string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout       time.Duration `env:"TELEGRAM_UPD_TIMEOUT" envDefault:"10s"`
	FileLimitInBytes int           `env:"TELEGRAM_FILE_LIMIT_IN_BYTES" envDefault:"52428800"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type API struct {
	Debug        bool          `env:"API_DEBUG" envDefault:"false"`
	Timeout      time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	PortfolioApi PortfolioApi
}

type PortfolioApi struct {
	Url string `env:"PORTFOLIO_API_URL" envDefault:"http://localhost:8000"`
}

type Session struct {
	// zero keeps the session until explicit logout
	Expiration time.Duration `env:"SESSION_EXPIRATION" envDefault:"0s"`
}

type Modal struct {
	DepositCloseDelay time.Duration `env:"MODAL_DEPOSIT_CLOSE_DELAY" envDefault:"2s"`
	TradeCloseDelay   time.Duration `env:"MODAL_TRADE_CLOSE_DELAY" envDefault:"1500ms"`
}

type Jobs struct {
	CleanupReportsInterval time.Duration `env:"CLEANUP_REPORTS_JOB_INTERVAL" envDefault:"1h"`
}

type GoogleDrive struct {
	// empty disables uploading of reports that exceed the telegram file limit
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"24h"`
}

func (g GoogleDrive) Enabled() bool {
	return g.CredentialsFile != ""
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
