package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// 既定値
const (
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	DefaultGroqModel   = "llama3-70b-8192"

	MailProviderMailgun = "mailgun"
	MailProviderSES     = "ses"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// LLM
	// GroqAPIKey は未設定でもエラーにしない。最初の呼び出し時に上流エラーとして表面化する。
	GroqAPIKey  string
	GroqModel   string
	GroqBaseURL string
	LLMTimeout  time.Duration // 0 の場合はトランスポートの既定値に従う

	// Database（空の場合はアカウント機能を無効化する）
	DatabaseURL string

	// Mail
	MailProvider  string
	MailgunAPIKey string
	MailgunDomain string
	MailFromName  string
	AWSRegion     string
	SESFromAddr   string

	// Account
	VerificationCodeTTL time.Duration
	PasswordHashCost    int

	// Server
	ServerPort string

	// CORS（空の場合はCORSヘッダーもプリフライト応答も付与しない）
	CORSAllowedOrigin string
}

// AccountsEnabled はアカウント機能（DB・メール送信）が有効かどうかを返す。
func (c *Config) AccountsEnabled() bool {
	return c.DatabaseURL != ""
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// アカウント機能が有効な場合、選択したメールプロバイダーの必須設定が未設定ならエラーを返す。
func Load() (*Config, error) {
	// 読み込めない.envは起動を止めず、警告のみ出力する
	if err := loadDotEnv(".env"); err != nil {
		slog.Warn("ignoring unreadable .env file", slog.String("error", err.Error()))
	}

	cfg := &Config{}

	cfg.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	cfg.GroqModel = getEnvString("GROQ_MODEL", DefaultGroqModel)
	cfg.GroqBaseURL = getEnvString("GROQ_BASE_URL", DefaultGroqBaseURL)
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 0)

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.MailProvider = getEnvString("MAIL_PROVIDER", MailProviderMailgun)
	cfg.MailgunAPIKey = os.Getenv("MAILGUN_API_KEY")
	cfg.MailgunDomain = os.Getenv("MAILGUN_DOMAIN")
	cfg.MailFromName = getEnvString("MAIL_FROM_NAME", "Your App")
	cfg.AWSRegion = getEnvString("AWS_REGION", "us-east-1")
	cfg.SESFromAddr = os.Getenv("SES_FROM_ADDRESS")

	cfg.VerificationCodeTTL = getEnvDuration("VERIFICATION_CODE_TTL", 15*time.Minute)
	cfg.PasswordHashCost = getEnvInt("PASSWORD_HASH_COST", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = os.Getenv("CORS_ALLOWED_ORIGIN")

	if cfg.AccountsEnabled() {
		if err := cfg.validateMail(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// validateMail はメールプロバイダーの必須設定を検証する。
func (c *Config) validateMail() error {
	var missing []string

	switch c.MailProvider {
	case MailProviderMailgun:
		if c.MailgunAPIKey == "" {
			missing = append(missing, "MAILGUN_API_KEY")
		}
		if c.MailgunDomain == "" {
			missing = append(missing, "MAILGUN_DOMAIN")
		}
	case MailProviderSES:
		if c.SESFromAddr == "" {
			missing = append(missing, "SES_FROM_ADDRESS")
		}
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER: %q", c.MailProvider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// loadDotEnv は指定パスの.envファイルが存在すれば読み込む。
// ファイルが無い場合はエラーにしない。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
