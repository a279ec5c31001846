package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 対応プラットフォーム
const (
	PlatformDiscord = "discord"
	PlatformSlack   = "slack"
)

// トリガー絵文字の既定値
const (
	// DefaultDiscordTrigger は Discord の Unicode 絵文字
	DefaultDiscordTrigger = "📌"

	// DefaultSlackTrigger は Slack の絵文字名（コロンなし）
	DefaultSlackTrigger = "pushpin"
)

// Config は環境変数から読み込まれるアプリケーション設定を表します
type Config struct {
	// 基本設定
	Platform     string
	Port         string
	LogLevel     logrus.Level
	TriggerEmoji string
	StatusText   string
	EventTimeout time.Duration

	// GCP設定（任意）
	GcpProject         string
	FirestoreProjectID string
	CollectionTenants  string

	// Discord設定
	DiscordToken       string
	DiscordTokenSecret string // 設定時は Secret Manager から読み込み

	// Slack API設定
	SlackBotToken       string
	SlackBotTokenSecret string // 設定時は Secret Manager から読み込み
	SlackSigningSecret  string
	SlackClientID       string
	SlackClientSecret   string
	OAuthRedirectURL    string
	SecretTokenPrefix   string
}

// LoadEnv は .env / .env.dev があれば環境変数に読み込みます
func LoadEnv(log logrus.FieldLogger) {
	for _, file := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			log.WithError(err).Warnf("%s の読み込みに失敗しました", file)
			continue
		}
		log.Debugf("%s を読み込みました", file)
	}
}

// NewConfig は環境変数から設定を読み込み、Config構造体を返します
// 認証情報が Secret Manager 指定の場合、値の取得は呼び出し側で行います
func NewConfig() (*Config, error) {
	platform := strings.ToLower(getEnv("PLATFORM", PlatformDiscord))

	eventTimeout, err := time.ParseDuration(getEnv("EVENT_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_TIMEOUT format: %v", err)
	}

	cfg := &Config{
		// 基本設定
		Platform:     platform,
		Port:         getEnv("PORT", "8080"),
		LogLevel:     parseLogLevel(os.Getenv("LOG_LEVEL")),
		StatusText:   getEnv("STATUS_TEXT", "water game"),
		EventTimeout: eventTimeout,

		// GCP設定
		GcpProject:         os.Getenv("GCP_PROJECT"),
		FirestoreProjectID: os.Getenv("FIRESTORE_PROJECT_ID"),
		CollectionTenants:  getEnv("FS_COLLECTION_TENANTS", "tenants"),

		// Discord設定
		DiscordToken:       os.Getenv("DISCORD_TOKEN"),
		DiscordTokenSecret: os.Getenv("DISCORD_TOKEN_SECRET"),

		// Slack API設定
		SlackBotToken:       os.Getenv("SLACK_BOT_TOKEN"),
		SlackBotTokenSecret: os.Getenv("SLACK_BOT_TOKEN_SECRET"),
		SlackSigningSecret:  os.Getenv("SLACK_SIGNING_SECRET"),
		SlackClientID:       os.Getenv("SLACK_CLIENT_ID"),
		SlackClientSecret:   os.Getenv("SLACK_CLIENT_SECRET"),
		OAuthRedirectURL:    os.Getenv("OAUTH_REDIRECT_URL"),
		SecretTokenPrefix:   getEnv("SECRET_TOKEN_PREFIX", "slack_token_"),
	}

	switch platform {
	case PlatformDiscord:
		cfg.TriggerEmoji = getEnv("TRIGGER_EMOJI", DefaultDiscordTrigger)
	case PlatformSlack:
		cfg.TriggerEmoji = strings.Trim(getEnv("TRIGGER_EMOJI", DefaultSlackTrigger), ":")
	default:
		return nil, fmt.Errorf("unsupported PLATFORM: %s", platform)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は起動に必要な設定が揃っているかを検証します
// 認証情報が無い場合はイベントループ開始前に起動を中止します
func (c *Config) Validate() error {
	if c.TriggerEmoji == "" {
		return fmt.Errorf("required environment variable not set: TRIGGER_EMOJI")
	}

	switch c.Platform {
	case PlatformDiscord:
		if c.DiscordToken == "" && c.DiscordTokenSecret == "" {
			return fmt.Errorf("required environment variable not set: DISCORD_TOKEN")
		}
		if c.DiscordTokenSecret != "" && c.GcpProject == "" {
			return fmt.Errorf("required environment variable not set: GCP_PROJECT (DISCORD_TOKEN_SECRET 使用時)")
		}
	case PlatformSlack:
		if c.SlackSigningSecret == "" {
			return fmt.Errorf("required environment variable not set: SLACK_SIGNING_SECRET")
		}
		if c.SlackBotToken == "" && c.SlackBotTokenSecret == "" && !c.MultiWorkspace() {
			return fmt.Errorf("required environment variable not set: SLACK_BOT_TOKEN")
		}
		if (c.SlackBotTokenSecret != "" || c.MultiWorkspace()) && c.GcpProject == "" {
			return fmt.Errorf("required environment variable not set: GCP_PROJECT")
		}
	}
	return nil
}

// MultiWorkspace は OAuth インストールによる複数ワークスペース運用かどうかを返します
func (c *Config) MultiWorkspace() bool {
	return c.SlackClientID != "" && c.SlackClientSecret != "" && c.FirestoreProjectID != ""
}

// getEnv は環境変数を取得し、未設定の場合は既定値を返します
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseLogLevel は LOG_LEVEL をログレベルに変換します
func parseLogLevel(v string) logrus.Level {
	switch strings.ToLower(v) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
