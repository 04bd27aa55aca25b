package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type NotionEnv struct {
	APIKey     string `envconfig:"NOTION_API_KEY" required:"true"`
	DatabaseID string `envconfig:"NOTION_DATABASE_ID"`
}

type SlackEnv struct {
	WebhookURL string `envconfig:"SLACK_WEBHOOK_URL"`
}

type OpenAIEnv struct {
	APIKey  string `envconfig:"OPENAI_API_KEY"`
	Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	BaseURL string `envconfig:"OPENAI_BASE_URL"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".taskrelay/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"taskrelay/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type HooksEnv struct {
	Path string `envconfig:"HOOKS_PATH" default:".taskrelay/hooks.yaml"`
}

type Env struct {
	BaseEnv
	NotionEnv
	SlackEnv
	OpenAIEnv
	StorageEnv
	HooksEnv
}

const namespace = "TASKRELAY"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.SlackEnv.WebhookURL == "" {
		slog.Warn("SLACK_WEBHOOK_URL is not set, Slack proposals will fail")
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}
