package config

import (
	"log"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию бота.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
		ChannelID  int64  `envconfig:"TG_CHANNEL_ID"`
		AdminID    int64  `envconfig:"TG_ADMIN_ID"`
	} `envconfig:""`

	Limits struct {
		CooldownSeconds int `envconfig:"SUBMIT_COOLDOWN_SECONDS" default:"3600"`
		PageSize        int `envconfig:"PAGE_SIZE" default:"5"`
		SessionTTLMin   int `envconfig:"SESSION_TTL_MINUTES" default:"10"`
	} `envconfig:""`

	Content struct {
		// Запрещённые слова в комментарии, через запятую.
		Denylist string `envconfig:"COMMENT_DENYLIST" default:""`
		// Разрешённые хосты ссылок на формы, через запятую.
		AllowedHosts string `envconfig:"FORM_HOSTS" default:"docs.google.com,forms.office.com,forms.gle"`
	} `envconfig:""`

	Storage struct {
		// file | redis | postgres
		Backend   string `envconfig:"STORAGE_BACKEND" default:"file"`
		FilePath  string `envconfig:"STATE_FILE" default:"bot_state.json"`
		RedisAddr string `envconfig:"REDIS_ADDR"`
		RedisKey  string `envconfig:"REDIS_STATE_KEY" default:"girlsbot_state"`
		PGDSN     string `envconfig:"PG_DSN"`
	} `envconfig:""`

	Queues struct {
		AMQPURL     string `envconfig:"AMQP_URL"`
		NoticeQueue string `envconfig:"ADMIN_NOTICE_QUEUE" default:"admin_notices"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// SplitList разбирает значение вида "a, b, c" в срез непустых элементов.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
