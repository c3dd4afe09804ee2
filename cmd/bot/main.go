package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/adapters/bot"
	"github.com/Meposy/GirlsBot/internal/adapters/telegram"
	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/config"
	infrahttp "github.com/Meposy/GirlsBot/internal/infra/http"
	"github.com/Meposy/GirlsBot/internal/infra/log"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
	"github.com/Meposy/GirlsBot/internal/infra/queue"
	"github.com/Meposy/GirlsBot/internal/infra/snapshot"
	"github.com/Meposy/GirlsBot/internal/store"
	"github.com/Meposy/GirlsBot/internal/usecase/discovery"
	"github.com/Meposy/GirlsBot/internal/usecase/moderation"
	"github.com/Meposy/GirlsBot/internal/usecase/submission"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap := newSnapshotStore(cfg, logger)
	st := store.New(ctx, snap, time.Duration(cfg.Limits.CooldownSeconds)*time.Second, logger)

	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	notices := newNoticeQueue(cfg, logger)
	publisher := telegram.NewPublisher(botAPI, cfg.Telegram.ChannelID, logger)
	sessionTTL := time.Duration(cfg.Limits.SessionTTLMin) * time.Minute

	submissionUC := submission.NewService(
		st, publisher, notices,
		config.SplitList(cfg.Content.Denylist),
		config.SplitList(cfg.Content.AllowedHosts),
		sessionTTL, logger,
	)
	discoveryUC := discovery.NewService(st, cfg.Limits.PageSize)
	moderationUC := moderation.NewService(st, publisher, notices, cfg.Telegram.AdminID, sessionTTL, logger)

	h := bot.NewHandler(botAPI, logger, submissionUC, discoveryUC, moderationUC, st)

	// Уведомления о сбоях публикации доставляются администратору асинхронно.
	go queue.ConsumeNotices(ctx, notices, func(notice domain.AdminNotice) error {
		msg := tgbotapi.NewMessage(cfg.Telegram.AdminID, "⚠️ "+notice.Text)
		start := time.Now()
		_, err := botAPI.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "admin_notice", start, err)
		return err
	}, time.Second, logger)

	srv := infrahttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := srv.Start(listenAddr(cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	if cfg.Telegram.WebhookURL == "" {
		go runPolling(ctx, botAPI, h, logger)
	} else {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL + "/bot/webhook")
		if err != nil {
			logger.Fatal().Err(err).Msg("неверный URL вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать вебхук")
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("бот запущен в режиме webhook")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

func newSnapshotStore(cfg config.AppConfig, logger zerolog.Logger) domain.SnapshotStore {
	switch cfg.Storage.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		logger.Info().Str("addr", cfg.Storage.RedisAddr).Msg("состояние хранится в Redis")
		return snapshot.NewRedisStore(client, cfg.Storage.RedisKey)
	case "postgres":
		pg, err := snapshot.NewPostgresStore(cfg.Storage.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
		}
		logger.Info().Msg("состояние хранится в Postgres")
		return pg
	default:
		fs, err := snapshot.NewFileStore(cfg.Storage.FilePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось открыть файл состояния")
		}
		logger.Info().Str("path", cfg.Storage.FilePath).Msg("состояние хранится в файле")
		return fs
	}
}

func newNoticeQueue(cfg config.AppConfig, logger zerolog.Logger) domain.NoticeQueue {
	if cfg.Queues.AMQPURL == "" {
		return queue.NewMemoryNoticeQueue(0)
	}
	q, err := queue.NewRabbitNoticeQueue(cfg.Queues.AMQPURL, cfg.Queues.NoticeQueue)
	if err != nil {
		logger.Error().Err(err).Msg("RabbitMQ недоступен, уведомления пойдут через память")
		return queue.NewMemoryNoticeQueue(0)
	}
	return q
}

func runPolling(ctx context.Context, botAPI *tgbotapi.BotAPI, h *bot.Handler, logger zerolog.Logger) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := botAPI.GetUpdatesChan(cfg)
	logger.Info().Msg("бот запущен в режиме long polling")
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case update := <-updates:
			h.HandleUpdate(ctx, update)
		}
	}
}

func listenAddr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}
