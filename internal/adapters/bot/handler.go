package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/adapters/telegram"
	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
	"github.com/Meposy/GirlsBot/internal/usecase/discovery"
	"github.com/Meposy/GirlsBot/internal/usecase/moderation"
	"github.com/Meposy/GirlsBot/internal/usecase/submission"
)

const commentPreviewLen = 30

// Bans — проверка бан-листа для ранних ответов на команды.
type Bans interface {
	IsBanned(userID int64) bool
}

// Handler обслуживает апдейты бота: разбирает команды и колбэки и
// переводит их в вызовы воркфлоу. Вся логика — в usecase-слое.
type Handler struct {
	bot          *tgbotapi.BotAPI
	log          zerolog.Logger
	submissionUC *submission.Service
	discoveryUC  *discovery.Service
	moderationUC *moderation.Service
	bans         Bans
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, logger zerolog.Logger, submissionUC *submission.Service, discoveryUC *discovery.Service, moderationUC *moderation.Service, bans Bans) *Handler {
	return &Handler{
		bot:          bot,
		log:          logger,
		submissionUC: submissionUC,
		discoveryUC:  discoveryUC,
		moderationUC: moderationUC,
		bans:         bans,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	userID := msg.From.ID

	if !strings.HasPrefix(text, "/") {
		// Свободный текст — это ответ на открытый диалог этого пользователя.
		if h.moderationUC.Awaiting(userID) {
			h.handleModerationInput(ctx, msg.Chat.ID, userID, text)
			return
		}
		if h.submissionUC.Awaiting(userID) {
			h.handleSubmissionInput(ctx, msg, text)
			return
		}
		return
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(msg.Chat.ID, userID)
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(userID), nil)
	case strings.HasPrefix(text, "/add"):
		h.handleAdd(msg.Chat.ID, userID)
	case strings.HasPrefix(text, "/view"):
		h.sendUnseenPage(msg.Chat.ID, userID, 0)
	case strings.HasPrefix(text, "/delete"):
		h.handleDelete(ctx, msg.Chat.ID, userID)
	case strings.HasPrefix(text, "/ban"):
		h.handleBeginModeration(msg.Chat.ID, userID, moderation.ActionBan)
	case strings.HasPrefix(text, "/unban"):
		h.handleBeginModeration(msg.Chat.ID, userID, moderation.ActionUnban)
	case strings.HasPrefix(text, "/remove"):
		h.handleBeginDelete(msg.Chat.ID, userID)
	case strings.HasPrefix(text, "/list"):
		h.sendAdminPage(msg.Chat.ID, userID, 0)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleStart(chatID, userID int64) {
	if h.bans.IsBanned(userID) {
		h.reply(chatID, "❌ Вы заблокированы", nil)
		return
	}
	lines := []string{
		"👋 Привет! Я бот для обмена анкетами.",
		"Доступные команды:",
		"/add — добавить анкету",
		"/view — просмотреть анкеты",
		"/delete — удалить свою анкету",
		"/help — помощь",
	}
	h.reply(chatID, strings.Join(lines, "\n"), nil)
}

func (h *Handler) handleAdd(chatID, userID int64) {
	if err := h.submissionUC.Begin(userID); err != nil {
		h.reply(chatID, submissionErrorText(err), nil)
		return
	}
	h.reply(chatID, "📝 Отправьте ссылку на форму и комментарий через пробел:", nil)
}

func (h *Handler) handleSubmissionInput(ctx context.Context, msg *tgbotapi.Message, text string) {
	profile, outcome, err := h.submissionUC.Complete(ctx, msg.From.ID, displayName(msg.From), text)
	if err != nil {
		h.reply(msg.Chat.ID, submissionErrorText(err), nil)
		return
	}
	switch outcome {
	case domain.Published:
		h.reply(msg.Chat.ID, "✅ Анкета принята и опубликована в канале!", nil)
	case domain.PublishedLocallyOnly:
		h.reply(msg.Chat.ID, "✅ Анкета принята! Публикация в канале временно не удалась.", nil)
	}
	h.log.Info().Int64("user", msg.From.ID).Str("profile", string(profile.ID)).Msg("анкета добавлена")
}

func (h *Handler) handleDelete(ctx context.Context, chatID, userID int64) {
	if _, err := h.submissionUC.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			h.reply(chatID, "❌ У вас нет анкеты для удаления", nil)
			return
		}
		h.reply(chatID, "😔 Не получилось удалить анкету, попробуйте позже", nil)
		return
	}
	h.reply(chatID, "✅ Ваша анкета успешно удалена", nil)
}

func (h *Handler) sendUnseenPage(chatID, userID int64, page int) {
	result, err := h.discoveryUC.ListUnseen(userID, page)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBanned):
			h.reply(chatID, "❌ Вы заблокированы", nil)
		case errors.Is(err, domain.ErrNoProfiles):
			h.reply(chatID, "😢 Пока нет доступных анкет", nil)
		case errors.Is(err, domain.ErrAllSeen):
			h.reply(chatID, "✨ Вы просмотрели все доступные анкеты!", nil)
		default:
			h.reply(chatID, "😔 Не получилось показать анкеты, попробуйте позже", nil)
		}
		return
	}
	if len(result.Items) == 0 {
		h.reply(chatID, "На этой странице анкет больше нет. Начните с /view", nil)
		return
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(result.Items)+1)
	for i, p := range result.Items {
		ordinal := result.Number*h.discoveryUC.PageSize() + i + 1
		label := fmt.Sprintf("Анкета %d: %s", ordinal, previewComment(p.Comment))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "open:"+string(p.ID)),
		))
	}
	if result.HasMore {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Далее →", fmt.Sprintf("page:%d", result.Number+1)),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(chatID, "📋 Выберите анкету для просмотра:", &markup)
}

func (h *Handler) handleBeginModeration(chatID, userID int64, action moderation.Action) {
	var err error
	var prompt string
	switch action {
	case moderation.ActionBan:
		err = h.moderationUC.BeginBan(userID)
		prompt = "Отправьте ID пользователя для блокировки:"
	case moderation.ActionUnban:
		err = h.moderationUC.BeginUnban(userID)
		prompt = "Отправьте ID пользователя для разблокировки:"
	}
	if err != nil {
		h.reply(chatID, moderationErrorText(err), nil)
		return
	}
	h.reply(chatID, prompt, nil)
}

func (h *Handler) handleBeginDelete(chatID, userID int64) {
	items, err := h.moderationUC.BeginDelete(userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoProfiles) {
			h.reply(chatID, "Анкет пока нет", nil)
			return
		}
		h.reply(chatID, moderationErrorText(err), nil)
		return
	}
	var b strings.Builder
	b.WriteString("Текущие анкеты:\n")
	for _, item := range items {
		b.WriteString(fmt.Sprintf("%d. (ID %d) %s — %s\n", item.Ordinal, item.Profile.Owner, item.Profile.URL, previewComment(item.Profile.Comment)))
	}
	b.WriteString("\nОтправьте номер анкеты для удаления:")
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleModerationInput(ctx context.Context, chatID, userID int64, text string) {
	result, err := h.moderationUC.HandleInput(ctx, userID, text)
	if err != nil {
		h.reply(chatID, moderationErrorText(err), nil)
		return
	}
	switch result.Action {
	case moderation.ActionBan:
		h.reply(chatID, fmt.Sprintf("✅ Пользователь %d заблокирован", result.UserID), nil)
	case moderation.ActionUnban:
		h.reply(chatID, fmt.Sprintf("✅ Пользователь %d разблокирован", result.UserID), nil)
	case moderation.ActionDelete:
		h.reply(chatID, fmt.Sprintf("✅ Анкета пользователя %d удалена", result.UserID), nil)
	}
}

func (h *Handler) sendAdminPage(chatID, userID int64, page int) {
	if !h.moderationUC.IsAdmin(userID) {
		h.reply(chatID, "Неизвестная команда. Используйте /help", nil)
		return
	}
	items, hasMore, err := h.discoveryUC.BrowseAll(page)
	if err != nil {
		if errors.Is(err, domain.ErrNoProfiles) {
			h.reply(chatID, "Анкет пока нет", nil)
			return
		}
		h.reply(chatID, "😔 Не получилось показать список", nil)
		return
	}
	if len(items) == 0 {
		h.reply(chatID, "На этой странице анкет больше нет", nil)
		return
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📋 Все анкеты, страница %d:\n", page+1))
	for _, item := range items {
		b.WriteString(fmt.Sprintf("%d. (ID %d) %s — %s\n", item.Ordinal, item.Profile.Owner, item.Profile.URL, previewComment(item.Profile.Comment)))
	}
	var markup *tgbotapi.InlineKeyboardMarkup
	if hasMore {
		m := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Далее →", fmt.Sprintf("alist:%d", page+1)),
		))
		markup = &m
	}
	h.reply(chatID, b.String(), markup)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	data := cb.Data
	chatID := cb.Message.Chat.ID
	switch {
	case strings.HasPrefix(data, "open:"):
		id := domain.ProfileID(strings.TrimPrefix(data, "open:"))
		h.handleOpen(ctx, cb, chatID, id)
	case strings.HasPrefix(data, "page:"):
		h.sendUnseenPage(chatID, cb.From.ID, parsePage(data))
	case strings.HasPrefix(data, "alist:"):
		h.sendAdminPage(chatID, cb.From.ID, parsePage(data))
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleOpen(ctx context.Context, cb *tgbotapi.CallbackQuery, chatID int64, id domain.ProfileID) {
	profile, err := h.discoveryUC.Open(ctx, cb.From.ID, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBanned):
			h.reply(chatID, "❌ Вы заблокированы", nil)
		case errors.Is(err, domain.ErrProfileNotFound):
			h.reply(chatID, "Эта анкета уже удалена. Обновите список: /view", nil)
		default:
			h.reply(chatID, "😔 Не получилось открыть анкету, попробуйте позже", nil)
		}
		return
	}
	text := fmt.Sprintf("🔗 Ссылка: %s\n📝 Комментарий: %s\n\nЧтобы вернуться, используйте /view", profile.URL, profile.Comment)
	edit := tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID, text)
	start := time.Now()
	_, err = h.bot.Send(edit)
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось отредактировать сообщение")
		h.reply(chatID, text, nil)
	}
}

func (h *Handler) buildHelpMessage(userID int64) string {
	sections := []string{
		"📚 Справка по командам:",
		"",
		"/start — начало работы с ботом",
		"/add — добавить новую анкету",
		"/view — просмотреть доступные анкеты",
		"/delete — удалить свою анкету",
		"/help — показать эту справку",
		"",
		"После /add отправьте ссылку на форму и комментарий одним сообщением.",
	}
	if h.moderationUC.IsAdmin(userID) {
		sections = append(sections,
			"",
			"Администратору:",
			"/list — все анкеты",
			"/remove — удалить анкету по номеру",
			"/ban, /unban — блокировка пользователей",
		)
	}
	return strings.Join(sections, "\n")
}

// submissionErrorText переводит типизированные ошибки подачи в ответ
// пользователю.
func submissionErrorText(err error) string {
	var cooldown *domain.CooldownError
	switch {
	case errors.Is(err, domain.ErrBanned):
		return "❌ Вы заблокированы"
	case errors.Is(err, domain.ErrDuplicateProfile):
		return "❌ У вас уже есть анкета. Сначала удалите текущую"
	case errors.As(err, &cooldown):
		return fmt.Sprintf("⏳ Подождите ещё %d сек. перед отправкой анкеты", cooldown.RemainingSeconds())
	case errors.Is(err, domain.ErrMalformedInput):
		return "❌ Нужна ссылка И комментарий через пробел"
	case errors.Is(err, domain.ErrContentRejected):
		return "❌ Комментарий содержит запрещённые слова"
	case errors.Is(err, domain.ErrInvalidURL):
		return "❌ Это не ссылка на разрешённый сервис форм"
	case errors.Is(err, domain.ErrNoSession):
		return "Сначала отправьте /add"
	default:
		return "😔 Не получилось сохранить анкету, попробуйте позже"
	}
}

func moderationErrorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotAdmin):
		return "Неизвестная команда. Используйте /help"
	case errors.Is(err, domain.ErrMalformedInput):
		return "❌ Нужен числовой ID пользователя"
	case errors.Is(err, domain.ErrNotBanned):
		return "ℹ️ Этот пользователь не заблокирован"
	case errors.Is(err, domain.ErrInvalidPosition):
		return "❌ Нет анкеты с таким номером"
	case errors.Is(err, domain.ErrProfileNotFound):
		return "ℹ️ Эта анкета уже удалена"
	case errors.Is(err, domain.ErrNoSession):
		return "Диалог истёк. Отправьте команду ещё раз"
	default:
		return "😔 Не получилось выполнить действие, попробуйте позже"
	}
}

func parsePage(data string) int {
	parts := strings.Split(data, ":")
	if len(parts) != 2 {
		return 0
	}
	page, _ := strconv.Atoi(parts[1])
	if page < 0 {
		return 0
	}
	return page
}

func previewComment(comment string) string {
	runes := []rune(comment)
	if len(runes) <= commentPreviewLen {
		return comment
	}
	return string(runes[:commentPreviewLen]) + "..."
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return "пользователь"
	}
	if user.UserName != "" {
		return "@" + user.UserName
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return "пользователь"
	}
	return name
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}
