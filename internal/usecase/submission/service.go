package submission

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
)

const publishTimeout = 10 * time.Second

// Store — операции хранилища, нужные воркфлоу подачи.
type Store interface {
	IsBanned(userID int64) bool
	ProfileByOwner(owner int64) (domain.Profile, bool)
	CooldownRemaining(owner int64) time.Duration
	Add(ctx context.Context, owner int64, url, comment string) (domain.Profile, error)
	SetChannelPost(ctx context.Context, owner int64, messageID int) error
	DeleteByOwner(ctx context.Context, owner int64, byAdmin bool) (domain.Profile, int, error)
}

// Service проводит пользователя через подачу анкеты:
// Idle → AwaitingSubmission → Idle. Сессии ключуются по пользователю и
// истекают по таймауту, чтобы диалог не зависал навсегда.
type Service struct {
	store      Store
	publisher  domain.ChannelPublisher
	notices    domain.NoticeQueue
	log        zerolog.Logger
	denylist   []string
	hosts      map[string]struct{}
	sessionTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	pending map[int64]time.Time
}

// NewService создаёт воркфлоу подачи. denylist сравнивается без учёта
// регистра, hosts — разрешённые хосты ссылок на формы.
func NewService(store Store, publisher domain.ChannelPublisher, notices domain.NoticeQueue, denylist, hosts []string, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	lowered := make([]string, 0, len(denylist))
	for _, term := range denylist {
		trimmed := strings.ToLower(strings.TrimSpace(term))
		if trimmed == "" {
			continue
		}
		lowered = append(lowered, trimmed)
	}
	allowed := make(map[string]struct{}, len(hosts))
	for _, host := range hosts {
		allowed[strings.ToLower(strings.TrimSpace(host))] = struct{}{}
	}
	return &Service{
		store:      store,
		publisher:  publisher,
		notices:    notices,
		log:        logger,
		denylist:   lowered,
		hosts:      allowed,
		sessionTTL: sessionTTL,
		now:        time.Now,
		pending:    make(map[int64]time.Time),
	}
}

// Begin открывает диалог подачи. Порядок проверок фиксирован: бан, затем
// дубликат, затем кулдаун — у владельца живой анкеты ответ про дубликат,
// а не про кулдаун.
func (s *Service) Begin(userID int64) error {
	if s.store.IsBanned(userID) {
		metrics.IncSubmission("rejected_banned")
		return domain.ErrBanned
	}
	if _, ok := s.store.ProfileByOwner(userID); ok {
		metrics.IncSubmission("rejected_duplicate")
		return domain.ErrDuplicateProfile
	}
	if remaining := s.store.CooldownRemaining(userID); remaining > 0 {
		metrics.IncSubmission("rejected_cooldown")
		return &domain.CooldownError{Remaining: remaining}
	}
	s.mu.Lock()
	s.pending[userID] = s.now().Add(s.sessionTTL)
	s.mu.Unlock()
	return nil
}

// Awaiting сообщает, ждёт ли бот анкету от этого пользователя. Истёкшая
// сессия снимается здесь же.
func (s *Service) Awaiting(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.pending[userID]
	if !ok {
		return false
	}
	if s.now().After(deadline) {
		delete(s.pending, userID)
		return false
	}
	return true
}

// takePending снимает сессию пользователя. Сессия снимается до разбора
// ввода: любой исход возвращает диалог в Idle.
func (s *Service) takePending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.pending[userID]
	if !ok {
		return false
	}
	delete(s.pending, userID)
	return !s.now().After(deadline)
}

// Complete принимает текст анкеты от пользователя, валидирует, сохраняет и
// публикует в канале. Сбой публикации не откатывает сохранённую анкету:
// возвращается PublishedLocallyOnly, администратору уходит уведомление.
func (s *Service) Complete(ctx context.Context, userID int64, displayName, rawText string) (domain.Profile, domain.PublishOutcome, error) {
	if !s.takePending(userID) {
		return domain.Profile{}, 0, domain.ErrNoSession
	}
	if s.store.IsBanned(userID) {
		metrics.IncSubmission("rejected_banned")
		return domain.Profile{}, 0, domain.ErrBanned
	}
	formURL, comment, err := SplitSubmission(rawText)
	if err != nil {
		metrics.IncSubmission("rejected_malformed")
		return domain.Profile{}, 0, err
	}
	if term, ok := s.matchDenylist(comment); ok {
		metrics.IncSubmission("rejected_content")
		s.log.Debug().Int64("user", userID).Str("term", term).Msg("комментарий отклонён по стоп-слову")
		return domain.Profile{}, 0, domain.ErrContentRejected
	}
	if err := s.validateFormURL(formURL); err != nil {
		metrics.IncSubmission("rejected_url")
		return domain.Profile{}, 0, err
	}

	profile, err := s.store.Add(ctx, userID, formURL, comment)
	if err != nil {
		return domain.Profile{}, 0, err
	}
	metrics.IncSubmission("accepted")

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	messageID, err := s.publisher.Publish(pubCtx, displayName, profile)
	if err != nil {
		s.log.Error().Err(err).Int64("user", userID).Msg("публикация анкеты в канале не удалась")
		s.notifyAdmin(ctx, domain.AdminNotice{
			Kind:       domain.NoticePublishFailed,
			UserID:     userID,
			Text:       fmt.Sprintf("Анкета пользователя %d сохранена, но не опубликована в канале: %v", userID, err),
			OccurredAt: s.now().UTC(),
		})
		return profile, domain.PublishedLocallyOnly, nil
	}
	if err := s.store.SetChannelPost(ctx, userID, messageID); err != nil {
		// Анкета и публикация уже состоялись; теряется только возможность
		// автоматического отзыва поста.
		s.log.Error().Err(err).Int64("user", userID).Msg("индекс публикации не сохранён")
	}
	return profile, domain.Published, nil
}

// Delete удаляет собственную анкету пользователя. Кулдаун при этом
// перештамповывается: удалил-и-сразу-переподал не обходит ограничение.
// Пост в канале отзывается best-effort.
func (s *Service) Delete(ctx context.Context, userID int64) (domain.Profile, error) {
	removed, messageID, err := s.store.DeleteByOwner(ctx, userID, false)
	if err != nil {
		return domain.Profile{}, err
	}
	metrics.IncDeletion("owner")
	if messageID != 0 {
		retCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := s.publisher.Retract(retCtx, messageID); err != nil {
			s.log.Error().Err(err).Int64("user", userID).Int("message", messageID).Msg("пост в канале не отозван")
			s.notifyAdmin(ctx, domain.AdminNotice{
				Kind:       domain.NoticeRetractFailed,
				UserID:     userID,
				Text:       fmt.Sprintf("Пользователь %d удалил анкету, но пост в канале не отозван: %v", userID, err),
				OccurredAt: s.now().UTC(),
			})
		}
	}
	return removed, nil
}

func (s *Service) notifyAdmin(ctx context.Context, notice domain.AdminNotice) {
	if err := s.notices.Enqueue(ctx, notice); err != nil {
		s.log.Error().Err(err).Msg("уведомление администратору не поставлено в очередь")
	}
}

func (s *Service) matchDenylist(comment string) (string, bool) {
	lowered := strings.ToLower(comment)
	for _, term := range s.denylist {
		if strings.Contains(lowered, term) {
			return term, true
		}
	}
	return "", false
}

// validateFormURL принимает только https-ссылки на разрешённые хосты форм
// с непустым путём.
func (s *Service) validateFormURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return domain.ErrInvalidURL
	}
	if parsed.Scheme != "https" {
		return domain.ErrInvalidURL
	}
	host := strings.ToLower(parsed.Hostname())
	if _, ok := s.hosts[host]; !ok {
		return domain.ErrInvalidURL
	}
	if parsed.Path == "" || parsed.Path == "/" {
		return domain.ErrInvalidURL
	}
	return nil
}

// SplitSubmission делит текст по первому пробельному прогону на ссылку и
// комментарий.
func SplitSubmission(rawText string) (formURL, comment string, err error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return "", "", domain.ErrMalformedInput
	}
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return "", "", domain.ErrMalformedInput
	}
	formURL = text[:idx]
	comment = strings.TrimSpace(text[idx:])
	if comment == "" {
		return "", "", domain.ErrMalformedInput
	}
	return formURL, comment, nil
}
