package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
)

const retractTimeout = 10 * time.Second

// Store — операции хранилища, нужные модерации.
type Store interface {
	Profiles() []domain.Profile
	DeleteByID(ctx context.Context, id domain.ProfileID, byAdmin bool) (domain.Profile, int, error)
	Ban(ctx context.Context, userID int64) error
	Unban(ctx context.Context, userID int64) error
}

// Action — ожидаемый от администратора ввод.
type Action int

const (
	ActionBan Action = iota + 1
	ActionUnban
	ActionDelete
)

// Result описывает выполненное действие модерации.
type Result struct {
	Action  Action
	UserID  int64
	Removed domain.Profile
}

// session — диалог модерации. ordinals фиксирует соответствие
// номер → ProfileID на момент рендера списка: параллельное удаление не
// перенацелит введённый номер на чужую анкету.
type session struct {
	action   Action
	ordinals []domain.ProfileID
	deadline time.Time
}

// Service — машина состояний админских команд: бан, разбан, удаление по
// номеру. Сессия своя, от сессий подачи не зависит.
type Service struct {
	store     Store
	publisher domain.ChannelPublisher
	notices   domain.NoticeQueue
	log       zerolog.Logger
	adminID   int64
	ttl       time.Duration
	now       func() time.Time

	mu       sync.Mutex
	sessions map[int64]session
}

// NewService создаёт воркфлоу модерации для единственного администратора.
func NewService(store Store, publisher domain.ChannelPublisher, notices domain.NoticeQueue, adminID int64, sessionTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		notices:   notices,
		log:       logger,
		adminID:   adminID,
		ttl:       sessionTTL,
		now:       time.Now,
		sessions:  make(map[int64]session),
	}
}

// IsAdmin сообщает, является ли пользователь администратором.
func (s *Service) IsAdmin(userID int64) bool { return userID == s.adminID }

// BeginBan открывает диалог бана.
func (s *Service) BeginBan(adminID int64) error {
	return s.open(adminID, session{action: ActionBan})
}

// BeginUnban открывает диалог разбана.
func (s *Service) BeginUnban(adminID int64) error {
	return s.open(adminID, session{action: ActionUnban})
}

// BeginDelete рендерит текущий список анкет, фиксирует соответствие
// номеров и открывает диалог удаления.
func (s *Service) BeginDelete(adminID int64) ([]domain.AdminListItem, error) {
	if !s.IsAdmin(adminID) {
		return nil, domain.ErrNotAdmin
	}
	profiles := s.store.Profiles()
	if len(profiles) == 0 {
		return nil, domain.ErrNoProfiles
	}
	items := make([]domain.AdminListItem, 0, len(profiles))
	ordinals := make([]domain.ProfileID, 0, len(profiles))
	for i, p := range profiles {
		items = append(items, domain.AdminListItem{Ordinal: i + 1, Profile: p})
		ordinals = append(ordinals, p.ID)
	}
	if err := s.open(adminID, session{action: ActionDelete, ordinals: ordinals}); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) open(adminID int64, sess session) error {
	if !s.IsAdmin(adminID) {
		return domain.ErrNotAdmin
	}
	sess.deadline = s.now().Add(s.ttl)
	s.mu.Lock()
	s.sessions[adminID] = sess
	s.mu.Unlock()
	return nil
}

// Awaiting сообщает, ждёт ли модерация ввода от этого администратора.
func (s *Service) Awaiting(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[adminID]
	if !ok {
		return false
	}
	if s.now().After(sess.deadline) {
		delete(s.sessions, adminID)
		return false
	}
	return true
}

// HandleInput обрабатывает ответ администратора на открытый диалог.
// Сессия снимается до разбора ввода: любой исход возвращает её в Idle.
func (s *Service) HandleInput(ctx context.Context, adminID int64, text string) (Result, error) {
	if !s.IsAdmin(adminID) {
		return Result{}, domain.ErrNotAdmin
	}
	s.mu.Lock()
	sess, ok := s.sessions[adminID]
	delete(s.sessions, adminID)
	s.mu.Unlock()
	if !ok || s.now().After(sess.deadline) {
		return Result{}, domain.ErrNoSession
	}

	switch sess.action {
	case ActionBan:
		return s.completeBan(ctx, text)
	case ActionUnban:
		return s.completeUnban(ctx, text)
	case ActionDelete:
		return s.completeDelete(ctx, text, sess.ordinals)
	default:
		return Result{}, domain.ErrNoSession
	}
}

// completeBan банит пользователя по ID. Повторный бан не ошибка.
func (s *Service) completeBan(ctx context.Context, text string) (Result, error) {
	userID, err := parseUserID(text)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.Ban(ctx, userID); err != nil {
		return Result{}, err
	}
	metrics.IncModeration("ban")
	s.log.Info().Int64("user", userID).Msg("пользователь заблокирован")
	return Result{Action: ActionBan, UserID: userID}, nil
}

func (s *Service) completeUnban(ctx context.Context, text string) (Result, error) {
	userID, err := parseUserID(text)
	if err != nil {
		return Result{}, err
	}
	if err := s.store.Unban(ctx, userID); err != nil {
		return Result{}, err
	}
	metrics.IncModeration("unban")
	s.log.Info().Int64("user", userID).Msg("пользователь разблокирован")
	return Result{Action: ActionUnban, UserID: userID}, nil
}

// completeDelete удаляет анкету по номеру из зафиксированного рендера и
// best-effort отзывает публикацию в канале.
func (s *Service) completeDelete(ctx context.Context, text string, ordinals []domain.ProfileID) (Result, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 {
		return Result{}, domain.ErrInvalidPosition
	}
	if n > len(ordinals) {
		return Result{}, domain.ErrInvalidPosition
	}
	removed, messageID, err := s.store.DeleteByID(ctx, ordinals[n-1], true)
	if err != nil {
		return Result{}, err
	}
	metrics.IncModeration("delete")
	metrics.IncDeletion("admin")
	if messageID != 0 {
		s.retract(ctx, removed.Owner, messageID)
	}
	s.log.Info().Int64("owner", removed.Owner).Str("profile", string(removed.ID)).Msg("анкета удалена администратором")
	return Result{Action: ActionDelete, UserID: removed.Owner, Removed: removed}, nil
}

// retract отзывает пост в канале. Сбой логируется и уходит уведомлением,
// удаление не откатывается.
func (s *Service) retract(ctx context.Context, owner int64, messageID int) {
	retCtx, cancel := context.WithTimeout(ctx, retractTimeout)
	defer cancel()
	if err := s.publisher.Retract(retCtx, messageID); err != nil {
		s.log.Error().Err(err).Int64("owner", owner).Int("message", messageID).Msg("пост в канале не отозван")
		notice := domain.AdminNotice{
			Kind:       domain.NoticeRetractFailed,
			UserID:     owner,
			Text:       fmt.Sprintf("Анкета пользователя %d удалена, но пост в канале не отозван: %v", owner, err),
			OccurredAt: s.now().UTC(),
		}
		if err := s.notices.Enqueue(ctx, notice); err != nil {
			s.log.Error().Err(err).Msg("уведомление администратору не поставлено в очередь")
		}
	}
}

func parseUserID(text string) (int64, error) {
	userID, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: нужен числовой ID пользователя", domain.ErrMalformedInput)
	}
	return userID, nil
}
