package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
)

// Store — единственная граница консистентности движка: анкеты, баны,
// просмотры, кулдауны и индекс публикаций живут под одним мьютексом и
// меняются только транзакционными операциями. Каждая мутация пишется
// насквозь в SnapshotStore; при сбое записи состояние откатывается.
type Store struct {
	mu   sync.Mutex
	snap domain.SnapshotStore
	log  zerolog.Logger
	now  func() time.Time

	cooldown time.Duration
	st       state
}

// New восстанавливает состояние из снапшота. Повреждённый или отсутствующий
// снимок деградирует до пустого состояния, а не до падения на старте.
func New(ctx context.Context, snap domain.SnapshotStore, cooldown time.Duration, logger zerolog.Logger) *Store {
	s := &Store{
		snap:     snap,
		log:      logger,
		now:      time.Now,
		cooldown: cooldown,
		st:       newState(),
	}
	data, err := snap.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("снапшот не прочитан, стартуем с пустого состояния")
		return s
	}
	if len(data) == 0 {
		return s
	}
	st, err := decodeState(data)
	if err != nil {
		logger.Warn().Err(err).Msg("снапшот повреждён, стартуем с пустого состояния")
		return s
	}
	s.st = st
	return s
}

// commitLocked сериализует состояние и пишет снапшот. Вызывать под mu.
func (s *Store) commitLocked(ctx context.Context) error {
	data, err := s.st.encode()
	if err != nil {
		return fmt.Errorf("кодирование состояния: %w", err)
	}
	return s.snap.Save(ctx, data)
}

// errUnchanged возвращается из мутации, которая оказалась no-op: состояние
// откатывается к бэкапу, коммит не выполняется, вызывающему уходит nil.
var errUnchanged = errors.New("состояние не изменилось")

// mutate применяет fn и коммитит снапшот; при сбое коммита откатывает
// состояние и возвращает ErrPersistence. Проверки и мутация выполняются под
// одним захватом мьютекса: это единственная граница консистентности движка.
func (s *Store) mutate(ctx context.Context, fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	backup := s.st.clone()
	if err := fn(&s.st); err != nil {
		s.st = backup
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	if err := s.commitLocked(ctx); err != nil {
		s.st = backup
		metrics.SnapshotErrorsTotal.Inc()
		s.log.Error().Err(err).Msg("снапшот не записан, мутация откатена")
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Add создаёт анкету и одним коммитом ставит штамп кулдауна владельцу.
func (s *Store) Add(ctx context.Context, owner int64, url, comment string) (domain.Profile, error) {
	profile := domain.Profile{
		ID:        domain.ProfileID(uuid.NewString()),
		Owner:     owner,
		URL:       url,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	}
	err := s.mutate(ctx, func(st *state) error {
		for _, p := range st.profiles {
			if p.Owner == owner {
				return domain.ErrDuplicateProfile
			}
		}
		st.profiles = append(st.profiles, profile)
		st.cooldowns[owner] = profile.CreatedAt
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// ProfileByOwner возвращает живую анкету владельца.
func (s *Store) ProfileByOwner(owner int64) (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.profiles {
		if p.Owner == owner {
			return p, true
		}
	}
	return domain.Profile{}, false
}

// ProfileByID возвращает анкету по идентификатору.
func (s *Store) ProfileByID(id domain.ProfileID) (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Profile{}, false
}

// Profiles возвращает копию последовательности в порядке добавления.
func (s *Store) Profiles() []domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Profile(nil), s.st.profiles...)
}

// UnseenFor возвращает чужие непросмотренные анкеты в порядке добавления
// и общее число анкет — одним консистентным срезом под мьютексом.
func (s *Store) UnseenFor(viewer int64) (unseen []domain.Profile, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.st.viewed[viewer]
	for _, p := range s.st.profiles {
		if p.Owner == viewer {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		unseen = append(unseen, p)
	}
	return unseen, len(s.st.profiles)
}

// MarkViewed отмечает анкету просмотренной. Отметка несуществующей или уже
// просмотренной анкеты — no-op без коммита. Проверка живости выполняется в
// той же транзакции, что и вставка: параллельное удаление не оставит в
// просмотренных мёртвый идентификатор.
func (s *Store) MarkViewed(ctx context.Context, viewer int64, id domain.ProfileID) error {
	return s.mutate(ctx, func(st *state) error {
		alive := false
		for _, p := range st.profiles {
			if p.ID == id {
				alive = true
				break
			}
		}
		if !alive {
			return errUnchanged
		}
		if _, already := st.viewed[viewer][id]; already {
			return errUnchanged
		}
		set, ok := st.viewed[viewer]
		if !ok {
			set = make(map[domain.ProfileID]struct{})
			st.viewed[viewer] = set
		}
		set[id] = struct{}{}
		return nil
	})
}

// removeAt вырезает анкету по индексу со всем каскадом: последовательность,
// индекс публикаций, просмотренные, политика кулдауна. Вызывать из mutate.
func (s *Store) removeAt(st *state, idx int, byAdmin bool) (domain.Profile, int) {
	removed := st.profiles[idx]
	st.profiles = append(st.profiles[:idx], st.profiles[idx+1:]...)
	messageID := st.channelPosts[removed.Owner]
	delete(st.channelPosts, removed.Owner)
	for viewer, set := range st.viewed {
		delete(set, removed.ID)
		if len(set) == 0 {
			delete(st.viewed, viewer)
		}
	}
	if byAdmin {
		delete(st.cooldowns, removed.Owner)
	} else {
		st.cooldowns[removed.Owner] = s.now().UTC()
	}
	return removed, messageID
}

// DeleteByOwner удаляет анкету владельца со всем каскадом. byAdmin управляет
// политикой кулдауна: админское удаление снимает его, собственное — ставит
// новый штамп. Возвращает удалённую анкету и ID сообщения в канале (0, если
// публикации не было).
func (s *Store) DeleteByOwner(ctx context.Context, owner int64, byAdmin bool) (domain.Profile, int, error) {
	var removed domain.Profile
	var messageID int
	err := s.mutate(ctx, func(st *state) error {
		for i, p := range st.profiles {
			if p.Owner == owner {
				removed, messageID = s.removeAt(st, i, byAdmin)
				return nil
			}
		}
		return domain.ErrProfileNotFound
	})
	if err != nil {
		return domain.Profile{}, 0, err
	}
	return removed, messageID, nil
}

// DeleteByID удаляет анкету по идентификатору с тем же каскадом. Поиск и
// удаление идут одной транзакцией: идентификатор не перенацелится на другую
// анкету того же владельца, появившуюся после рендера списка.
func (s *Store) DeleteByID(ctx context.Context, id domain.ProfileID, byAdmin bool) (domain.Profile, int, error) {
	var removed domain.Profile
	var messageID int
	err := s.mutate(ctx, func(st *state) error {
		for i, p := range st.profiles {
			if p.ID == id {
				removed, messageID = s.removeAt(st, i, byAdmin)
				return nil
			}
		}
		return domain.ErrProfileNotFound
	})
	if err != nil {
		return domain.Profile{}, 0, err
	}
	return removed, messageID, nil
}

// Ban добавляет пользователя в бан-лист. Повторный бан — no-op без коммита.
func (s *Store) Ban(ctx context.Context, userID int64) error {
	return s.mutate(ctx, func(st *state) error {
		if _, already := st.banned[userID]; already {
			return errUnchanged
		}
		st.banned[userID] = struct{}{}
		return nil
	})
}

// Unban убирает пользователя из бан-листа.
func (s *Store) Unban(ctx context.Context, userID int64) error {
	return s.mutate(ctx, func(st *state) error {
		if _, ok := st.banned[userID]; !ok {
			return domain.ErrNotBanned
		}
		delete(st.banned, userID)
		return nil
	})
}

// IsBanned сообщает, заблокирован ли пользователь.
func (s *Store) IsBanned(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.banned[userID]
	return ok
}

// CooldownRemaining возвращает остаток кулдауна владельца; 0 — можно слать.
func (s *Store) CooldownRemaining(owner int64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.st.cooldowns[owner]
	if !ok {
		return 0
	}
	remaining := s.cooldown - s.now().UTC().Sub(stamp)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetChannelPost запоминает ID сообщения в канале для последующего отзыва.
func (s *Store) SetChannelPost(ctx context.Context, owner int64, messageID int) error {
	return s.mutate(ctx, func(st *state) error {
		st.channelPosts[owner] = messageID
		return nil
	})
}

// ChannelPost возвращает ID сообщения в канале для владельца.
func (s *Store) ChannelPost(owner int64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.st.channelPosts[owner]
	return id, ok
}
