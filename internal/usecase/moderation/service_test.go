package moderation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Meposy/GirlsBot/internal/domain"
)

const adminID = int64(1340811422)

type stubStore struct {
	profiles []domain.Profile
	banned   map[int64]bool
	posts    map[domain.ProfileID]int
}

func newStubStore() *stubStore {
	return &stubStore{banned: map[int64]bool{}, posts: map[domain.ProfileID]int{}}
}

func (s *stubStore) addProfile(owner int64) domain.Profile {
	p := domain.Profile{
		ID:      domain.ProfileID(fmt.Sprintf("p%d", len(s.profiles)+1)),
		Owner:   owner,
		URL:     fmt.Sprintf("https://forms.gle/%d", len(s.profiles)+1),
		Comment: "анкета",
	}
	s.profiles = append(s.profiles, p)
	return p
}

func (s *stubStore) Profiles() []domain.Profile {
	return append([]domain.Profile(nil), s.profiles...)
}

func (s *stubStore) DeleteByID(_ context.Context, id domain.ProfileID, byAdmin bool) (domain.Profile, int, error) {
	for i, p := range s.profiles {
		if p.ID == id {
			s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
			msg := s.posts[id]
			delete(s.posts, id)
			return p, msg, nil
		}
	}
	return domain.Profile{}, 0, domain.ErrProfileNotFound
}

func (s *stubStore) Ban(_ context.Context, userID int64) error {
	s.banned[userID] = true
	return nil
}

func (s *stubStore) Unban(_ context.Context, userID int64) error {
	if !s.banned[userID] {
		return domain.ErrNotBanned
	}
	delete(s.banned, userID)
	return nil
}

type stubPublisher struct {
	retractErr error
	retracted  []int
}

func (p *stubPublisher) Publish(context.Context, string, domain.Profile) (int, error) {
	return 0, errors.New("не используется")
}

func (p *stubPublisher) Retract(_ context.Context, messageID int) error {
	if p.retractErr != nil {
		return p.retractErr
	}
	p.retracted = append(p.retracted, messageID)
	return nil
}

type stubNotices struct {
	notices []domain.AdminNotice
}

func (n *stubNotices) Enqueue(_ context.Context, notice domain.AdminNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

func (n *stubNotices) Pop(ctx context.Context) (domain.AdminNotice, error) {
	<-ctx.Done()
	return domain.AdminNotice{}, ctx.Err()
}

func newTestService(store *stubStore, pub *stubPublisher, notices *stubNotices) *Service {
	return NewService(store, pub, notices, adminID, 10*time.Minute, zerolog.Nop())
}

func TestBanFlow(t *testing.T) {
	store := newStubStore()
	service := newTestService(store, &stubPublisher{}, &stubNotices{})
	ctx := context.Background()

	if err := service.BeginBan(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !service.Awaiting(adminID) {
		t.Fatal("диалог должен быть открыт")
	}
	result, err := service.HandleInput(ctx, adminID, " 42 ")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Action != ActionBan || result.UserID != 42 {
		t.Fatalf("неверный результат: %+v", result)
	}
	if !store.banned[42] {
		t.Fatal("пользователь должен попасть в бан-лист")
	}
	if service.Awaiting(adminID) {
		t.Fatal("диалог должен закрыться")
	}

	// Повторный бан того же пользователя — не ошибка.
	if err := service.BeginBan(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.HandleInput(ctx, adminID, "42"); err != nil {
		t.Fatalf("повторный бан не ошибка: %v", err)
	}
}

func TestBanRejectsNonNumericInput(t *testing.T) {
	service := newTestService(newStubStore(), &stubPublisher{}, &stubNotices{})
	if err := service.BeginBan(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.HandleInput(context.Background(), adminID, "вася"); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("ожидали ErrMalformedInput, получили %v", err)
	}
	// Диалог закрыт и на ошибочном вводе.
	if service.Awaiting(adminID) {
		t.Fatal("диалог должен закрыться на любом исходе")
	}
}

func TestUnbanNotBanned(t *testing.T) {
	service := newTestService(newStubStore(), &stubPublisher{}, &stubNotices{})
	if err := service.BeginUnban(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.HandleInput(context.Background(), adminID, "42"); !errors.Is(err, domain.ErrNotBanned) {
		t.Fatalf("ожидали ErrNotBanned, получили %v", err)
	}
}

func TestNonAdminRejected(t *testing.T) {
	service := newTestService(newStubStore(), &stubPublisher{}, &stubNotices{})
	if err := service.BeginBan(2); !errors.Is(err, domain.ErrNotAdmin) {
		t.Fatalf("ожидали ErrNotAdmin, получили %v", err)
	}
	if _, err := service.HandleInput(context.Background(), 2, "42"); !errors.Is(err, domain.ErrNotAdmin) {
		t.Fatalf("ожидали ErrNotAdmin, получили %v", err)
	}
}

func TestInputWithoutSession(t *testing.T) {
	service := newTestService(newStubStore(), &stubPublisher{}, &stubNotices{})
	if _, err := service.HandleInput(context.Background(), adminID, "42"); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("ожидали ErrNoSession, получили %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	service := newTestService(newStubStore(), &stubPublisher{}, &stubNotices{})
	base := time.Now()
	service.now = func() time.Time { return base }
	if err := service.BeginBan(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	service.now = func() time.Time { return base.Add(11 * time.Minute) }
	if service.Awaiting(adminID) {
		t.Fatal("просроченный диалог должен закрыться")
	}
	if _, err := service.HandleInput(context.Background(), adminID, "42"); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("ожидали ErrNoSession, получили %v", err)
	}
}

func TestDeleteByOrdinal(t *testing.T) {
	store := newStubStore()
	store.addProfile(10)
	p2 := store.addProfile(20)
	store.addProfile(30)
	store.posts[p2.ID] = 777
	pub := &stubPublisher{}
	service := newTestService(store, pub, &stubNotices{})

	items, err := service.BeginDelete(adminID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(items) != 3 || items[1].Ordinal != 2 {
		t.Fatalf("неверный рендер списка: %+v", items)
	}
	result, err := service.HandleInput(context.Background(), adminID, "2")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Removed.ID != p2.ID || result.UserID != 20 {
		t.Fatalf("удалена не та анкета: %+v", result)
	}
	if len(store.profiles) != 2 {
		t.Fatalf("последовательность должна сократиться до 2, сейчас %d", len(store.profiles))
	}
	if len(pub.retracted) != 1 || pub.retracted[0] != 777 {
		t.Fatalf("пост в канале должен быть отозван: %v", pub.retracted)
	}
}

// Номер резолвится по рендеру на момент подсказки: конкурентное удаление
// не перенацеливает его на соседнюю анкету.
func TestDeleteByStaleOrdinal(t *testing.T) {
	store := newStubStore()
	store.addProfile(10)
	p2 := store.addProfile(20)
	service := newTestService(store, &stubPublisher{}, &stubNotices{})

	if _, err := service.BeginDelete(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	// Пока админ думает, владелец сам удалил анкету №2.
	if _, _, err := store.DeleteByID(context.Background(), p2.ID, false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.HandleInput(context.Background(), adminID, "2"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("ожидали ErrProfileNotFound, получили %v", err)
	}
	if len(store.profiles) != 1 {
		t.Fatal("чужая анкета не должна пострадать")
	}
}

func TestDeleteInvalidOrdinal(t *testing.T) {
	store := newStubStore()
	store.addProfile(10)
	service := newTestService(store, &stubPublisher{}, &stubNotices{})

	for _, input := range []string{"0", "-1", "5", "два"} {
		if _, err := service.BeginDelete(adminID); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if _, err := service.HandleInput(context.Background(), adminID, input); !errors.Is(err, domain.ErrInvalidPosition) {
			t.Fatalf("ввод %q: ожидали ErrInvalidPosition, получили %v", input, err)
		}
	}
	if len(store.profiles) != 1 {
		t.Fatal("состояние не должно меняться")
	}
}

func TestDeleteEmptySequence(t *testing.T) {
	service := newTestService(newStubStore(), &stubPublisher{}, &stubNotices{})
	if _, err := service.BeginDelete(adminID); !errors.Is(err, domain.ErrNoProfiles) {
		t.Fatalf("ожидали ErrNoProfiles, получили %v", err)
	}
}

func TestRetractFailureNotifiesAdmin(t *testing.T) {
	store := newStubStore()
	p := store.addProfile(10)
	store.posts[p.ID] = 5
	notices := &stubNotices{}
	service := newTestService(store, &stubPublisher{retractErr: errors.New("нет прав")}, notices)

	if _, err := service.BeginDelete(adminID); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := service.HandleInput(context.Background(), adminID, "1"); err != nil {
		t.Fatalf("сбой отзыва не должен быть ошибкой удаления: %v", err)
	}
	if len(notices.notices) != 1 || notices.notices[0].Kind != domain.NoticeRetractFailed {
		t.Fatalf("администратору должно уйти уведомление: %+v", notices.notices)
	}
}
