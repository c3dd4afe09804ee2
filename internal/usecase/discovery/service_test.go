package discovery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/Meposy/GirlsBot/internal/domain"
)

type stubStore struct {
	banned   map[int64]bool
	profiles []domain.Profile
	viewed   map[int64]map[domain.ProfileID]bool
	markErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		banned: map[int64]bool{},
		viewed: map[int64]map[domain.ProfileID]bool{},
	}
}

func (s *stubStore) addProfile(owner int64) domain.Profile {
	p := domain.Profile{
		ID:        domain.ProfileID(fmt.Sprintf("p%d", len(s.profiles)+1)),
		Owner:     owner,
		URL:       fmt.Sprintf("https://forms.gle/%d", len(s.profiles)+1),
		Comment:   fmt.Sprintf("анкета %d", len(s.profiles)+1),
		CreatedAt: time.Now(),
	}
	s.profiles = append(s.profiles, p)
	return p
}

func (s *stubStore) IsBanned(userID int64) bool { return s.banned[userID] }

func (s *stubStore) UnseenFor(viewer int64) ([]domain.Profile, int) {
	var unseen []domain.Profile
	for _, p := range s.profiles {
		if p.Owner == viewer || s.viewed[viewer][p.ID] {
			continue
		}
		unseen = append(unseen, p)
	}
	return unseen, len(s.profiles)
}

func (s *stubStore) Profiles() []domain.Profile {
	return append([]domain.Profile(nil), s.profiles...)
}

func (s *stubStore) ProfileByID(id domain.ProfileID) (domain.Profile, bool) {
	for _, p := range s.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Profile{}, false
}

func (s *stubStore) MarkViewed(_ context.Context, viewer int64, id domain.ProfileID) error {
	if s.markErr != nil {
		return s.markErr
	}
	set, ok := s.viewed[viewer]
	if !ok {
		set = map[domain.ProfileID]bool{}
		s.viewed[viewer] = set
	}
	set[id] = true
	return nil
}

func TestListUnseenEmptySequence(t *testing.T) {
	service := NewService(newStubStore(), 5)
	if _, err := service.ListUnseen(1, 0); !errors.Is(err, domain.ErrNoProfiles) {
		t.Fatalf("ожидали ErrNoProfiles, получили %v", err)
	}
}

func TestListUnseenAllCaughtUp(t *testing.T) {
	store := newStubStore()
	p := store.addProfile(2)
	store.viewed[1] = map[domain.ProfileID]bool{p.ID: true}
	service := NewService(store, 5)
	if _, err := service.ListUnseen(1, 0); !errors.Is(err, domain.ErrAllSeen) {
		t.Fatalf("ожидали ErrAllSeen, получили %v", err)
	}
}

func TestListUnseenSkipsOwnProfile(t *testing.T) {
	store := newStubStore()
	store.addProfile(1)
	other := store.addProfile(2)
	service := NewService(store, 5)
	page, err := service.ListUnseen(1, 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != other.ID {
		t.Fatalf("своя анкета не должна попадать в список: %+v", page.Items)
	}
}

func TestListUnseenBanned(t *testing.T) {
	store := newStubStore()
	store.addProfile(2)
	store.banned[1] = true
	service := NewService(store, 5)
	if _, err := service.ListUnseen(1, 0); !errors.Is(err, domain.ErrBanned) {
		t.Fatalf("ожидали ErrBanned, получили %v", err)
	}
}

// Конкатенация страниц даёт ровно непросмотренный набор: без дубликатов,
// без пропусков, в порядке добавления.
func TestPaginationCoversUnseenExactly(t *testing.T) {
	store := newStubStore()
	for i := 0; i < 12; i++ {
		store.addProfile(int64(100 + i))
	}
	service := NewService(store, 5)

	var collected []domain.ProfileID
	for page := 0; ; page++ {
		result, err := service.ListUnseen(1, page)
		if err != nil {
			t.Fatalf("страница %d: %v", page, err)
		}
		for _, p := range result.Items {
			collected = append(collected, p.ID)
		}
		if !result.HasMore {
			if got := len(result.Items); page < 2 && got != 5 {
				t.Fatalf("страница %d: ожидали 5 элементов, получили %d", page, got)
			}
			break
		}
	}

	unseen, _ := store.UnseenFor(1)
	if len(collected) != len(unseen) {
		t.Fatalf("ожидали %d анкет суммарно, получили %d", len(unseen), len(collected))
	}
	seen := map[domain.ProfileID]bool{}
	for i, id := range collected {
		if seen[id] {
			t.Fatalf("дубликат %s", id)
		}
		seen[id] = true
		if unseen[i].ID != id {
			t.Fatalf("нарушен порядок добавления на позиции %d", i)
		}
	}
}

func TestPageBeyondRange(t *testing.T) {
	store := newStubStore()
	store.addProfile(2)
	service := NewService(store, 5)
	page, err := service.ListUnseen(1, 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 0 || page.HasMore {
		t.Fatalf("страница за пределами списка должна быть пустой: %+v", page)
	}
}

// Номер страницы подделывается в callback-данных: огромное значение не
// должно ронять пагинатор переполнением индекса.
func TestForgedPageNumber(t *testing.T) {
	store := newStubStore()
	store.addProfile(2)
	service := NewService(store, 5)

	for _, page := range []int{7, math.MaxInt / 4, math.MaxInt} {
		got, err := service.ListUnseen(1, page)
		if err != nil {
			t.Fatalf("страница %d: не ожидали ошибку: %v", page, err)
		}
		if len(got.Items) != 0 || got.HasMore {
			t.Fatalf("страница %d должна быть пустой: %+v", page, got)
		}
		items, hasMore, err := service.BrowseAll(page)
		if err != nil {
			t.Fatalf("страница %d: не ожидали ошибку: %v", page, err)
		}
		if len(items) != 0 || hasMore {
			t.Fatalf("админская страница %d должна быть пустой: %d %v", page, len(items), hasMore)
		}
	}
}

func TestOpenMarksViewedOnlyForViewer(t *testing.T) {
	store := newStubStore()
	p := store.addProfile(2)
	service := NewService(store, 5)

	got, err := service.Open(context.Background(), 1, p.ID)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("открыта не та анкета: %s", got.ID)
	}
	if _, err := service.ListUnseen(1, 0); !errors.Is(err, domain.ErrAllSeen) {
		t.Fatalf("после открытия анкета должна исчезнуть из списка: %v", err)
	}
	// Другой зритель по-прежнему видит анкету.
	page, err := service.ListUnseen(3, 0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("просмотры не должны влиять на других зрителей: %+v", page.Items)
	}
}

func TestOpenDeletedProfile(t *testing.T) {
	service := NewService(newStubStore(), 5)
	if _, err := service.Open(context.Background(), 1, "исчезла"); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("ожидали ErrProfileNotFound, получили %v", err)
	}
}

func TestOpenPropagatesPersistenceFailure(t *testing.T) {
	store := newStubStore()
	p := store.addProfile(2)
	store.markErr = domain.ErrPersistence
	service := NewService(store, 5)
	if _, err := service.Open(context.Background(), 1, p.ID); !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("ожидали ErrPersistence, получили %v", err)
	}
}

// Админский просмотр не оставляет отметок и нумерует по текущему рендеру.
func TestBrowseAllDoesNotMarkViewed(t *testing.T) {
	store := newStubStore()
	for i := 0; i < 7; i++ {
		store.addProfile(int64(100 + i))
	}
	service := NewService(store, 5)

	items, hasMore, err := service.BrowseAll(0)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(items) != 5 || !hasMore {
		t.Fatalf("ожидали первую страницу из 5 с продолжением: %d %v", len(items), hasMore)
	}
	if items[0].Ordinal != 1 || items[4].Ordinal != 5 {
		t.Fatalf("неверная нумерация: %d..%d", items[0].Ordinal, items[4].Ordinal)
	}
	items, hasMore, err = service.BrowseAll(1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(items) != 2 || hasMore {
		t.Fatalf("ожидали хвост из 2 без продолжения: %d %v", len(items), hasMore)
	}
	if items[0].Ordinal != 6 {
		t.Fatalf("нумерация должна продолжаться: %d", items[0].Ordinal)
	}
	if len(store.viewed) != 0 {
		t.Fatal("админский просмотр не должен оставлять отметок")
	}
}
