package discovery

import (
	"context"

	"github.com/Meposy/GirlsBot/internal/domain"
	"github.com/Meposy/GirlsBot/internal/infra/metrics"
)

// Store — операции хранилища, нужные просмотру анкет.
type Store interface {
	IsBanned(userID int64) bool
	UnseenFor(viewer int64) (unseen []domain.Profile, total int)
	Profiles() []domain.Profile
	ProfileByID(id domain.ProfileID) (domain.Profile, bool)
	MarkViewed(ctx context.Context, viewer int64, id domain.ProfileID) error
}

// Service листает непросмотренные анкеты постранично. Только читает;
// единственная мутация — отметка просмотра при открытии конкретной анкеты.
type Service struct {
	store    Store
	pageSize int
}

// NewService создаёт пагинатор.
func NewService(store Store, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &Service{store: store, pageSize: pageSize}
}

// PageSize возвращает размер страницы.
func (s *Service) PageSize() int { return s.pageSize }

// ListUnseen возвращает страницу чужих непросмотренных анкет в порядке
// добавления. Страница за пределами списка — пустая, без HasMore.
func (s *Service) ListUnseen(viewer int64, page int) (domain.Page, error) {
	if s.store.IsBanned(viewer) {
		return domain.Page{}, domain.ErrBanned
	}
	if page < 0 {
		page = 0
	}
	unseen, total := s.store.UnseenFor(viewer)
	if total == 0 {
		return domain.Page{}, domain.ErrNoProfiles
	}
	if len(unseen) == 0 {
		return domain.Page{}, domain.ErrAllSeen
	}
	// Номер страницы приходит из callback-данных клиента: границу проверяем
	// до умножения, иначе подделанный номер переполняет индекс.
	if page > (len(unseen)-1)/s.pageSize {
		return domain.Page{Number: page}, nil
	}
	start := page * s.pageSize
	end := start + s.pageSize
	if end > len(unseen) {
		end = len(unseen)
	}
	return domain.Page{
		Items:   append([]domain.Profile(nil), unseen[start:end]...),
		Number:  page,
		HasMore: len(unseen) > end,
	}, nil
}

// Open возвращает анкету и отмечает её просмотренной для этого зрителя.
// Отметка ставится только при открытии, не при попадании в список.
func (s *Service) Open(ctx context.Context, viewer int64, id domain.ProfileID) (domain.Profile, error) {
	if s.store.IsBanned(viewer) {
		return domain.Profile{}, domain.ErrBanned
	}
	profile, ok := s.store.ProfileByID(id)
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err := s.store.MarkViewed(ctx, viewer, id); err != nil {
		return domain.Profile{}, err
	}
	metrics.ProfileViewsTotal.Inc()
	return profile, nil
}

// BrowseAll — админский режим: вся последовательность с порядковыми
// номерами рендера, без отметок просмотра.
func (s *Service) BrowseAll(page int) (items []domain.AdminListItem, hasMore bool, err error) {
	if page < 0 {
		page = 0
	}
	profiles := s.store.Profiles()
	if len(profiles) == 0 {
		return nil, false, domain.ErrNoProfiles
	}
	if page > (len(profiles)-1)/s.pageSize {
		return nil, false, nil
	}
	start := page * s.pageSize
	end := start + s.pageSize
	if end > len(profiles) {
		end = len(profiles)
	}
	items = make([]domain.AdminListItem, 0, end-start)
	for i := start; i < end; i++ {
		items = append(items, domain.AdminListItem{Ordinal: i + 1, Profile: profiles[i]})
	}
	return items, len(profiles) > end, nil
}
