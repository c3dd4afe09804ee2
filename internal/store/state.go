package store

import (
	"encoding/json"
	"time"

	"github.com/Meposy/GirlsBot/internal/domain"
)

// state — все пять коллекций движка. Доступ только под мьютексом Store.
type state struct {
	profiles     []domain.Profile
	banned       map[int64]struct{}
	viewed       map[int64]map[domain.ProfileID]struct{}
	cooldowns    map[int64]time.Time
	channelPosts map[int64]int
}

func newState() state {
	return state{
		banned:       make(map[int64]struct{}),
		viewed:       make(map[int64]map[domain.ProfileID]struct{}),
		cooldowns:    make(map[int64]time.Time),
		channelPosts: make(map[int64]int),
	}
}

func (s *state) clone() state {
	c := newState()
	c.profiles = append([]domain.Profile(nil), s.profiles...)
	for id := range s.banned {
		c.banned[id] = struct{}{}
	}
	for viewer, set := range s.viewed {
		copied := make(map[domain.ProfileID]struct{}, len(set))
		for id := range set {
			copied[id] = struct{}{}
		}
		c.viewed[viewer] = copied
	}
	for owner, at := range s.cooldowns {
		c.cooldowns[owner] = at
	}
	for owner, msg := range s.channelPosts {
		c.channelPosts[owner] = msg
	}
	return c
}

// stateRecord — сериализованный снимок. Новые поля добавляются как
// optional: снимок старой схемы восстанавливается с пустыми значениями.
type stateRecord struct {
	Profiles     []domain.Profile             `json:"profiles"`
	BannedUsers  []int64                      `json:"banned_users"`
	Viewed       map[int64][]domain.ProfileID `json:"viewed"`
	Cooldowns    map[int64]time.Time          `json:"cooldowns"`
	ChannelPosts map[int64]int                `json:"channel_posts"`
}

func (s *state) encode() ([]byte, error) {
	rec := stateRecord{
		Profiles:     s.profiles,
		BannedUsers:  make([]int64, 0, len(s.banned)),
		Viewed:       make(map[int64][]domain.ProfileID, len(s.viewed)),
		Cooldowns:    s.cooldowns,
		ChannelPosts: s.channelPosts,
	}
	for id := range s.banned {
		rec.BannedUsers = append(rec.BannedUsers, id)
	}
	for viewer, set := range s.viewed {
		ids := make([]domain.ProfileID, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		rec.Viewed[viewer] = ids
	}
	return json.Marshal(rec)
}

func decodeState(data []byte) (state, error) {
	var rec stateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return state{}, err
	}
	st := newState()
	st.profiles = rec.Profiles
	for _, id := range rec.BannedUsers {
		st.banned[id] = struct{}{}
	}
	for viewer, ids := range rec.Viewed {
		set := make(map[domain.ProfileID]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		st.viewed[viewer] = set
	}
	for owner, at := range rec.Cooldowns {
		st.cooldowns[owner] = at
	}
	for owner, msg := range rec.ChannelPosts {
		st.channelPosts[owner] = msg
	}
	return st, nil
}
