package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmkeith/dungeonmaster/pkg/actor"
	"github.com/dmkeith/dungeonmaster/pkg/state"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu       sync.Mutex
	users    map[string]state.User
	sessions map[uuid.UUID]state.Session
	profiles map[uuid.UUID]actor.Profile
	states   map[uuid.UUID]state.StoryState
	rolls    []state.StoryRoll
	grants   []state.AchievementGrant
	Events   []state.EventRecord

	nextRollID  int64
	nextGrantID int64

	// PingErr, when set, is returned from Ping to simulate an unavailable store.
	PingErr error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]state.User),
		sessions: make(map[uuid.UUID]state.Session),
		profiles: make(map[uuid.UUID]actor.Profile),
		states:   make(map[uuid.UUID]state.StoryState),
	}
}

func (m *MockStore) Ping(ctx context.Context) error { return m.PingErr }
func (m *MockStore) Close() error                   { return nil }

func (m *MockStore) EnsureUser(ctx context.Context, id, displayName string) (*state.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		u = state.User{ID: id, CreatedAt: time.Now().UTC()}
	}
	u.DisplayName = displayName
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return &u, nil
}

func (m *MockStore) GetSession(ctx context.Context, id uuid.UUID) (*state.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *MockStore) SaveSession(ctx context.Context, s *state.Session) error {
	if err := s.Toggles.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *MockStore) GetProfile(ctx context.Context, sessionID uuid.UUID) (*actor.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[sessionID]; ok {
		clone := p
		clone.Abilities = cloneIntMap(p.Abilities)
		clone.Inventory = cloneIntMap(p.Inventory)
		return &clone, nil
	}
	return nil, nil
}

func (m *MockStore) SaveProfile(ctx context.Context, p *actor.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	clone := *p
	clone.Abilities = cloneIntMap(p.Abilities)
	clone.Inventory = cloneIntMap(p.Inventory)
	m.profiles[p.SessionID] = clone
	return nil
}

func (m *MockStore) GetStoryState(ctx context.Context, sessionID uuid.UUID) (*state.StoryState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[sessionID]; ok {
		clone := st
		clone.SceneHistory = append([]string(nil), st.SceneHistory...)
		clone.Flags = cloneStringMap(st.Flags)
		clone.Stats = cloneIntMap(st.Stats)
		return &clone, nil
	}
	return nil, nil
}

func (m *MockStore) SaveStoryState(ctx context.Context, st *state.StoryState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.UpdatedAt = time.Now().UTC()
	clone := *st
	clone.SceneHistory = append([]string(nil), st.SceneHistory...)
	clone.Flags = cloneStringMap(st.Flags)
	clone.Stats = cloneIntMap(st.Stats)
	m.states[st.SessionID] = clone
	return nil
}

func (m *MockStore) AppendRoll(ctx context.Context, roll state.StoryRoll) (*state.StoryRoll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRollID++
	roll.ID = m.nextRollID
	if roll.CreatedAt.IsZero() {
		roll.CreatedAt = time.Now().UTC()
	}
	m.rolls = append(m.rolls, roll)
	return &roll, nil
}

func (m *MockStore) RecentRolls(ctx context.Context, sessionID uuid.UUID, limit int) ([]state.StoryRoll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	var out []state.StoryRoll
	for i := len(m.rolls) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rolls[i].SessionID == sessionID {
			out = append(out, m.rolls[i])
		}
	}
	return out, nil
}

func (m *MockStore) ConsumeStoredRoll(ctx context.Context, sessionID uuid.UUID, ability, expression string) (*state.StoryRoll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Oldest unconsumed compatible roll first.
	indexes := make([]int, 0, len(m.rolls))
	for i := range m.rolls {
		r := &m.rolls[i]
		if r.SessionID != sessionID || r.ConsumedAt != nil {
			continue
		}
		if (ability != "" && r.Ability == ability) || r.Expression == expression {
			indexes = append(indexes, i)
		}
	}
	if len(indexes) == 0 {
		return nil, nil
	}
	sort.Slice(indexes, func(a, b int) bool {
		return m.rolls[indexes[a]].CreatedAt.Before(m.rolls[indexes[b]].CreatedAt)
	})
	r := &m.rolls[indexes[0]]
	now := time.Now().UTC()
	r.ConsumedAt = &now
	claimed := *r
	return &claimed, nil
}

func (m *MockStore) ConsiderInsert(ctx context.Context, grant state.AchievementGrant,
	shouldInsert func(latest *state.AchievementGrant) bool,
) (*state.AchievementGrant, *state.AchievementGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *state.AchievementGrant
	for i := len(m.grants) - 1; i >= 0; i-- {
		g := m.grants[i]
		if g.AchievementID == grant.AchievementID && g.UserID == grant.UserID {
			if latest == nil || g.AwardedAt.After(latest.AwardedAt) {
				copied := g
				latest = &copied
			}
		}
	}

	if !shouldInsert(latest) {
		return latest, nil, nil
	}

	m.nextGrantID++
	grant.ID = m.nextGrantID
	if grant.AwardedAt.IsZero() {
		grant.AwardedAt = time.Now().UTC()
	}
	m.grants = append(m.grants, grant)
	return latest, &grant, nil
}

func (m *MockStore) LatestGrant(ctx context.Context, achievementID, userID string) (*state.AchievementGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *state.AchievementGrant
	for i := range m.grants {
		g := m.grants[i]
		if g.AchievementID == achievementID && g.UserID == userID {
			if latest == nil || g.AwardedAt.After(latest.AwardedAt) {
				copied := g
				latest = &copied
			}
		}
	}
	return latest, nil
}

func (m *MockStore) RecentGrants(ctx context.Context, userID string, limit int) ([]state.AchievementGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	var out []state.AchievementGrant
	for i := len(m.grants) - 1; i >= 0 && len(out) < limit; i-- {
		if m.grants[i].UserID == userID {
			out = append(out, m.grants[i])
		}
	}
	return out, nil
}

func (m *MockStore) AppendEvent(ctx context.Context, event state.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	m.Events = append(m.Events, event)
	return nil
}

func cloneStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneIntMap(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
