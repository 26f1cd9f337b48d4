package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/user-management/internal/config"
	"github.com/iliyamo/user-management/internal/logging"
	"github.com/iliyamo/user-management/internal/model"
	"github.com/iliyamo/user-management/internal/repository"
	"github.com/iliyamo/user-management/internal/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memUsers is an in-memory user repository.
type memUsers struct {
	mu    sync.Mutex
	byID  map[string]model.User
	calls []repository.Lookup
}

func newMemUsers(users ...model.User) *memUsers {
	m := &memUsers{byID: map[string]model.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) FindUser(_ context.Context, l repository.Lookup) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, l)
	for _, u := range m.byID {
		var v string
		switch l.Kind {
		case repository.ByUsername:
			v = u.Username
		case repository.ByEmail:
			v = u.Email
		case repository.ByPhone:
			v = u.PhoneNumber
		case repository.ByID:
			v = u.ID
		}
		if v == l.Value {
			return u, nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == u.Username || existing.Email == u.Email || existing.PhoneNumber == u.PhoneNumber {
			return model.ErrConflict
		}
	}
	u.ID = "id-" + u.Username
	m.byID[u.ID] = *u
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.ErrNotFound
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

func (m *memUsers) List(_ context.Context, f model.UserFilter) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.byID {
		if f.GroupID == "" || u.GroupID == f.GroupID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, id string, upd model.UserUpdate) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Image != nil {
		u.Image = *upd.Image
	}
	if upd.IsBlocked != nil {
		u.IsBlocked = *upd.IsBlocked
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.GroupID != nil {
		u.GroupID = *upd.GroupID
	}
	m.byID[id] = u
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memUsers) get(id string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type memGroups struct {
	byID map[string]model.Group
}

func newMemGroups(groups ...model.Group) *memGroups {
	m := &memGroups{byID: map[string]model.Group{}}
	for _, g := range groups {
		m.byID[g.ID] = g
	}
	return m
}

func (m *memGroups) GetByID(_ context.Context, id string) (model.Group, error) {
	if g, ok := m.byID[id]; ok {
		return g, nil
	}
	return model.Group{}, model.ErrNotFound
}

func (m *memGroups) GetByName(_ context.Context, name string) (model.Group, error) {
	for _, g := range m.byID {
		if g.Name == name {
			return g, nil
		}
	}
	return model.Group{}, model.ErrNotFound
}

func (m *memGroups) Create(_ context.Context, name string) (model.Group, error) {
	if _, err := m.GetByName(context.Background(), name); err == nil {
		return model.Group{}, model.ErrConflict
	}
	g := model.Group{ID: "grp-" + name, Name: name}
	m.byID[g.ID] = g
	return g, nil
}

func (m *memGroups) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type recordingNotifier struct {
	users []model.User
	links []string
	err   error
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, u model.User, link string) error {
	n.users = append(n.users, u)
	n.links = append(n.links, link)
	return n.err
}

var testConfig = config.Config{
	AccessTTL:        15 * time.Minute,
	RefreshTTL:       7 * 24 * time.Hour,
	PasswordResetTTL: 15 * time.Minute,
	ResetLinkBase:    "http://localhost/reset?token=",
}

var testHasher = utils.NewPasswordHasher(bcrypt.MinCost)

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := testHasher.Hash(pw)
	require.NoError(t, err)
	return h
}

func newTestIssuer(t *testing.T, cfg config.Config) (*TokenIssuer, *fakeClock) {
	t.Helper()
	codec, err := utils.NewTokenCodec("test-secret", "HS256")
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewTokenIssuer(codec.WithClock(clock.Now), cfg), clock
}

type authFixture struct {
	svc      *AuthService
	users    *memUsers
	groups   *memGroups
	revoked  *repository.MemoryRevocationStore
	notifier *recordingNotifier
	issuer   *TokenIssuer
	clock    *fakeClock
}

// newAuthFixture seeds alice (user, g1), mod (moderator, g1), blocked
// (user, g1, blocked) and admin, all with password "passw0rd!".
func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	pw := mustHash(t, "passw0rd!")
	users := newMemUsers(
		model.User{ID: "u-alice", Username: "alice", Email: "alice@example.com", PhoneNumber: "+15550001",
			Role: model.RoleUser, GroupID: "g1", PasswordHash: pw},
		model.User{ID: "u-mod", Username: "mod", Email: "mod@example.com", PhoneNumber: "+15550002",
			Role: model.RoleModerator, GroupID: "g1", PasswordHash: pw},
		model.User{ID: "u-blocked", Username: "blocked", Email: "blocked@example.com", PhoneNumber: "+15550003",
			Role: model.RoleUser, GroupID: "g1", IsBlocked: true, PasswordHash: pw},
		model.User{ID: "u-admin", Username: "admin", Email: "admin@example.com", PhoneNumber: "+15550004",
			Role: model.RoleAdmin, GroupID: "base", PasswordHash: pw},
	)
	groups := newMemGroups(model.Group{ID: "g1", Name: "one"}, model.Group{ID: "base", Name: "base"})
	issuer, clock := newTestIssuer(t, testConfig)
	revoked := repository.NewMemoryRevocationStore()
	notifier := &recordingNotifier{}
	svc := NewAuthService(testConfig, users, groups, testHasher, issuer, revoked, notifier, logging.Nop())
	return &authFixture{svc: svc, users: users, groups: groups, revoked: revoked,
		notifier: notifier, issuer: issuer, clock: clock}
}
