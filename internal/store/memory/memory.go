// Package memory implements store.Store in process memory. A transaction
// works on a deep copy of the data and swaps it in only when fn succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	data   *state
	events []audit.Event
	now    func() time.Time
}

func New() *Store {
	return &Store{data: newState(), now: func() time.Time { return time.Now().UTC() }}
}

type state struct {
	teams     map[id.ID]*domain.Team
	members   map[id.ID]*domain.Member
	groups    map[id.ID]*domain.Group
	documents map[id.ID]*domain.Document
}

func newState() *state {
	return &state{
		teams:     map[id.ID]*domain.Team{},
		members:   map[id.ID]*domain.Member{},
		groups:    map[id.ID]*domain.Group{},
		documents: map[id.ID]*domain.Document{},
	}
}

func (s *state) clone() *state {
	c := &state{
		teams:     make(map[id.ID]*domain.Team, len(s.teams)),
		members:   make(map[id.ID]*domain.Member, len(s.members)),
		groups:    make(map[id.ID]*domain.Group, len(s.groups)),
		documents: make(map[id.ID]*domain.Document, len(s.documents)),
	}
	for k, v := range s.teams {
		c.teams[k] = v.Clone()
	}
	for k, v := range s.members {
		c.members[k] = v.Clone()
	}
	for k, v := range s.groups {
		c.groups[k] = v.Clone()
	}
	for k, v := range s.documents {
		c.documents[k] = v.Clone()
	}
	return c
}

func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// View runs fn against a private copy, so writes made through it are discarded.
func (s *Store) View(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()
	return fn(&tx{st: work, now: s.now})
}

// InsertAuditEvents satisfies audit.BatchInserter.
func (s *Store) InsertAuditEvents(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// ListAuditEvents satisfies audit.Reader.
func (s *Store) ListAuditEvents(_ context.Context, teamID id.ID, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].TeamID == teamID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) Teams() store.TeamRepo         { return teamRepo{t} }
func (t *tx) Members() store.MemberRepo     { return memberRepo{t} }
func (t *tx) Groups() store.GroupRepo       { return groupRepo{t} }
func (t *tx) Documents() store.DocumentRepo { return documentRepo{t} }

// sorted returns clones of the values accepted by keep, ordered by id.
func sorted[T any](m map[id.ID]T, keep func(T) bool, clone func(T) T) []T {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		if v := m[k]; keep(v) {
			out = append(out, clone(v))
		}
	}
	return out
}

func deleteWhere[T any](m map[id.ID]T, match func(id.ID, T) bool) int64 {
	var n int64
	for k, v := range m {
		if match(k, v) {
			delete(m, k)
			n++
		}
	}
	return n
}

type teamRepo struct{ *tx }

func (r teamRepo) Insert(_ context.Context, t *domain.Team) error {
	if _, ok := r.st.teams[t.ID]; ok {
		return store.ErrDuplicate
	}
	for _, other := range r.st.teams {
		if other.CompanyName == t.CompanyName {
			return store.ErrDuplicate
		}
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.st.teams[t.ID] = t.Clone()
	return nil
}

func (r teamRepo) Get(_ context.Context, teamID id.ID) (*domain.Team, error) {
	t, ok := r.st.teams[teamID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.Clone(), nil
}

func (r teamRepo) GetByCompanyName(_ context.Context, name string) (*domain.Team, error) {
	for _, t := range r.all() {
		if t.CompanyName == name {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r teamRepo) FindByOwnerDomain(_ context.Context, d string) (*domain.Team, error) {
	for _, t := range r.all() {
		if t.OwnerDomain() == strings.ToLower(d) {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r teamRepo) List(_ context.Context) ([]*domain.Team, error) {
	return r.all(), nil
}

func (r teamRepo) all() []*domain.Team {
	return sorted(r.st.teams, func(*domain.Team) bool { return true }, (*domain.Team).Clone)
}

func (r teamRepo) Update(_ context.Context, t *domain.Team) error {
	cur, ok := r.st.teams[t.ID]
	if !ok {
		return store.ErrNotFound
	}
	for _, other := range r.st.teams {
		if other.ID != t.ID && other.CompanyName == t.CompanyName {
			return store.ErrDuplicate
		}
	}
	t.CreatedAt, t.UpdatedAt = cur.CreatedAt, r.now()
	r.st.teams[t.ID] = t.Clone()
	return nil
}

func (r teamRepo) Delete(_ context.Context, teamID id.ID) error {
	if _, ok := r.st.teams[teamID]; !ok {
		return store.ErrNotFound
	}
	delete(r.st.teams, teamID)
	return nil
}

type memberRepo struct{ *tx }

func (r memberRepo) emailTaken(m *domain.Member) bool {
	for _, other := range r.st.members {
		if other.ID != m.ID && other.TeamID == m.TeamID && other.Email == m.Email {
			return true
		}
	}
	return false
}

func (r memberRepo) Insert(_ context.Context, m *domain.Member) error {
	if _, ok := r.st.members[m.ID]; ok || r.emailTaken(m) {
		return store.ErrDuplicate
	}
	now := r.now()
	m.CreatedAt, m.UpdatedAt = now, now
	c := m.Clone()
	c.SharedDocuments = nil
	r.st.members[m.ID] = c
	return nil
}

func (r memberRepo) Get(_ context.Context, memberID id.ID) (*domain.Member, error) {
	m, ok := r.st.members[memberID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

func (r memberRepo) GetByEmail(_ context.Context, teamID id.ID, email string) (*domain.Member, error) {
	for _, m := range r.st.members {
		if m.TeamID == teamID && m.Email == email {
			return m.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r memberRepo) ListByTeam(_ context.Context, teamID id.ID) ([]*domain.Member, error) {
	return sorted(r.st.members, func(m *domain.Member) bool { return m.TeamID == teamID }, (*domain.Member).Clone), nil
}

func (r memberRepo) ListByIDs(_ context.Context, teamID id.ID, ids []id.ID) ([]*domain.Member, error) {
	return sorted(r.st.members, func(m *domain.Member) bool {
		return m.TeamID == teamID && id.Contains(ids, m.ID)
	}, (*domain.Member).Clone), nil
}

func (r memberRepo) Update(_ context.Context, m *domain.Member) error {
	cur, ok := r.st.members[m.ID]
	if !ok {
		return store.ErrNotFound
	}
	if r.emailTaken(m) {
		return store.ErrDuplicate
	}
	m.CreatedAt, m.UpdatedAt = cur.CreatedAt, r.now()
	c := m.Clone()
	c.SharedDocuments = nil
	r.st.members[m.ID] = c
	return nil
}

func (r memberRepo) SetGroup(_ context.Context, memberIDs []id.ID, groupID id.ID) error {
	for _, mid := range memberIDs {
		if m, ok := r.st.members[mid]; ok {
			m.GroupID = groupID
			m.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r memberRepo) ClearGroups(_ context.Context, groupIDs []id.ID) error {
	for _, m := range r.st.members {
		if !m.GroupID.IsZero() && id.Contains(groupIDs, m.GroupID) {
			m.GroupID = ""
			m.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r memberRepo) DeleteMany(_ context.Context, ids []id.ID) (int64, error) {
	return deleteWhere(r.st.members, func(k id.ID, _ *domain.Member) bool { return id.Contains(ids, k) }), nil
}

func (r memberRepo) DeleteByTeam(_ context.Context, teamID id.ID) (int64, error) {
	return deleteWhere(r.st.members, func(_ id.ID, m *domain.Member) bool { return m.TeamID == teamID }), nil
}

type groupRepo struct{ *tx }

func (r groupRepo) nameTaken(g *domain.Group) bool {
	for _, other := range r.st.groups {
		if other.ID != g.ID && other.TeamID == g.TeamID && other.Name == g.Name {
			return true
		}
	}
	return false
}

func (r groupRepo) Insert(_ context.Context, g *domain.Group) error {
	if _, ok := r.st.groups[g.ID]; ok || r.nameTaken(g) {
		return store.ErrDuplicate
	}
	now := r.now()
	g.CreatedAt, g.UpdatedAt = now, now
	c := g.Clone()
	c.SharedDocuments = nil
	r.st.groups[g.ID] = c
	return nil
}

func (r groupRepo) Get(_ context.Context, groupID id.ID) (*domain.Group, error) {
	g, ok := r.st.groups[groupID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return g.Clone(), nil
}

func (r groupRepo) GetByName(_ context.Context, teamID id.ID, name string) (*domain.Group, error) {
	for _, g := range r.st.groups {
		if g.TeamID == teamID && g.Name == name {
			return g.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (r groupRepo) ListByTeam(_ context.Context, teamID id.ID) ([]*domain.Group, error) {
	return sorted(r.st.groups, func(g *domain.Group) bool { return g.TeamID == teamID }, (*domain.Group).Clone), nil
}

func (r groupRepo) ListByIDs(_ context.Context, teamID id.ID, ids []id.ID) ([]*domain.Group, error) {
	return sorted(r.st.groups, func(g *domain.Group) bool {
		return g.TeamID == teamID && id.Contains(ids, g.ID)
	}, (*domain.Group).Clone), nil
}

func (r groupRepo) Update(_ context.Context, g *domain.Group) error {
	cur, ok := r.st.groups[g.ID]
	if !ok {
		return store.ErrNotFound
	}
	if r.nameTaken(g) {
		return store.ErrDuplicate
	}
	g.CreatedAt, g.UpdatedAt = cur.CreatedAt, r.now()
	c := g.Clone()
	c.SharedDocuments = nil
	r.st.groups[g.ID] = c
	return nil
}

func (r groupRepo) RemoveMembers(_ context.Context, memberIDs []id.ID) error {
	for _, g := range r.st.groups {
		if kept := id.Remove(g.Members, memberIDs...); len(kept) != len(g.Members) {
			g.Members = kept
			g.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r groupRepo) DeleteMany(_ context.Context, ids []id.ID) (int64, error) {
	return deleteWhere(r.st.groups, func(k id.ID, _ *domain.Group) bool { return id.Contains(ids, k) }), nil
}

func (r groupRepo) DeleteByTeam(_ context.Context, teamID id.ID) (int64, error) {
	return deleteWhere(r.st.groups, func(_ id.ID, g *domain.Group) bool { return g.TeamID == teamID }), nil
}

type documentRepo struct{ *tx }

func (r documentRepo) Insert(_ context.Context, d *domain.Document) error {
	if _, ok := r.st.documents[d.ID]; ok {
		return store.ErrDuplicate
	}
	now := r.now()
	d.CreatedAt, d.UpdatedAt = now, now
	r.st.documents[d.ID] = d.Clone()
	return nil
}

func (r documentRepo) Get(_ context.Context, documentID id.ID) (*domain.Document, error) {
	d, ok := r.st.documents[documentID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return d.Clone(), nil
}

func (r documentRepo) ListByIDs(_ context.Context, teamID id.ID, ids []id.ID) ([]*domain.Document, error) {
	return sorted(r.st.documents, func(d *domain.Document) bool {
		return (teamID.IsZero() || d.TeamID == teamID) && id.Contains(ids, d.ID)
	}, (*domain.Document).Clone), nil
}

func (r documentRepo) ListByTeam(_ context.Context, teamID id.ID, shownOnly bool) ([]*domain.Document, error) {
	return sorted(r.st.documents, func(d *domain.Document) bool {
		return d.TeamID == teamID && (!shownOnly || d.ShowFile)
	}, (*domain.Document).Clone), nil
}

func (r documentRepo) URLsInUse(_ context.Context, urls []string) ([]string, error) {
	var out []string
	for _, d := range r.st.documents {
		if slices.Contains(urls, d.URL) && !slices.Contains(out, d.URL) {
			out = append(out, d.URL)
		}
	}
	return out, nil
}

func (r documentRepo) SharedWithMember(_ context.Context, memberID id.ID) ([]id.ID, error) {
	var out []id.ID
	for _, d := range sorted(r.st.documents, func(d *domain.Document) bool { return d.ShareIndex(memberID) >= 0 }, (*domain.Document).Clone) {
		out = append(out, d.ID)
	}
	return out, nil
}

func (r documentRepo) SharedWithGroup(_ context.Context, groupID id.ID) ([]id.ID, error) {
	var out []id.ID
	for _, d := range sorted(r.st.documents, func(d *domain.Document) bool { return id.Contains(d.Groups, groupID) }, (*domain.Document).Clone) {
		out = append(out, d.ID)
	}
	return out, nil
}

func (r documentRepo) Update(_ context.Context, d *domain.Document) error {
	cur, ok := r.st.documents[d.ID]
	if !ok {
		return store.ErrNotFound
	}
	d.CreatedAt, d.UpdatedAt = cur.CreatedAt, r.now()
	r.st.documents[d.ID] = d.Clone()
	return nil
}

func (r documentRepo) GrantAll(_ context.Context, teamID id.ID, share domain.Share) error {
	for _, d := range r.st.documents {
		if d.TeamID == teamID && d.Grant(share.Member, share.Permission) {
			d.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r documentRepo) RemoveMemberShares(_ context.Context, memberIDs []id.ID) error {
	for _, d := range r.st.documents {
		if d.Revoke(memberIDs...) {
			d.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r documentRepo) RemoveGroups(_ context.Context, groupIDs []id.ID) error {
	for _, d := range r.st.documents {
		if kept := id.Remove(d.Groups, groupIDs...); len(kept) != len(d.Groups) {
			d.Groups = kept
			d.UpdatedAt = r.now()
		}
	}
	return nil
}

func (r documentRepo) DeleteMany(_ context.Context, ids []id.ID) (int64, error) {
	return deleteWhere(r.st.documents, func(k id.ID, _ *domain.Document) bool { return id.Contains(ids, k) }), nil
}

func (r documentRepo) DeleteByTeam(_ context.Context, teamID id.ID) (int64, error) {
	return deleteWhere(r.st.documents, func(_ id.ID, d *domain.Document) bool { return d.TeamID == teamID }), nil
}
