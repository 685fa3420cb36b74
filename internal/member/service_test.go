package member

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/store"
	"github.com/alecgard/mergeflow/internal/store/memory"
)

type fakeInviter struct {
	sent []string
	fail bool
}

func (f *fakeInviter) Send(_ context.Context, email, _ string) invite.Result {
	f.sent = append(f.sent, email)
	return invite.Result{Success: !f.fail, Address: email}
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	svc     *Service
	invites *fakeInviter
	team    *domain.Team
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: memory.New(), invites: &fakeInviter{}}
	f.svc = NewService(f.store, f.invites, nil)
	f.team = &domain.Team{ID: id.New(), CompanyName: "Acme", OwnerEmail: "a@acme.com"}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error { return tx.Teams().Insert(f.ctx, f.team) }))
	return f
}

func (f *fixture) create(t *testing.T, email string) *domain.Member {
	t.Helper()
	res, err := f.svc.Create(f.ctx, CreateInput{
		TeamID: f.team.ID, Name: "Member " + email, Email: email, Company: "Acme",
		Role: "engineer", Type: "employee", InvitationLink: "https://app.example.com/signup",
	})
	require.NoError(t, err)
	return res.Member
}

func (f *fixture) reloadTeam(t *testing.T) *domain.Team {
	t.Helper()
	var team *domain.Team
	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		var err error
		team, err = tx.Teams().Get(f.ctx, f.team.ID)
		return err
	}))
	return team
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, " B@Acme.com")

	assert.Equal(t, "b@acme.com", m.Email)
	assert.Equal(t, domain.StatusActive, m.Status)
	assert.Equal(t, []string{"b@acme.com"}, f.invites.sent)
	assert.Equal(t, []id.ID{m.ID}, f.reloadTeam(t).Members)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.create(t, "b@acme.com")

	tests := []struct {
		name    string
		in      CreateInput
		wantErr error
	}{
		{"company mismatch", CreateInput{TeamID: f.team.ID, Name: "C", Email: "c@acme.com", Company: "Other", Role: "r", Type: "t"}, ErrCompanyMismatch},
		{"duplicate email", CreateInput{TeamID: f.team.ID, Name: "B", Email: "B@acme.com", Company: "Acme", Role: "r", Type: "t"}, ErrEmailInUse},
		{"missing name", CreateInput{TeamID: f.team.ID, Email: "c@acme.com", Company: "Acme", Role: "r", Type: "t"}, ErrNameRequired},
		{"bad status", CreateInput{TeamID: f.team.ID, Name: "C", Email: "c@acme.com", Company: "Acme", Role: "r", Type: "t", Status: "retired"}, ErrStatusInvalid},
		{"unknown team", CreateInput{TeamID: id.New(), Name: "C", Email: "c@acme.com", Company: "Acme", Role: "r", Type: "t"}, domain.ErrNotFound},
		{"bad email", CreateInput{TeamID: f.team.ID, Name: "C", Email: "nope", Company: "Acme", Role: "r", Type: "t"}, domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Len(t, f.reloadTeam(t).Members, 1)
}

func TestCreateKeepsMemberWhenInviteFails(t *testing.T) {
	f := newFixture(t)
	f.invites.fail = true
	res, err := f.svc.Create(f.ctx, CreateInput{
		TeamID: f.team.ID, Name: "B", Email: "b@acme.com", Company: "Acme", Role: "r", Type: "t",
		InvitationLink: "https://app.example.com",
	})
	require.NoError(t, err)
	assert.False(t, res.InviteSent)

	got, err := f.svc.Get(f.ctx, res.Member.ID, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, "b@acme.com", got.Email)
}

func TestGetScopesToTeam(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "b@acme.com")

	other := &domain.Team{ID: id.New(), CompanyName: "Other"}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error { return tx.Teams().Insert(f.ctx, other) }))

	_, err := f.svc.Get(f.ctx, m.ID, other.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Get(f.ctx, id.New(), f.team.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetDerivesSharedDocuments(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "b@acme.com")
	doc := &domain.Document{ID: id.New(), TeamID: f.team.ID, Name: "a.pdf",
		SharedWith: []domain.Share{{Member: m.ID, Permission: domain.PermissionView}}}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error { return tx.Documents().Insert(f.ctx, doc) }))

	got, err := f.svc.Get(f.ctx, m.ID, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, []id.ID{doc.ID}, got.SharedDocuments)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "b@acme.com")
	c := f.create(t, "c@acme.com")

	all, err := f.svc.List(f.ctx, f.team.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	subset, err := f.svc.List(f.ctx, f.team.ID, []id.ID{c.ID, id.New()})
	require.NoError(t, err)
	require.Len(t, subset, 1)
	assert.Equal(t, c.ID, subset[0].ID)
	assert.NotEqual(t, b.ID, subset[0].ID)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "b@acme.com")
	f.create(t, "c@acme.com")

	name := "Bea"
	status := domain.StatusSuspended
	got, err := f.svc.Update(f.ctx, m.ID, f.team.ID, UpdateInput{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Bea", got.Name)
	assert.Equal(t, domain.StatusSuspended, got.Status)
	assert.Equal(t, "b@acme.com", got.Email)

	taken := "C@acme.com"
	_, err = f.svc.Update(f.ctx, m.ID, f.team.ID, UpdateInput{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestUpdateByEmail(t *testing.T) {
	f := newFixture(t)
	f.create(t, "b@acme.com")

	name, photo := "Bea", "https://cdn.example.com/b.png"
	got, err := f.svc.UpdateByEmail(f.ctx, "B@acme.com", f.team.ID, UpdateInput{Name: &name, AvatarPreview: &photo})
	require.NoError(t, err)
	assert.Equal(t, "Bea", got.Name)
	assert.Equal(t, photo, got.AvatarURL)

	_, err = f.svc.UpdateByEmail(f.ctx, "nobody@acme.com", f.team.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMoveToGroup(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "b@acme.com")
	g1 := &domain.Group{ID: id.New(), TeamID: f.team.ID, Name: "G1", Members: []id.ID{m.ID}}
	g2 := &domain.Group{ID: id.New(), TeamID: f.team.ID, Name: "G2"}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Groups().Insert(f.ctx, g1))
		require.NoError(t, tx.Groups().Insert(f.ctx, g2))
		return tx.Members().SetGroup(f.ctx, []id.ID{m.ID}, g1.ID)
	}))

	moved, err := f.svc.MoveToGroup(f.ctx, m.ID, f.team.ID, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, g2.ID, moved.GroupID)

	// Moving twice must not duplicate the member.
	_, err = f.svc.MoveToGroup(f.ctx, m.ID, f.team.ID, g2.ID)
	require.NoError(t, err)

	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		old, err := tx.Groups().Get(f.ctx, g1.ID)
		require.NoError(t, err)
		assert.NotContains(t, old.Members, m.ID)
		cur, err := tx.Groups().Get(f.ctx, g2.ID)
		require.NoError(t, err)
		assert.Equal(t, []id.ID{m.ID}, cur.Members)
		got, err := tx.Members().Get(f.ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, g2.ID, got.GroupID)
		return nil
	}))

	_, err = f.svc.MoveToGroup(f.ctx, m.ID, f.team.ID, id.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, "b@acme.com")
	keep := f.create(t, "c@acme.com")

	g := &domain.Group{ID: id.New(), TeamID: f.team.ID, Name: "Eng", Members: []id.ID{m.ID, keep.ID}}
	doc := &domain.Document{ID: id.New(), TeamID: f.team.ID, Name: "a.pdf", SharedWith: []domain.Share{
		{Member: m.ID, Permission: domain.PermissionEdit},
		{Member: keep.ID, Permission: domain.PermissionView},
	}}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Groups().Insert(f.ctx, g))
		require.NoError(t, tx.Documents().Insert(f.ctx, doc))
		team, err := tx.Teams().Get(f.ctx, f.team.ID)
		require.NoError(t, err)
		team.Shared = []string{"b@acme.com", "z@acme.com"}
		team.DocShared = []domain.PendingShare{{Email: "b@acme.com", DocID: doc.ID}}
		return tx.Teams().Update(f.ctx, team)
	}))

	require.NoError(t, f.svc.Delete(f.ctx, m.ID, f.team.ID))

	team := f.reloadTeam(t)
	assert.Equal(t, []id.ID{keep.ID}, team.Members)
	assert.Equal(t, []string{"z@acme.com"}, team.Shared)
	assert.Empty(t, team.DocShared)
	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		gotDoc, err := tx.Documents().Get(f.ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.Share{{Member: keep.ID, Permission: domain.PermissionView}}, gotDoc.SharedWith)
		gotGroup, err := tx.Groups().Get(f.ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []id.ID{keep.ID}, gotGroup.Members)
		return nil
	}))

	assert.ErrorIs(t, f.svc.Delete(f.ctx, m.ID, f.team.ID), domain.ErrNotFound)
}

func TestDeleteMany(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "b@acme.com")
	c := f.create(t, "c@acme.com")
	uid := "firebase-uid-c"
	_, err := f.svc.Update(f.ctx, c.ID, f.team.ID, UpdateInput{UID: &uid})
	require.NoError(t, err)

	res, err := f.svc.DeleteMany(f.ctx, []id.ID{b.ID, c.ID, id.New()}, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedCount)
	assert.Equal(t, []string{uid}, res.UIDs)
	assert.Empty(t, f.reloadTeam(t).Members)

	_, err = f.svc.DeleteMany(f.ctx, nil, f.team.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
