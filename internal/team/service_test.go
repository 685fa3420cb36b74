package team

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

func (f *fakeInviter) SendBulk(_ context.Context, emails []string, _ string) error {
	f.sent = append(f.sent, emails...)
	if f.fail {
		return invite.ErrSendFailed
	}
	return nil
}

type denyAfter struct{ left int }

func (d *denyAfter) Allow(string) bool {
	d.left--
	return d.left >= 0
}

type fakeCleaner struct{ docs []*domain.Document }

func (f *fakeCleaner) RemoveObjects(_ context.Context, docs []*domain.Document) {
	f.docs = append(f.docs, docs...)
}

type fixture struct {
	ctx     context.Context
	store   *memory.Store
	svc     *Service
	invites *fakeInviter
	cleaner *fakeCleaner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: memory.New(), invites: &fakeInviter{}, cleaner: &fakeCleaner{}}
	f.svc = NewService(f.store, f.invites, nil, f.cleaner, nil)
	return f
}

func (f *fixture) acme(t *testing.T, shared ...string) *domain.Team {
	t.Helper()
	res, err := f.svc.Create(f.ctx, CreateInput{
		CompanyName: "Acme", OwnerID: "uid-a", OwnerEmail: "A@Acme.com", OwnerRole: "ceo",
		Shared: shared, InvitationLink: "https://app.example.com/signup",
	})
	require.NoError(t, err)
	return res.Team
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Create(f.ctx, CreateInput{
		CompanyName: " Acme ", OwnerID: "uid-a", OwnerEmail: "A@Acme.com", OwnerRole: "ceo",
		Shared: []string{"B@acme.com", "b@acme.com", "c@acme.com"}, InvitationLink: "https://app.example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme", res.Team.CompanyName)
	assert.Equal(t, "a@acme.com", res.Team.OwnerEmail)
	assert.Equal(t, domain.OwnerTypeAdmin, res.Team.OwnerType)
	assert.Equal(t, []string{"b@acme.com", "c@acme.com"}, res.Team.Shared)
	assert.True(t, res.InviteSent)
	assert.Equal(t, []string{"b@acme.com", "c@acme.com"}, f.invites.sent)

	_, err = f.svc.Create(f.ctx, CreateInput{CompanyName: "Acme", OwnerID: "x", OwnerEmail: "x@acme.com", OwnerRole: "r"})
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = f.svc.Create(f.ctx, CreateInput{CompanyName: "Other"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestCreateSurvivesInviteFailure(t *testing.T) {
	f := newFixture(t)
	f.invites.fail = true
	res, err := f.svc.Create(f.ctx, CreateInput{
		CompanyName: "Acme", OwnerID: "uid-a", OwnerEmail: "a@acme.com", OwnerRole: "ceo",
		Shared: []string{"b@acme.com"},
	})
	require.NoError(t, err)
	assert.False(t, res.InviteSent)

	_, err = f.svc.Get(f.ctx, res.Team.ID)
	assert.NoError(t, err)
}

func TestSendInvite(t *testing.T) {
	f := newFixture(t)
	team := f.acme(t)

	got, err := f.svc.SendInvite(f.ctx, team.ID, "New@acme.com", "https://app.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"new@acme.com"}, got.Shared)

	got, err = f.svc.SendInvite(f.ctx, team.ID, "new@acme.com", "https://app.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"new@acme.com"}, got.Shared)

	f.invites.fail = true
	_, err = f.svc.SendInvite(f.ctx, team.ID, "other@acme.com", "https://app.example.com")
	assert.ErrorIs(t, err, invite.ErrSendFailed)
	reloaded, err := f.svc.Get(f.ctx, team.ID)
	require.NoError(t, err)
	assert.NotContains(t, reloaded.Shared, "other@acme.com")

	_, err = f.svc.SendInvite(f.ctx, id.New(), "x@acme.com", "l")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendInviteThrottled(t *testing.T) {
	f := newFixture(t)
	f.svc.limiter = &denyAfter{left: 1}
	team := f.acme(t)

	_, err := f.svc.SendInvite(f.ctx, team.ID, "b@acme.com", "l")
	require.NoError(t, err)
	_, err = f.svc.SendInvite(f.ctx, team.ID, "c@acme.com", "l")
	assert.ErrorIs(t, err, ErrInviteThrottled)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestEnrollByCompanyName(t *testing.T) {
	f := newFixture(t)
	team := f.acme(t)
	doc := &domain.Document{ID: id.New(), TeamID: team.ID, Name: "a.pdf", ShowFile: true}
	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error { return tx.Documents().Insert(f.ctx, doc) }))

	enr, err := f.svc.FindOrEnrollByCompanyName(f.ctx, "Acme", "Bea", "B@acme.com")
	require.NoError(t, err)
	assert.False(t, enr.Existing)
	assert.Equal(t, domain.EmployeeRole, enr.Member.Role)
	assert.Equal(t, []id.ID{enr.Member.ID}, enr.Team.Members)

	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		d, err := tx.Documents().Get(f.ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, []domain.Share{{Member: enr.Member.ID, Permission: domain.PermissionView}}, d.SharedWith)
		return nil
	}))

	again, err := f.svc.FindOrEnrollByCompanyName(f.ctx, "Acme", "Bea", "b@acme.com")
	require.NoError(t, err)
	assert.True(t, again.Existing)
	assert.Equal(t, enr.Member.ID, again.Member.ID)

	_, err = f.svc.FindOrEnrollByCompanyName(f.ctx, "Nope", "Bea", "b@acme.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.FindOrEnrollByCompanyName(f.ctx, "Acme", "", "b@acme.com")
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestEnrollByEmailDomain(t *testing.T) {
	f := newFixture(t)
	team := f.acme(t, "b@acme.com")

	t.Run("no team for domain", func(t *testing.T) {
		enr, err := f.svc.FindOrEnrollByEmailDomain(f.ctx, "x@elsewhere.com", "X")
		require.NoError(t, err)
		assert.Nil(t, enr.Team)
		assert.Nil(t, enr.Member)
	})

	t.Run("not invited", func(t *testing.T) {
		_, err := f.svc.FindOrEnrollByEmailDomain(f.ctx, "z@acme.com", "Z")
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})

	t.Run("subdomain does not match", func(t *testing.T) {
		enr, err := f.svc.FindOrEnrollByEmailDomain(f.ctx, "b@eu.acme.com", "B")
		require.NoError(t, err)
		assert.Nil(t, enr.Team)
	})

	t.Run("invited", func(t *testing.T) {
		enr, err := f.svc.FindOrEnrollByEmailDomain(f.ctx, "B@ACME.com", "Bea")
		require.NoError(t, err)
		require.NotNil(t, enr.Member)
		assert.Equal(t, team.ID, enr.Team.ID)
		assert.True(t, enr.Member.IsVerified)
		assert.Empty(t, enr.Team.Shared)
	})

	t.Run("already a member", func(t *testing.T) {
		_, err := f.svc.SendInvite(f.ctx, team.ID, "b@acme.com", "l")
		require.NoError(t, err)
		_, err = f.svc.FindOrEnrollByEmailDomain(f.ctx, "b@acme.com", "Bea")
		assert.ErrorIs(t, err, ErrEmailInUse)
	})
}

func TestPendingShareResolvesOnEnrollment(t *testing.T) {
	for _, byDomain := range []bool{true, false} {
		name := "company name"
		if byDomain {
			name = "email domain"
		}
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			team := f.acme(t)
			shared := &domain.Document{ID: id.New(), TeamID: team.ID, Name: "a.pdf", ShowFile: true}
			require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
				require.NoError(t, tx.Documents().Insert(f.ctx, shared))
				tm, err := tx.Teams().Get(f.ctx, team.ID)
				require.NoError(t, err)
				tm.AddPending(domain.PendingShare{Email: "c@acme.com", DocID: shared.ID})
				return tx.Teams().Update(f.ctx, tm)
			}))

			var enr *Enrollment
			var err error
			if byDomain {
				enr, err = f.svc.FindOrEnrollByEmailDomain(f.ctx, "c@acme.com", "Cy")
			} else {
				enr, err = f.svc.FindOrEnrollByCompanyName(f.ctx, "Acme", "Cy", "c@acme.com")
			}
			require.NoError(t, err)
			require.NotNil(t, enr.Member)
			assert.Empty(t, enr.Team.DocShared)

			require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
				d, err := tx.Documents().Get(f.ctx, shared.ID)
				require.NoError(t, err)
				assert.Equal(t, []domain.Share{{Member: enr.Member.ID, Permission: domain.PermissionView}}, d.SharedWith)
				return nil
			}))
		})
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	team := f.acme(t)
	other, err := f.svc.Create(f.ctx, CreateInput{CompanyName: "Other", OwnerID: "o", OwnerEmail: "o@other.com", OwnerRole: "ceo"})
	require.NoError(t, err)

	require.NoError(t, f.store.InTx(f.ctx, func(tx store.Tx) error {
		for _, tid := range []id.ID{team.ID, other.Team.ID} {
			require.NoError(t, tx.Members().Insert(f.ctx, &domain.Member{ID: id.New(), TeamID: tid, Email: "m@x.com"}))
			require.NoError(t, tx.Groups().Insert(f.ctx, &domain.Group{ID: id.New(), TeamID: tid, Name: "G"}))
			require.NoError(t, tx.Documents().Insert(f.ctx, &domain.Document{ID: id.New(), TeamID: tid, Name: "d", URL: "https://cdn/d"}))
		}
		// An orphan the team lists do not mention is still removed.
		return tx.Documents().Insert(f.ctx, &domain.Document{ID: id.New(), TeamID: team.ID, Name: "orphan"})
	}))

	c, err := f.svc.Delete(f.ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, &Cascade{Members: 1, Groups: 1, Documents: 2}, c)
	assert.Len(t, f.cleaner.docs, 2)

	_, err = f.svc.Get(f.ctx, team.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, f.store.View(f.ctx, func(tx store.Tx) error {
		ms, err := tx.Members().ListByTeam(f.ctx, other.Team.ID)
		require.NoError(t, err)
		assert.Len(t, ms, 1)
		ds, err := tx.Documents().ListByTeam(f.ctx, other.Team.ID, false)
		require.NoError(t, err)
		assert.Len(t, ds, 1)
		return nil
	}))

	_, err = f.svc.Delete(f.ctx, team.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
