package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/store"
	"github.com/alecgard/mergeflow/internal/store/memory"
)

func TestRebuild(t *testing.T) {
	tests := []struct {
		name      string
		cur, want []id.ID
		expect    []id.ID
	}{
		{"unchanged", []id.ID{"a", "b"}, []id.ID{"b", "a"}, []id.ID{"a", "b"}},
		{"drops stale", []id.ID{"a", "x", "b"}, []id.ID{"a", "b"}, []id.ID{"a", "b"}},
		{"appends missing", []id.ID{"b"}, []id.ID{"a", "b", "c"}, []id.ID{"b", "a", "c"}},
		{"dedupes", []id.ID{"a", "a"}, []id.ID{"a"}, []id.ID{"a"}},
		{"empty", nil, nil, []id.ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, rebuild(tt.cur, tt.want))
		})
	}
}

func TestTeamRepairsDrift(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	teamID := id.New()
	eng := &domain.Group{ID: id.New(), TeamID: teamID, Name: "Eng"}
	ops := &domain.Group{ID: id.New(), TeamID: teamID, Name: "Ops"}
	goneGroup, goneMember, goneDoc := id.New(), id.New(), id.New()

	b := &domain.Member{ID: id.New(), TeamID: teamID, Email: "b@acme.com", GroupID: eng.ID}
	c := &domain.Member{ID: id.New(), TeamID: teamID, Email: "c@acme.com", GroupID: goneGroup}
	// Listed by both groups, but its group id says Eng.
	d := &domain.Member{ID: id.New(), TeamID: teamID, Email: "d@acme.com", GroupID: eng.ID}
	eng.Members = []id.ID{d.ID, goneMember}
	ops.Members = []id.ID{d.ID}

	file := &domain.Document{ID: id.New(), TeamID: teamID, Name: "a.pdf", Size: 12}
	folder := &domain.Document{ID: id.New(), TeamID: teamID, Name: "Specs", Type: domain.TypeFolder,
		Files: []id.ID{file.ID, goneDoc}, TotalFiles: 7, Size: 99,
		Groups: []id.ID{eng.ID, goneGroup},
		SharedWith: []domain.Share{
			{Member: b.ID, Permission: domain.PermissionEdit},
			{Member: goneMember, Permission: domain.PermissionView},
			{Member: b.ID, Permission: domain.PermissionView},
		}}

	team := &domain.Team{
		ID: teamID, CompanyName: "Acme", OwnerEmail: "a@acme.com",
		Members:   []id.ID{goneMember, b.ID},
		Groups:    []id.ID{eng.ID},
		Documents: []id.ID{folder.ID, goneDoc},
		DocShared: []domain.PendingShare{{Email: "x@acme.com", DocID: goneDoc}, {Email: "y@acme.com", DocID: file.ID}},
	}

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Teams().Insert(ctx, team))
		for _, g := range []*domain.Group{eng, ops} {
			require.NoError(t, tx.Groups().Insert(ctx, g))
		}
		for _, m := range []*domain.Member{b, c, d} {
			require.NoError(t, tx.Members().Insert(ctx, m))
		}
		for _, doc := range []*domain.Document{file, folder} {
			require.NoError(t, tx.Documents().Insert(ctx, doc))
		}
		return nil
	}))

	rep, err := New(st).Team(ctx, teamID)
	require.NoError(t, err)
	assert.True(t, rep.TeamRepaired)
	assert.Equal(t, 2, rep.GroupsRepaired)
	assert.Equal(t, 1, rep.MembersCleared)
	assert.Equal(t, 1, rep.DocsRepaired)
	assert.Equal(t, 1, rep.PendingDropped)

	require.NoError(t, st.View(ctx, func(tx store.Tx) error {
		got, err := tx.Teams().Get(ctx, teamID)
		require.NoError(t, err)
		assert.Equal(t, []id.ID{b.ID, c.ID, d.ID}, got.Members)
		assert.Equal(t, []id.ID{eng.ID, ops.ID}, got.Groups)
		assert.Equal(t, []id.ID{folder.ID, file.ID}, got.Documents)
		assert.Equal(t, []domain.PendingShare{{Email: "y@acme.com", DocID: file.ID}}, got.DocShared)

		gotEng, err := tx.Groups().Get(ctx, eng.ID)
		require.NoError(t, err)
		assert.Equal(t, []id.ID{d.ID, b.ID}, gotEng.Members)
		gotOps, err := tx.Groups().Get(ctx, ops.ID)
		require.NoError(t, err)
		assert.Empty(t, gotOps.Members)

		gotC, err := tx.Members().Get(ctx, c.ID)
		require.NoError(t, err)
		assert.True(t, gotC.GroupID.IsZero())

		gotFolder, err := tx.Documents().Get(ctx, folder.ID)
		require.NoError(t, err)
		assert.Equal(t, []id.ID{file.ID}, gotFolder.Files)
		assert.Equal(t, 1, gotFolder.TotalFiles)
		assert.Equal(t, int64(12), gotFolder.Size, "size is the sum of the surviving files")
		assert.Equal(t, []id.ID{eng.ID}, gotFolder.Groups)
		assert.Equal(t, []domain.Share{{Member: b.ID, Permission: domain.PermissionEdit}}, gotFolder.SharedWith)
		return nil
	}))

	again, err := New(st).Team(ctx, teamID)
	require.NoError(t, err)
	assert.False(t, again.Changed(), "a second pass finds nothing to repair")
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Teams().Insert(ctx, &domain.Team{ID: id.New(), CompanyName: "Acme"}))
		return tx.Teams().Insert(ctx, &domain.Team{ID: id.New(), CompanyName: "Globex"})
	}))

	reports, err := New(st).All(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	for _, r := range reports {
		assert.False(t, r.Changed())
	}
}
