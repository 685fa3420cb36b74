package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/reconcile"
	"github.com/alecgard/mergeflow/internal/store/memory"
)

func TestSeedAcme(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newServices(st, invite.NewService(invite.LogMailer{}, nil), nil, nil, audit.Discard, 5)

	s, err := seedAcme(ctx, svc)
	require.NoError(t, err)

	docs, err := svc.documents.ListForTeam(ctx, s.Team.ID, "b@acme.com")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Specs", docs[0].Name)
	assert.Equal(t, int64(2048), docs[0].Size)

	owner, err := svc.documents.ListForTeam(ctx, s.Team.ID, "a@acme.com")
	require.NoError(t, err)
	assert.Len(t, owner, 1, "spec.pdf is hidden even from the owner listing")

	_, err = seedAcme(ctx, svc)
	assert.ErrorIs(t, err, errAlreadySeeded)

	// Seeded data is consistent: a reconcile pass finds nothing to repair.
	reports, err := reconcile.New(st).All(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Changed())
}
