package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

// The Load helpers translate ErrNotFound into user-facing not-found errors
// and enforce team ownership.

func LoadTeam(ctx context.Context, tx Tx, teamID id.ID) (*domain.Team, error) {
	t, err := tx.Teams().Get(ctx, teamID)
	if errors.Is(err, ErrNotFound) {
		return nil, domain.NotFoundf("Team not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("loading team: %w", err)
	}
	return t, nil
}

func LoadMember(ctx context.Context, tx Tx, memberID, teamID id.ID) (*domain.Member, error) {
	m, err := tx.Members().Get(ctx, memberID)
	if errors.Is(err, ErrNotFound) || (err == nil && m.TeamID != teamID) {
		return nil, domain.NotFoundf("Member not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("loading member: %w", err)
	}
	return m, nil
}

func LoadGroup(ctx context.Context, tx Tx, groupID, teamID id.ID) (*domain.Group, error) {
	g, err := tx.Groups().Get(ctx, groupID)
	if errors.Is(err, ErrNotFound) || (err == nil && g.TeamID != teamID) {
		return nil, domain.NotFoundf("Group not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("loading group: %w", err)
	}
	return g, nil
}

// LoadDocument skips the ownership check when teamID is zero.
func LoadDocument(ctx context.Context, tx Tx, documentID, teamID id.ID) (*domain.Document, error) {
	d, err := tx.Documents().Get(ctx, documentID)
	if errors.Is(err, ErrNotFound) || (err == nil && !teamID.IsZero() && d.TeamID != teamID) {
		return nil, domain.NotFoundf("Document not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return d, nil
}

// FindMemberByEmail returns nil, nil when no member of the team has email.
func FindMemberByEmail(ctx context.Context, tx Tx, teamID id.ID, email string) (*domain.Member, error) {
	m, err := tx.Members().GetByEmail(ctx, teamID, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up member by email: %w", err)
	}
	return m, nil
}
