package document

import (
	"context"
	"fmt"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/store"
)

// resolver expands group and member ids of one team's documents.
type resolver struct {
	groups  map[id.ID]*domain.Group
	members map[id.ID]*domain.Member
}

func newResolver(ctx context.Context, tx store.Tx, teamID id.ID) (*resolver, error) {
	groups, err := tx.Groups().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	members, err := tx.Members().ListByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	r := &resolver{
		groups:  make(map[id.ID]*domain.Group, len(groups)),
		members: make(map[id.ID]*domain.Member, len(members)),
	}
	for _, g := range groups {
		r.groups[g.ID] = g
	}
	for _, m := range members {
		r.members[m.ID] = m
	}
	return r, nil
}

// view drops references that no longer resolve.
func (r *resolver) view(d *domain.Document) *domain.DocumentView {
	v := &domain.DocumentView{
		Document:   d,
		Groups:     make([]domain.GroupBrief, 0, len(d.Groups)),
		SharedWith: make([]domain.SharedEntry, 0, len(d.SharedWith)),
	}
	for _, gid := range d.Groups {
		if g, ok := r.groups[gid]; ok {
			v.Groups = append(v.Groups, domain.GroupBrief{ID: g.ID, Name: g.Name})
		}
	}
	for _, sh := range d.SharedWith {
		if m, ok := r.members[sh.Member]; ok {
			v.SharedWith = append(v.SharedWith, domain.SharedEntry{Member: m.Brief(), Permission: sh.Permission})
		}
	}
	return v
}
