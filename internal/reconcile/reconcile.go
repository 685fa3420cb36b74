// Package reconcile repairs drift between the mirrored id lists and the
// fields they mirror. Member.GroupID and Document.TeamID are authoritative;
// Group.Members and the Team lists are rebuilt from them.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/store"
)

// Report counts the records one team's pass rewrote.
type Report struct {
	TeamID         id.ID `json:"teamId"`
	TeamRepaired   bool  `json:"teamRepaired"`
	GroupsRepaired int   `json:"groupsRepaired"`
	MembersCleared int   `json:"membersCleared"`
	DocsRepaired   int   `json:"documentsRepaired"`
	PendingDropped int   `json:"pendingDropped"`
}

// Changed reports whether the pass wrote anything.
func (r *Report) Changed() bool {
	return r.TeamRepaired || r.GroupsRepaired > 0 || r.MembersCleared > 0 || r.DocsRepaired > 0
}

type Reconciler struct {
	store store.Store
}

func New(st store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// All reconciles every team, one transaction per team.
func (r *Reconciler) All(ctx context.Context) ([]*Report, error) {
	var teamIDs []id.ID
	err := r.store.View(ctx, func(tx store.Tx) error {
		teams, err := tx.Teams().List(ctx)
		if err != nil {
			return fmt.Errorf("listing teams: %w", err)
		}
		for _, t := range teams {
			teamIDs = append(teamIDs, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		rep, err := r.Team(ctx, teamID)
		if err != nil {
			return reports, fmt.Errorf("reconciling team %s: %w", teamID, err)
		}
		if rep.Changed() {
			slog.Info("reconciled team", "team_id", teamID,
				"groups", rep.GroupsRepaired, "members", rep.MembersCleared,
				"documents", rep.DocsRepaired, "pending_dropped", rep.PendingDropped)
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Team reconciles one team.
func (r *Reconciler) Team(ctx context.Context, teamID id.ID) (*Report, error) {
	rep := &Report{TeamID: teamID}
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		*rep = Report{TeamID: teamID}
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		members, err := tx.Members().ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		groups, err := tx.Groups().ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("listing groups: %w", err)
		}
		docs, err := tx.Documents().ListByTeam(ctx, teamID, false)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}

		groupIDs := idsOf(groups, func(g *domain.Group) id.ID { return g.ID })
		memberIDs := idsOf(members, func(m *domain.Member) id.ID { return m.ID })
		docIDs := idsOf(docs, func(d *domain.Document) id.ID { return d.ID })

		if err := r.clearDanglingGroups(ctx, tx, rep, members, groupIDs); err != nil {
			return err
		}
		if err := r.rebuildGroups(ctx, tx, rep, groups, members); err != nil {
			return err
		}
		if err := r.repairDocuments(ctx, tx, rep, docs, groupIDs, memberIDs); err != nil {
			return err
		}
		return r.repairTeam(ctx, tx, rep, team, memberIDs, groupIDs, docIDs)
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

func (r *Reconciler) clearDanglingGroups(ctx context.Context, tx store.Tx, rep *Report, members []*domain.Member, groupIDs []id.ID) error {
	var dangling []id.ID
	for _, m := range members {
		if !m.GroupID.IsZero() && !id.Contains(groupIDs, m.GroupID) {
			dangling = append(dangling, m.ID)
			m.GroupID = ""
		}
	}
	if len(dangling) == 0 {
		return nil
	}
	if err := tx.Members().SetGroup(ctx, dangling, ""); err != nil {
		return fmt.Errorf("clearing dangling groups: %w", err)
	}
	rep.MembersCleared = len(dangling)
	return nil
}

func (r *Reconciler) rebuildGroups(ctx context.Context, tx store.Tx, rep *Report, groups []*domain.Group, members []*domain.Member) error {
	for _, g := range groups {
		var want []id.ID
		for _, m := range members {
			if m.GroupID == g.ID {
				want = append(want, m.ID)
			}
		}
		next := rebuild(g.Members, want)
		if slices.Equal(next, g.Members) {
			continue
		}
		g.Members = next
		if err := tx.Groups().Update(ctx, g); err != nil {
			return fmt.Errorf("rebuilding group %s: %w", g.ID, err)
		}
		rep.GroupsRepaired++
	}
	return nil
}

func (r *Reconciler) repairDocuments(ctx context.Context, tx store.Tx, rep *Report, docs []*domain.Document, groupIDs, memberIDs []id.ID) error {
	files := make([]id.ID, 0, len(docs))
	sizes := make(map[id.ID]int64, len(docs))
	for _, d := range docs {
		if !d.IsFolder() {
			files = append(files, d.ID)
			sizes[d.ID] = d.Size
		}
	}

	for _, d := range docs {
		changed := false

		groups := slices.DeleteFunc(slices.Clone(d.Groups), func(g id.ID) bool { return !id.Contains(groupIDs, g) })
		if groups = id.Unique(groups); !slices.Equal(groups, d.Groups) {
			d.Groups, changed = groups, true
		}

		var shares []domain.Share
		for _, s := range d.SharedWith {
			if id.Contains(memberIDs, s.Member) && !slices.ContainsFunc(shares, func(o domain.Share) bool { return o.Member == s.Member }) {
				shares = append(shares, s)
			}
		}
		if len(shares) != len(d.SharedWith) {
			d.SharedWith, changed = shares, true
		}

		if d.IsFolder() {
			children := id.Unique(slices.DeleteFunc(slices.Clone(d.Files), func(f id.ID) bool { return !id.Contains(files, f) }))
			if !slices.Equal(children, d.Files) {
				d.Files, changed = children, true
			}
			if d.TotalFiles != len(d.Files) {
				d.TotalFiles, changed = len(d.Files), true
			}
			var size int64
			for _, f := range d.Files {
				size += sizes[f]
			}
			if d.Size != size {
				d.Size, changed = size, true
			}
		}

		if !changed {
			continue
		}
		if d.SharedWith == nil {
			d.SharedWith = []domain.Share{}
		}
		if err := tx.Documents().Update(ctx, d); err != nil {
			return fmt.Errorf("repairing document %s: %w", d.ID, err)
		}
		rep.DocsRepaired++
	}
	return nil
}

func (r *Reconciler) repairTeam(ctx context.Context, tx store.Tx, rep *Report, team *domain.Team, memberIDs, groupIDs, docIDs []id.ID) error {
	members := rebuild(team.Members, memberIDs)
	groups := rebuild(team.Groups, groupIDs)
	docs := rebuild(team.Documents, docIDs)

	pending := slices.DeleteFunc(slices.Clone(team.DocShared), func(p domain.PendingShare) bool {
		return !id.Contains(docIDs, p.DocID)
	})
	rep.PendingDropped = len(team.DocShared) - len(pending)

	if slices.Equal(members, team.Members) && slices.Equal(groups, team.Groups) &&
		slices.Equal(docs, team.Documents) && rep.PendingDropped == 0 {
		return nil
	}
	team.Members, team.Groups, team.Documents, team.DocShared = members, groups, docs, pending
	if err := tx.Teams().Update(ctx, team); err != nil {
		return fmt.Errorf("repairing team lists: %w", err)
	}
	rep.TeamRepaired = true
	return nil
}

// rebuild keeps the order of cur for ids still in want and appends the rest
// of want in its own order.
func rebuild(cur, want []id.ID) []id.ID {
	out := make([]id.ID, 0, len(want))
	for _, v := range cur {
		if id.Contains(want, v) && !id.Contains(out, v) {
			out = append(out, v)
		}
	}
	for _, v := range want {
		if !id.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func idsOf[T any](items []T, key func(T) id.ID) []id.ID {
	out := make([]id.ID, len(items))
	for i, v := range items {
		out[i] = key(v)
	}
	return out
}
