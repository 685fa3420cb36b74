// Package group manages the mutually exclusive member groups of a team.
//
// A member is in at most one group. Group.Members and Member.GroupID mirror
// each other and every method here updates both in one transaction.
package group

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/store"
)

var (
	ErrNameRequired     = domain.Validationf("Group name is required.")
	ErrGroupIDsRequired = domain.Validationf("Group ids are required.")
	ErrNameTaken        = domain.Conflictf("A group with this name already exists.")
	ErrMemberNotInTeam  = domain.NotFoundf("Member not found in this team.")
	ErrNotFound         = domain.NotFoundf("Group not found.")
)

// UpdateInput holds a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name    *string
	Members *[]id.ID
}

type Service struct {
	store store.Store
	audit audit.Recorder
}

func NewService(st store.Store, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Discard
	}
	return &Service{store: st, audit: rec}
}

// Create makes a group holding memberIDs, moving them out of any group they
// were in.
func (s *Service) Create(ctx context.Context, teamID id.ID, name string, memberIDs []id.ID) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	g := &domain.Group{ID: id.New(), TeamID: teamID, Name: name, Members: id.Unique(memberIDs)}

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if err := ensureNameFree(ctx, tx, teamID, "", name); err != nil {
			return err
		}
		if err := ensureTeamMembers(ctx, tx, teamID, g.Members); err != nil {
			return err
		}
		if err := tx.Groups().RemoveMembers(ctx, g.Members); err != nil {
			return fmt.Errorf("evicting members from other groups: %w", err)
		}
		if err := tx.Groups().Insert(ctx, g); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrNameTaken
			}
			return fmt.Errorf("creating group: %w", err)
		}
		if err := tx.Members().SetGroup(ctx, g.Members, g.ID); err != nil {
			return fmt.Errorf("setting member group: %w", err)
		}
		team.Groups = id.Add(team.Groups, g.ID)
		if err := tx.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("adding group to team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.GroupCreated, g.ID, g.Name))
	return g, nil
}

// List returns the team's groups with their members resolved.
func (s *Service) List(ctx context.Context, teamID id.ID) ([]*domain.GroupView, error) {
	var views []*domain.GroupView
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		groups, err := tx.Groups().ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("listing groups: %w", err)
		}
		members, err := tx.Members().ListByTeam(ctx, teamID)
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		byID := make(map[id.ID]*domain.Member, len(members))
		for _, m := range members {
			byID[m.ID] = m
		}

		views = make([]*domain.GroupView, 0, len(groups))
		for _, g := range groups {
			v := &domain.GroupView{Group: g, Members: []domain.MemberBrief{}}
			for _, mid := range g.Members {
				if m, ok := byID[mid]; ok {
					v.Members = append(v.Members, m.Brief())
				}
			}
			views = append(views, v)
		}
		return nil
	})
	return views, err
}

// Get returns the group with the documents shared with it.
func (s *Service) Get(ctx context.Context, groupID, teamID id.ID) (*domain.Group, error) {
	var g *domain.Group
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if g, err = store.LoadGroup(ctx, tx, groupID, teamID); err != nil {
			return err
		}
		g.SharedDocuments, err = tx.Documents().SharedWithGroup(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("listing shared documents: %w", err)
		}
		return nil
	})
	return g, err
}

// Update renames the group and/or replaces its member list.
func (s *Service) Update(ctx context.Context, groupID, teamID id.ID, in UpdateInput) (*domain.Group, error) {
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if n == "" {
			return nil, ErrNameRequired
		}
		in.Name = &n
	}
	var g *domain.Group
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if g, err = store.LoadGroup(ctx, tx, groupID, teamID); err != nil {
			return err
		}

		if in.Members != nil {
			next := id.Unique(*in.Members)
			if err := ensureTeamMembers(ctx, tx, teamID, next); err != nil {
				return err
			}
			if err := tx.Groups().RemoveMembers(ctx, next); err != nil {
				return fmt.Errorf("evicting members from other groups: %w", err)
			}
			// Clear everyone pointing here, then point the new list back.
			if err := tx.Members().ClearGroups(ctx, []id.ID{g.ID}); err != nil {
				return fmt.Errorf("clearing dropped members: %w", err)
			}
			if err := tx.Members().SetGroup(ctx, next, g.ID); err != nil {
				return fmt.Errorf("setting member group: %w", err)
			}
			g.Members = next
		}

		if in.Name != nil && *in.Name != g.Name {
			if err := ensureNameFree(ctx, tx, teamID, g.ID, *in.Name); err != nil {
				return err
			}
			g.Name = *in.Name
		}

		if err := tx.Groups().Update(ctx, g); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrNameTaken
			}
			return fmt.Errorf("updating group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.GroupUpdated, g.ID, g.Name))
	return g, nil
}

// RemoveFromGroup takes exactly memberID out of the group.
func (s *Service) RemoveFromGroup(ctx context.Context, groupID, teamID, memberID id.ID) (*domain.Group, error) {
	var g *domain.Group
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if g, err = store.LoadGroup(ctx, tx, groupID, teamID); err != nil {
			return err
		}
		m, err := store.LoadMember(ctx, tx, memberID, teamID)
		if err != nil {
			return err
		}
		g.Members = id.Remove(g.Members, m.ID)
		if err := tx.Groups().Update(ctx, g); err != nil {
			return fmt.Errorf("updating group: %w", err)
		}
		if m.GroupID == g.ID {
			if err := tx.Members().SetGroup(ctx, []id.ID{m.ID}, ""); err != nil {
				return fmt.Errorf("clearing member group: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.GroupMemberRemoved, g.ID, memberID.String()))
	return g, nil
}

// Delete removes one group of the team.
func (s *Service) Delete(ctx context.Context, groupID, teamID id.ID) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if _, err := store.LoadGroup(ctx, tx, groupID, teamID); err != nil {
			return err
		}
		_, err = removeGroups(ctx, tx, team, []id.ID{groupID})
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Record(audit.New(teamID, audit.GroupDeleted, groupID, ""))
	return nil
}

// DeleteMany removes the listed groups of the team and returns how many
// existed.
func (s *Service) DeleteMany(ctx context.Context, groupIDs []id.ID, teamID id.ID) (int64, error) {
	if len(groupIDs) == 0 {
		return 0, ErrGroupIDsRequired
	}
	var n int64
	var deleted []id.ID
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		groups, err := tx.Groups().ListByIDs(ctx, teamID, groupIDs)
		if err != nil {
			return fmt.Errorf("loading groups: %w", err)
		}
		for _, g := range groups {
			deleted = append(deleted, g.ID)
		}
		if len(deleted) == 0 {
			return nil
		}
		n, err = removeGroups(ctx, tx, team, deleted)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, gid := range deleted {
		s.audit.Record(audit.New(teamID, audit.GroupDeleted, gid, ""))
	}
	return n, nil
}

// removeGroups deletes groups, clears their members and strips them from
// the team and from every document.
func removeGroups(ctx context.Context, tx store.Tx, team *domain.Team, ids []id.ID) (int64, error) {
	n, err := tx.Groups().DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting groups: %w", err)
	}
	team.Groups = id.Remove(team.Groups, ids...)
	if err := tx.Teams().Update(ctx, team); err != nil {
		return 0, fmt.Errorf("removing groups from team: %w", err)
	}
	if err := tx.Members().ClearGroups(ctx, ids); err != nil {
		return 0, fmt.Errorf("clearing member groups: %w", err)
	}
	if err := tx.Documents().RemoveGroups(ctx, ids); err != nil {
		return 0, fmt.Errorf("removing groups from documents: %w", err)
	}
	return n, nil
}

func ensureNameFree(ctx context.Context, tx store.Tx, teamID, self id.ID, name string) error {
	other, err := tx.Groups().GetByName(ctx, teamID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking group name: %w", err)
	}
	if other.ID != self {
		return ErrNameTaken
	}
	return nil
}

func ensureTeamMembers(ctx context.Context, tx store.Tx, teamID id.ID, memberIDs []id.ID) error {
	if len(memberIDs) == 0 {
		return nil
	}
	found, err := tx.Members().ListByIDs(ctx, teamID, memberIDs)
	if err != nil {
		return fmt.Errorf("loading members: %w", err)
	}
	if len(found) != len(memberIDs) {
		return ErrMemberNotInTeam
	}
	return nil
}
