// Package member manages the members of a team.
package member

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/store"
)

var (
	ErrNameRequired      = domain.Validationf("Name is required.")
	ErrRoleRequired      = domain.Validationf("Role and type are required.")
	ErrCompanyMismatch   = domain.Validationf("Company name should be the same as the team name.")
	ErrStatusInvalid     = domain.Validationf("Status must be one of: active, inactive, pending, suspended.")
	ErrMemberIDsRequired = domain.Validationf("Member ids are required.")
	ErrEmailInUse        = domain.Conflictf("The specified email address is already in use.")
	ErrNotFound          = domain.NotFoundf("Member not found.")
)

// Inviter sends one invitation email.
type Inviter interface {
	Send(ctx context.Context, email, invitationLink string) invite.Result
}

type Service struct {
	store   store.Store
	invites Inviter
	audit   audit.Recorder
}

func NewService(st store.Store, invites Inviter, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Discard
	}
	return &Service{store: st, invites: invites, audit: rec}
}

// Create adds a member to the team and, when a link is given, invites them
// after the member is committed. Invite failure does not undo the member.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	email, err := validateCreate(&in)
	if err != nil {
		return nil, err
	}

	m := &domain.Member{
		ID:          id.New(),
		TeamID:      in.TeamID,
		Name:        strings.TrimSpace(in.Name),
		Email:       email,
		UID:         in.UID,
		Company:     in.Company,
		Role:        in.Role,
		Type:        in.Type,
		PhoneNumber: in.PhoneNumber,
		AvatarURL:   in.AvatarPreview,
		IsVerified:  in.IsVerified,
		Status:      in.Status,
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, in.TeamID)
		if err != nil {
			return err
		}
		if team.CompanyName != in.Company {
			return ErrCompanyMismatch
		}
		existing, err := store.FindMemberByEmail(ctx, tx, team.ID, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailInUse
		}
		if err := tx.Members().Insert(ctx, m); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrEmailInUse
			}
			return fmt.Errorf("creating member: %w", err)
		}
		team.Members = id.Add(team.Members, m.ID)
		if err := tx.Teams().Update(ctx, team); err != nil {
			return fmt.Errorf("adding member to team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(m.TeamID, audit.MemberCreated, m.ID, m.Email))

	res := &CreateResult{Member: m}
	if in.InvitationLink != "" && s.invites != nil {
		res.InviteSent = s.invites.Send(ctx, m.Email, in.InvitationLink).Success
	}
	return res, nil
}

// List returns the team's members, restricted to memberIDs when non-empty.
func (s *Service) List(ctx context.Context, teamID id.ID, memberIDs []id.ID) ([]*domain.Member, error) {
	var members []*domain.Member
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if len(memberIDs) > 0 {
			members, err = tx.Members().ListByIDs(ctx, teamID, memberIDs)
		} else {
			members, err = tx.Members().ListByTeam(ctx, teamID)
		}
		if err != nil {
			return fmt.Errorf("listing members: %w", err)
		}
		return nil
	})
	return members, err
}

// Get returns the member with its shared documents filled in.
func (s *Service) Get(ctx context.Context, memberID, teamID id.ID) (*domain.Member, error) {
	var m *domain.Member
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if m, err = store.LoadMember(ctx, tx, memberID, teamID); err != nil {
			return err
		}
		m.SharedDocuments, err = tx.Documents().SharedWithMember(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("listing shared documents: %w", err)
		}
		return nil
	})
	return m, err
}

// Update applies a partial update to a member of the team.
func (s *Service) Update(ctx context.Context, memberID, teamID id.ID, in UpdateInput) (*domain.Member, error) {
	if err := validateUpdate(&in); err != nil {
		return nil, err
	}
	var m *domain.Member
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if m, err = store.LoadMember(ctx, tx, memberID, teamID); err != nil {
			return err
		}
		return s.apply(ctx, tx, m, in)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.MemberUpdated, m.ID, ""))
	return m, nil
}

// UpdateByEmail is Update addressed by email, used by profile screens.
func (s *Service) UpdateByEmail(ctx context.Context, email string, teamID id.ID, in UpdateInput) (*domain.Member, error) {
	addr, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validateUpdate(&in); err != nil {
		return nil, err
	}
	var m *domain.Member
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if m, err = store.FindMemberByEmail(ctx, tx, teamID, addr); err != nil {
			return err
		}
		if m == nil {
			return ErrNotFound
		}
		return s.apply(ctx, tx, m, in)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.MemberUpdated, m.ID, ""))
	return m, nil
}

func (s *Service) apply(ctx context.Context, tx store.Tx, m *domain.Member, in UpdateInput) error {
	if in.Email != nil && *in.Email != m.Email {
		other, err := store.FindMemberByEmail(ctx, tx, m.TeamID, *in.Email)
		if err != nil {
			return err
		}
		if other != nil {
			return ErrEmailInUse
		}
		m.Email = *in.Email
	}
	if in.Name != nil {
		m.Name = *in.Name
	}
	if in.UID != nil {
		m.UID = *in.UID
	}
	if in.Role != nil {
		m.Role = *in.Role
	}
	if in.Type != nil {
		m.Type = *in.Type
	}
	if in.PhoneNumber != nil {
		m.PhoneNumber = *in.PhoneNumber
	}
	if in.AvatarPreview != nil {
		m.AvatarURL = *in.AvatarPreview
	}
	if in.IsVerified != nil {
		m.IsVerified = *in.IsVerified
	}
	if in.Status != nil {
		m.Status = *in.Status
	}
	if err := tx.Members().Update(ctx, m); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrEmailInUse
		}
		return fmt.Errorf("updating member: %w", err)
	}
	return nil
}

// MoveToGroup makes groupID the member's only group.
func (s *Service) MoveToGroup(ctx context.Context, memberID, teamID, groupID id.ID) (*domain.Member, error) {
	var m *domain.Member
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if m, err = store.LoadMember(ctx, tx, memberID, teamID); err != nil {
			return err
		}
		g, err := store.LoadGroup(ctx, tx, groupID, teamID)
		if err != nil {
			return err
		}
		if err := tx.Groups().RemoveMembers(ctx, []id.ID{m.ID}); err != nil {
			return fmt.Errorf("leaving previous group: %w", err)
		}
		g.Members = id.Add(g.Members, m.ID)
		if err := tx.Groups().Update(ctx, g); err != nil {
			return fmt.Errorf("joining group: %w", err)
		}
		if err := tx.Members().SetGroup(ctx, []id.ID{m.ID}, g.ID); err != nil {
			return fmt.Errorf("setting member group: %w", err)
		}
		m.GroupID = g.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.MemberMoved, m.ID, groupID.String()))
	return m, nil
}

// Delete removes one member of the team and every reference to it.
func (s *Service) Delete(ctx context.Context, memberID, teamID id.ID) error {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		m, err := store.LoadMember(ctx, tx, memberID, teamID)
		if err != nil {
			return err
		}
		_, err = removeMembers(ctx, tx, team, []*domain.Member{m})
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Record(audit.New(teamID, audit.MemberDeleted, memberID, ""))
	return nil
}

// DeleteMany removes the listed members of the team. Ids of other teams
// or unknown ids are ignored.
func (s *Service) DeleteMany(ctx context.Context, memberIDs []id.ID, teamID id.ID) (*DeleteResult, error) {
	if len(memberIDs) == 0 {
		return nil, ErrMemberIDsRequired
	}
	res := &DeleteResult{UIDs: []string{}}
	var deleted []*domain.Member
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		team, err := store.LoadTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		deleted, err = tx.Members().ListByIDs(ctx, teamID, memberIDs)
		if err != nil {
			return fmt.Errorf("loading members: %w", err)
		}
		if len(deleted) == 0 {
			return nil
		}
		res.DeletedCount, err = removeMembers(ctx, tx, team, deleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, m := range deleted {
		if m.UID != "" {
			res.UIDs = append(res.UIDs, m.UID)
		}
		s.audit.Record(audit.New(teamID, audit.MemberDeleted, m.ID, ""))
	}
	return res, nil
}

// removeMembers deletes members and strips them from the team lists, every
// document's grants and every group.
func removeMembers(ctx context.Context, tx store.Tx, team *domain.Team, members []*domain.Member) (int64, error) {
	ids := make([]id.ID, len(members))
	emails := make([]string, len(members))
	for i, m := range members {
		ids[i], emails[i] = m.ID, m.Email
	}

	n, err := tx.Members().DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting members: %w", err)
	}
	team.ForgetEmails(emails...)
	team.Members = id.Remove(team.Members, ids...)
	if err := tx.Teams().Update(ctx, team); err != nil {
		return 0, fmt.Errorf("removing members from team: %w", err)
	}
	if err := tx.Documents().RemoveMemberShares(ctx, ids); err != nil {
		return 0, fmt.Errorf("removing document shares: %w", err)
	}
	if err := tx.Groups().RemoveMembers(ctx, ids); err != nil {
		return 0, fmt.Errorf("removing members from groups: %w", err)
	}
	return n, nil
}

// validateCreate fills defaults and returns the normalized email.
func validateCreate(in *CreateInput) (string, error) {
	if strings.TrimSpace(in.Name) == "" {
		return "", ErrNameRequired
	}
	if strings.TrimSpace(in.Role) == "" || strings.TrimSpace(in.Type) == "" {
		return "", ErrRoleRequired
	}
	if in.Status == "" {
		in.Status = domain.StatusActive
	}
	if !in.Status.Valid() {
		return "", ErrStatusInvalid
	}
	return domain.NormalizeEmail(in.Email)
}

// validateUpdate normalizes the email in place.
func validateUpdate(in *UpdateInput) error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return ErrNameRequired
	}
	if in.Email != nil {
		e, err := domain.NormalizeEmail(*in.Email)
		if err != nil {
			return err
		}
		in.Email = &e
	}
	if in.Status != nil && !in.Status.Valid() {
		return ErrStatusInvalid
	}
	return nil
}
