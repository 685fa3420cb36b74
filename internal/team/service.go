// Package team manages tenants: creation, invitations, self-service
// enrollment and cascading deletion.
package team

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/store"
)

var (
	ErrMissingFields   = domain.Validationf("Missing items in the request")
	ErrNameTaken       = domain.Conflictf("A team with the provided company name already exists.")
	ErrNotFound        = domain.NotFoundf("Team not found.")
	ErrNotAuthorized   = domain.Forbiddenf("You are not authorized to create this account. Please contact your administrator.")
	ErrEmailInUse      = domain.Conflictf("The specified email address is already in use.")
	ErrInviteThrottled = domain.RateLimitedf("Too many invitations for this team. Try again later.")
)

// Inviter sends invitation emails.
type Inviter interface {
	Send(ctx context.Context, email, invitationLink string) invite.Result
	SendBulk(ctx context.Context, emails []string, invitationLink string) error
}

// Limiter throttles invitation sends per key.
type Limiter interface {
	Allow(key string) bool
}

// ObjectCleaner removes stored bytes of deleted documents.
type ObjectCleaner interface {
	RemoveObjects(ctx context.Context, docs []*domain.Document)
}

type Service struct {
	store   store.Store
	invites Inviter
	limiter Limiter
	objects ObjectCleaner
	audit   audit.Recorder
}

// NewService wires the team registry. limiter and objects may be nil.
func NewService(st store.Store, invites Inviter, limiter Limiter, objects ObjectCleaner, rec audit.Recorder) *Service {
	if rec == nil {
		rec = audit.Discard
	}
	return &Service{store: st, invites: invites, limiter: limiter, objects: objects, audit: rec}
}

// Create registers a team and invites its pre-authorized emails after the
// team is committed. A failed invite leaves the team in place.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	t, err := validateCreate(in)
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.Teams().GetByCompanyName(ctx, t.CompanyName)
		if err == nil {
			return ErrNameTaken
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking company name: %w", err)
		}
		if err := tx.Teams().Insert(ctx, t); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrNameTaken
			}
			return fmt.Errorf("creating team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(t.ID, audit.TeamCreated, t.ID, t.CompanyName))

	res := &CreateResult{Team: t}
	if len(t.Shared) > 0 && s.invites != nil {
		if err := s.invites.SendBulk(ctx, t.Shared, in.InvitationLink); err != nil {
			slog.Error("inviting team members", "team_id", t.ID, "error", err)
		} else {
			res.InviteSent = true
		}
	}
	return res, nil
}

// SendInvite emails one invitation and, once it is sent, pre-authorizes the
// address on the team.
func (s *Service) SendInvite(ctx context.Context, teamID id.ID, email, invitationLink string) (*domain.Team, error) {
	addr, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	err = s.store.View(ctx, func(tx store.Tx) error {
		_, err := store.LoadTeam(ctx, tx, teamID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.limiter != nil && !s.limiter.Allow(teamID.String()) {
		return nil, ErrInviteThrottled
	}

	if res := s.invites.Send(ctx, addr, invitationLink); !res.Success {
		return nil, fmt.Errorf("inviting %s: %w", addr, invite.ErrSendFailed)
	}

	var t *domain.Team
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if t, err = store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		if slices.Contains(t.Shared, addr) {
			return nil
		}
		t.Shared = append(t.Shared, addr)
		if err := tx.Teams().Update(ctx, t); err != nil {
			return fmt.Errorf("recording invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.TeamInviteSent, teamID, addr))
	return t, nil
}

func (s *Service) Get(ctx context.Context, teamID id.ID) (*domain.Team, error) {
	var t *domain.Team
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		t, err = store.LoadTeam(ctx, tx, teamID)
		return err
	})
	return t, err
}

func (s *Service) List(ctx context.Context) ([]*domain.Team, error) {
	var teams []*domain.Team
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		if teams, err = tx.Teams().List(ctx); err != nil {
			return fmt.Errorf("listing teams: %w", err)
		}
		return nil
	})
	return teams, err
}

// FindOrEnrollByCompanyName returns the member with email in the named team,
// creating it with view access to every team document when absent.
func (s *Service) FindOrEnrollByCompanyName(ctx context.Context, teamName, name, email string) (*Enrollment, error) {
	teamName, name = strings.TrimSpace(teamName), strings.TrimSpace(name)
	if teamName == "" || name == "" {
		return nil, ErrMissingFields
	}
	addr, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	var enr *Enrollment
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		t, err := tx.Teams().GetByCompanyName(ctx, teamName)
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("loading team: %w", err)
		}
		existing, err := store.FindMemberByEmail(ctx, tx, t.ID, addr)
		if err != nil {
			return err
		}
		if existing != nil {
			enr = &Enrollment{Team: t, Member: existing, Existing: true}
			return nil
		}

		m := newEmployee(t, name, addr, false)
		if err := tx.Members().Insert(ctx, m); err != nil {
			return fmt.Errorf("creating member: %w", err)
		}
		if err := tx.Documents().GrantAll(ctx, t.ID, domain.Share{Member: m.ID, Permission: domain.PermissionView}); err != nil {
			return fmt.Errorf("granting team documents: %w", err)
		}
		t.TakePending(addr)
		t.Members = id.Add(t.Members, m.ID)
		if err := tx.Teams().Update(ctx, t); err != nil {
			return fmt.Errorf("adding member to team: %w", err)
		}
		enr = &Enrollment{Team: t, Member: m}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !enr.Existing {
		s.audit.Record(audit.New(enr.Team.ID, audit.MemberEnrolled, enr.Member.ID, "company_name"))
	}
	return enr, nil
}

// FindOrEnrollByEmailDomain enrolls email into the team whose owner shares
// its domain. The address must have been invited, either to the team or to
// a document. Pending document shares turn into view grants.
func (s *Service) FindOrEnrollByEmailDomain(ctx context.Context, email, name string) (*Enrollment, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(email) == "" {
		return nil, ErrMissingFields
	}
	addr, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	enr := &Enrollment{}
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		t, err := tx.Teams().FindByOwnerDomain(ctx, domain.EmailDomain(addr))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("finding team by domain: %w", err)
		}

		pending := t.TakePending(addr)
		if !slices.Contains(t.Shared, addr) && len(pending) == 0 {
			return ErrNotAuthorized
		}
		existing, err := store.FindMemberByEmail(ctx, tx, t.ID, addr)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrEmailInUse
		}

		m := newEmployee(t, name, addr, true)
		if err := tx.Members().Insert(ctx, m); err != nil {
			return fmt.Errorf("creating member: %w", err)
		}
		if err := grantPending(ctx, tx, t.ID, m.ID, pending); err != nil {
			return err
		}
		t.Shared = remove(t.Shared, addr)
		t.Members = id.Add(t.Members, m.ID)
		if err := tx.Teams().Update(ctx, t); err != nil {
			return fmt.Errorf("adding member to team: %w", err)
		}
		enr.Team, enr.Member = t, m
		return nil
	})
	if err != nil {
		return nil, err
	}
	if enr.Member != nil {
		s.audit.Record(audit.New(enr.Team.ID, audit.MemberEnrolled, enr.Member.ID, "email_domain"))
	}
	return enr, nil
}

// Delete removes the team and everything whose teamId points at it.
func (s *Service) Delete(ctx context.Context, teamID id.ID) (*Cascade, error) {
	c := &Cascade{}
	var docs []*domain.Document
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := store.LoadTeam(ctx, tx, teamID); err != nil {
			return err
		}
		var err error
		if docs, err = tx.Documents().ListByTeam(ctx, teamID, false); err != nil {
			return fmt.Errorf("listing team documents: %w", err)
		}
		if c.Documents, err = tx.Documents().DeleteByTeam(ctx, teamID); err != nil {
			return fmt.Errorf("deleting team documents: %w", err)
		}
		if c.Groups, err = tx.Groups().DeleteByTeam(ctx, teamID); err != nil {
			return fmt.Errorf("deleting team groups: %w", err)
		}
		if c.Members, err = tx.Members().DeleteByTeam(ctx, teamID); err != nil {
			return fmt.Errorf("deleting team members: %w", err)
		}
		if err := tx.Teams().Delete(ctx, teamID); err != nil {
			return fmt.Errorf("deleting team: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.New(teamID, audit.TeamDeleted, teamID,
		fmt.Sprintf("members=%d groups=%d documents=%d", c.Members, c.Groups, c.Documents)))
	if s.objects != nil {
		s.objects.RemoveObjects(ctx, docs)
	}
	return c, nil
}

func grantPending(ctx context.Context, tx store.Tx, teamID, memberID id.ID, pending []domain.PendingShare) error {
	for _, p := range pending {
		d, err := tx.Documents().Get(ctx, p.DocID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("loading shared document: %w", err)
		}
		if d.TeamID != teamID || !d.Grant(memberID, domain.PermissionView) {
			continue
		}
		if err := tx.Documents().Update(ctx, d); err != nil {
			return fmt.Errorf("granting shared document: %w", err)
		}
	}
	return nil
}

func newEmployee(t *domain.Team, name, email string, verified bool) *domain.Member {
	return &domain.Member{
		ID:         id.New(),
		TeamID:     t.ID,
		Name:       name,
		Email:      email,
		Company:    t.CompanyName,
		Role:       domain.EmployeeRole,
		Type:       domain.EmployeeRole,
		IsVerified: verified,
		Status:     domain.StatusActive,
	}
}

func validateCreate(in CreateInput) (*domain.Team, error) {
	name := strings.TrimSpace(in.CompanyName)
	if name == "" || strings.TrimSpace(in.OwnerID) == "" || strings.TrimSpace(in.OwnerEmail) == "" || strings.TrimSpace(in.OwnerRole) == "" {
		return nil, ErrMissingFields
	}
	owner, err := domain.NormalizeEmail(in.OwnerEmail)
	if err != nil {
		return nil, err
	}
	shared, err := domain.NormalizeEmails(in.Shared)
	if err != nil {
		return nil, err
	}
	return &domain.Team{
		ID:          id.New(),
		CompanyName: name,
		OwnerID:     in.OwnerID,
		OwnerEmail:  owner,
		OwnerRole:   in.OwnerRole,
		OwnerType:   domain.OwnerTypeAdmin,
		Shared:      shared,
		DocShared:   []domain.PendingShare{},
		Groups:      []id.ID{},
		Members:     []id.ID{},
		Documents:   []id.ID{},
	}, nil
}

func remove(ss []string, s string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
