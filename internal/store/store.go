// Package store is the persistence boundary. Every multi-collection mutation
// runs inside one transaction obtained from Store.InTx.
package store

import (
	"context"
	"errors"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
)

// Store opens transactions. A non-nil error from fn rolls back every write
// made through its Tx.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
}

type Tx interface {
	Teams() TeamRepo
	Members() MemberRepo
	Groups() GroupRepo
	Documents() DocumentRepo
}

// Repositories return copies; changes persist only through Insert/Update or
// the targeted bulk methods. Lists are ordered by id (oldest first).

type TeamRepo interface {
	Insert(ctx context.Context, t *domain.Team) error
	Get(ctx context.Context, teamID id.ID) (*domain.Team, error)
	GetByCompanyName(ctx context.Context, name string) (*domain.Team, error)
	// FindByOwnerDomain matches the owner email domain exactly, ignoring case.
	FindByOwnerDomain(ctx context.Context, domain string) (*domain.Team, error)
	List(ctx context.Context) ([]*domain.Team, error)
	Update(ctx context.Context, t *domain.Team) error
	Delete(ctx context.Context, teamID id.ID) error
}

type MemberRepo interface {
	Insert(ctx context.Context, m *domain.Member) error
	Get(ctx context.Context, memberID id.ID) (*domain.Member, error)
	GetByEmail(ctx context.Context, teamID id.ID, email string) (*domain.Member, error)
	ListByTeam(ctx context.Context, teamID id.ID) ([]*domain.Member, error)
	ListByIDs(ctx context.Context, teamID id.ID, ids []id.ID) ([]*domain.Member, error)
	Update(ctx context.Context, m *domain.Member) error
	// SetGroup points every listed member at groupID; a zero groupID clears it.
	SetGroup(ctx context.Context, memberIDs []id.ID, groupID id.ID) error
	// ClearGroups clears groupId on members pointing at any of groupIDs.
	ClearGroups(ctx context.Context, groupIDs []id.ID) error
	DeleteMany(ctx context.Context, ids []id.ID) (int64, error)
	DeleteByTeam(ctx context.Context, teamID id.ID) (int64, error)
}

type GroupRepo interface {
	Insert(ctx context.Context, g *domain.Group) error
	Get(ctx context.Context, groupID id.ID) (*domain.Group, error)
	GetByName(ctx context.Context, teamID id.ID, name string) (*domain.Group, error)
	ListByTeam(ctx context.Context, teamID id.ID) ([]*domain.Group, error)
	ListByIDs(ctx context.Context, teamID id.ID, ids []id.ID) ([]*domain.Group, error)
	Update(ctx context.Context, g *domain.Group) error
	// RemoveMembers pulls the ids from every group's member list.
	RemoveMembers(ctx context.Context, memberIDs []id.ID) error
	DeleteMany(ctx context.Context, ids []id.ID) (int64, error)
	DeleteByTeam(ctx context.Context, teamID id.ID) (int64, error)
}

type DocumentRepo interface {
	Insert(ctx context.Context, d *domain.Document) error
	Get(ctx context.Context, documentID id.ID) (*domain.Document, error)
	// ListByIDs ignores ids that do not exist. A zero teamID matches any team.
	ListByIDs(ctx context.Context, teamID id.ID, ids []id.ID) ([]*domain.Document, error)
	ListByTeam(ctx context.Context, teamID id.ID, shownOnly bool) ([]*domain.Document, error)
	// URLsInUse returns the subset of urls still referenced by any document.
	URLsInUse(ctx context.Context, urls []string) ([]string, error)
	SharedWithMember(ctx context.Context, memberID id.ID) ([]id.ID, error)
	SharedWithGroup(ctx context.Context, groupID id.ID) ([]id.ID, error)
	Update(ctx context.Context, d *domain.Document) error
	// GrantAll adds share to every team document that has no grant for that member.
	GrantAll(ctx context.Context, teamID id.ID, share domain.Share) error
	RemoveMemberShares(ctx context.Context, memberIDs []id.ID) error
	RemoveGroups(ctx context.Context, groupIDs []id.ID) error
	DeleteMany(ctx context.Context, ids []id.ID) (int64, error)
	DeleteByTeam(ctx context.Context, teamID id.ID) (int64, error)
}
