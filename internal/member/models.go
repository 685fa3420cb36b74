package member

import (
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

// CreateInput holds the fields for a new member.
type CreateInput struct {
	TeamID         id.ID
	Name           string
	Email          string
	UID            string
	Company        string
	Role           string
	Type           string
	PhoneNumber    string
	AvatarPreview  string
	IsVerified     bool
	Status         domain.MemberStatus
	InvitationLink string
}

// UpdateInput holds a partial update. Nil fields are left unchanged.
type UpdateInput struct {
	Name          *string
	Email         *string
	UID           *string
	Role          *string
	Type          *string
	PhoneNumber   *string
	AvatarPreview *string
	IsVerified    *bool
	Status        *domain.MemberStatus
}

type CreateResult struct {
	Member     *domain.Member `json:"member"`
	InviteSent bool           `json:"inviteSent"`
}

// DeleteResult lists the uids of deleted members so callers can drop their
// external auth accounts.
type DeleteResult struct {
	DeletedCount int64    `json:"deletedCount"`
	UIDs         []string `json:"uids"`
}
