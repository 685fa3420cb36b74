package team

import (
	"github.com/alecgard/mergeflow/internal/domain"
)

type CreateInput struct {
	CompanyName    string
	OwnerID        string
	OwnerEmail     string
	OwnerRole      string
	Shared         []string
	InvitationLink string
}

type CreateResult struct {
	Team       *domain.Team `json:"team"`
	InviteSent bool         `json:"inviteSend"`
}

// Enrollment is the outcome of a self-service signup check. A nil Team
// means no team matched and the caller may create one.
type Enrollment struct {
	Team     *domain.Team   `json:"team"`
	Member   *domain.Member `json:"member"`
	Existing bool           `json:"existing"`
}

// Cascade counts what a team deletion removed.
type Cascade struct {
	Members   int64 `json:"members"`
	Groups    int64 `json:"groups"`
	Documents int64 `json:"documents"`
}
