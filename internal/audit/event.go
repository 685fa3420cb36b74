// Package audit keeps an activity log of mutations. Events are buffered in
// memory and written to the store in batches.
package audit

import (
	"context"
	"time"

	"github.com/alecgard/mergeflow/internal/id"
)

// Event records one committed mutation.
type Event struct {
	TeamID     id.ID     `json:"teamId"`
	Action     string    `json:"action"`
	SubjectID  id.ID     `json:"subjectId"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Actions.
const (
	TeamCreated        = "team.created"
	TeamDeleted        = "team.deleted"
	TeamInviteSent     = "team.invite_sent"
	MemberCreated      = "member.created"
	MemberEnrolled     = "member.enrolled"
	MemberUpdated      = "member.updated"
	MemberMoved        = "member.moved"
	MemberDeleted      = "member.deleted"
	GroupCreated       = "group.created"
	GroupUpdated       = "group.updated"
	GroupMemberRemoved = "group.member_removed"
	GroupDeleted       = "group.deleted"
	DocumentUploaded   = "document.uploaded"
	FolderCreated      = "document.folder_created"
	FolderAppended     = "document.folder_appended"
	DocumentShared     = "document.shared"
	DocumentRevoked    = "document.revoked"
	PermissionChanged  = "document.permission_changed"
	DocumentUpdated    = "document.updated"
	DocumentDeleted    = "document.deleted"
)

// Recorder accepts events after the mutation they describe has committed.
type Recorder interface {
	Record(Event)
}

// Reader lists a team's recent events, newest first.
type Reader interface {
	ListAuditEvents(ctx context.Context, teamID id.ID, limit int) ([]Event, error)
}

type discard struct{}

func (discard) Record(Event) {}

// Discard drops every event.
var Discard Recorder = discard{}

// New builds an event stamped with the current time.
func New(teamID id.ID, action string, subjectID id.ID, detail string) Event {
	return Event{TeamID: teamID, Action: action, SubjectID: subjectID, Detail: detail, OccurredAt: time.Now().UTC()}
}
