package document

import (
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
)

// FileInput describes one uploaded file whose bytes are already in object storage.
type FileInput struct {
	Name string
	Size int64
	URL  string
	Type string
}

// Batch is the result of an upload, used to build or extend a folder.
// Folder sizes are summed from the stored files, not from TotalSize.
type Batch struct {
	DocumentIDs []id.ID `json:"documentIds"`
	TotalSize   int64   `json:"totalSize"`
}

type ShareInput struct {
	GroupID        id.ID
	UserEmail      string
	InvitationLink string
}

type ShareResult struct {
	Document   *domain.Document `json:"document"`
	Pending    bool             `json:"pending"`
	InviteSent bool             `json:"inviteSent"`
}

type RevokeInput struct {
	GroupID   id.ID
	UserEmail string
}
