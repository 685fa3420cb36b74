package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/alecgard/mergeflow/internal/id"
)

type Permission string

const (
	PermissionView Permission = "view"
	PermissionEdit Permission = "edit"
)

func (p Permission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Share is a direct grant of a document to one member.
type Share struct {
	Member     id.ID      `json:"member"`
	Permission Permission `json:"permission"`
}

const TypeFolder = "folder"

// Document is a file or a folder. Folders list their children in Files.
type Document struct {
	ID          id.ID     `json:"id"`
	TeamID      id.ID     `json:"teamId"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Size        int64     `json:"size"`
	TotalFiles  int       `json:"totalFiles"`
	IsFavorited bool      `json:"isFavorited"`
	ShowFile    bool      `json:"showFile"`
	URL         string    `json:"url"`
	Tags        []string  `json:"tags"`
	Files       []id.ID   `json:"files"`
	Groups      []id.ID   `json:"groups"`
	SharedWith  []Share   `json:"sharedWith"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (d *Document) IsFolder() bool { return d.Type == TypeFolder }

// ShareIndex returns the position of member's grant, or -1.
func (d *Document) ShareIndex(member id.ID) int {
	return slices.IndexFunc(d.SharedWith, func(s Share) bool { return s.Member == member })
}

// Grant adds a share for member unless one exists. An existing grant keeps
// its permission.
func (d *Document) Grant(member id.ID, p Permission) bool {
	if d.ShareIndex(member) >= 0 {
		return false
	}
	d.SharedWith = append(d.SharedWith, Share{Member: member, Permission: p})
	return true
}

// Revoke removes every grant for the given members.
func (d *Document) Revoke(members ...id.ID) bool {
	n := len(d.SharedWith)
	d.SharedWith = slices.DeleteFunc(slices.Clone(d.SharedWith), func(s Share) bool {
		return slices.Contains(members, s.Member)
	})
	return len(d.SharedWith) != n
}

// VisibleTo reports whether a non-owner member may list the document.
func (d *Document) VisibleTo(m *Member) bool {
	if !d.ShowFile {
		return false
	}
	if !m.GroupID.IsZero() && id.Contains(d.Groups, m.GroupID) {
		return true
	}
	return d.ShareIndex(m.ID) >= 0
}

func (d *Document) Clone() *Document {
	c := *d
	c.Tags = slices.Clone(d.Tags)
	c.Files = slices.Clone(d.Files)
	c.Groups = slices.Clone(d.Groups)
	c.SharedWith = slices.Clone(d.SharedWith)
	return &c
}

// DocumentView is a document with its references resolved. Groups and
// SharedWith shadow the id-only fields of the embedded document.
type DocumentView struct {
	*Document
	Children   []*Document   `json:"children,omitempty"`
	Groups     []GroupBrief  `json:"groups"`
	SharedWith []SharedEntry `json:"sharedWith"`
}

type SharedEntry struct {
	Member     MemberBrief `json:"member"`
	Permission Permission  `json:"permission"`
}

// NormalizeTags trims, drops empties and de-duplicates, keeping order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
