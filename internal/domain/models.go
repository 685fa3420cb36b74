// Package domain holds the entities shared by every service and the error
// taxonomy they report.
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/alecgard/mergeflow/internal/id"
)

// Team is the tenant root.
type Team struct {
	ID          id.ID          `json:"id"`
	CompanyName string         `json:"companyName"`
	OwnerID     string         `json:"ownerId"`
	OwnerEmail  string         `json:"ownerEmail"`
	OwnerRole   string         `json:"ownerRole"`
	OwnerType   string         `json:"ownerType"`
	Shared      []string       `json:"shared"`
	DocShared   []PendingShare `json:"docShared"`
	Groups      []id.ID        `json:"groups"`
	Members     []id.ID        `json:"members"`
	Documents   []id.ID        `json:"documents"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

const OwnerTypeAdmin = "admin"

// PendingShare is a document share for an email with no member record yet.
type PendingShare struct {
	Email string `json:"email"`
	DocID id.ID  `json:"docId"`
}

// OwnerDomain returns the lower-cased domain part of the owner email.
func (t *Team) OwnerDomain() string {
	return EmailDomain(t.OwnerEmail)
}

// IsOwner reports whether email belongs to the team owner.
func (t *Team) IsOwner(email string) bool {
	return strings.EqualFold(strings.TrimSpace(email), t.OwnerEmail)
}

// AddPending records a pending share unless an identical one exists.
func (t *Team) AddPending(p PendingShare) bool {
	if slices.Contains(t.DocShared, p) {
		return false
	}
	t.DocShared = append(t.DocShared, p)
	return true
}

// TakePending removes and returns every pending share for email.
func (t *Team) TakePending(email string) []PendingShare {
	var taken []PendingShare
	kept := t.DocShared[:0:0]
	for _, p := range t.DocShared {
		if p.Email == email {
			taken = append(taken, p)
			continue
		}
		kept = append(kept, p)
	}
	t.DocShared = kept
	return taken
}

// ForgetEmails drops emails from both the pre-authorized and pending lists.
func (t *Team) ForgetEmails(emails ...string) {
	t.Shared = slices.DeleteFunc(slices.Clone(t.Shared), func(e string) bool {
		return slices.Contains(emails, e)
	})
	t.DocShared = slices.DeleteFunc(slices.Clone(t.DocShared), func(p PendingShare) bool {
		return slices.Contains(emails, p.Email)
	})
}

func (t *Team) Clone() *Team {
	c := *t
	c.Shared = slices.Clone(t.Shared)
	c.DocShared = slices.Clone(t.DocShared)
	c.Groups = slices.Clone(t.Groups)
	c.Members = slices.Clone(t.Members)
	c.Documents = slices.Clone(t.Documents)
	return &c
}

type MemberStatus string

const (
	StatusActive    MemberStatus = "active"
	StatusInactive  MemberStatus = "inactive"
	StatusPending   MemberStatus = "pending"
	StatusSuspended MemberStatus = "suspended"
)

func (s MemberStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending, StatusSuspended:
		return true
	}
	return false
}

// Role and type given to members who enroll themselves.
const EmployeeRole = "employee"

// Member is a user account scoped to one team.
type Member struct {
	ID          id.ID        `json:"id"`
	TeamID      id.ID        `json:"teamId"`
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	UID         string       `json:"uid"`
	Company     string       `json:"company"`
	Role        string       `json:"role"`
	Type        string       `json:"type"`
	PhoneNumber string       `json:"phoneNumber"`
	AvatarURL   string       `json:"avatarUrl"`
	IsVerified  bool         `json:"isVerified"`
	Status      MemberStatus `json:"status"`
	GroupID     id.ID        `json:"groupId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`

	// Derived on read from Document.SharedWith.
	SharedDocuments []id.ID `json:"sharedDocuments,omitempty"`
}

func (m *Member) Clone() *Member {
	c := *m
	c.SharedDocuments = slices.Clone(m.SharedDocuments)
	return &c
}

func (m *Member) Brief() MemberBrief {
	return MemberBrief{ID: m.ID, Name: m.Name, Email: m.Email, AvatarURL: m.AvatarURL}
}

// MemberBrief is the subset of a member embedded in other views.
type MemberBrief struct {
	ID        id.ID  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// Group is a named, mutually-exclusive partition of a team's members.
type Group struct {
	ID        id.ID     `json:"id"`
	TeamID    id.ID     `json:"teamId"`
	Name      string    `json:"name"`
	Members   []id.ID   `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Derived on read from Document.Groups.
	SharedDocuments []id.ID `json:"sharedDocuments,omitempty"`
}

func (g *Group) Clone() *Group {
	c := *g
	c.Members = slices.Clone(g.Members)
	c.SharedDocuments = slices.Clone(g.SharedDocuments)
	return &c
}

// GroupView is a group with its members resolved.
type GroupView struct {
	*Group
	Members []MemberBrief `json:"members"`
}

type GroupBrief struct {
	ID   id.ID  `json:"id"`
	Name string `json:"name"`
}
