package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/member"
	"github.com/alecgard/mergeflow/internal/team"
)

// membersHandler groups member directory HTTP handlers.
type membersHandler struct {
	members        *member.Service
	invitationLink string
}

func newMembersHandler(members *member.Service, invitationLink string) *membersHandler {
	return &membersHandler{members: members, invitationLink: invitationLink}
}

type createMemberRequest struct {
	TeamID         string `json:"teamId" validate:"required,uuid"`
	Name           string `json:"name" validate:"required"`
	Email          string `json:"email" validate:"required,email"`
	UID            string `json:"uid"`
	Company        string `json:"company" validate:"required"`
	Role           string `json:"role" validate:"required"`
	Type           string `json:"type" validate:"required"`
	PhoneNumber    string `json:"phoneNumber"`
	AvatarPreview  string `json:"avatarPreview"`
	IsVerified     bool   `json:"isVerified"`
	Status         string `json:"status" validate:"omitempty,oneof=active inactive pending suspended"`
	InvitationLink string `json:"invitationLink"`
}

// memberPatch is the body of both update routes. DisplayName and PhotoURL
// are the profile spellings accepted by updateProfile.
type memberPatch struct {
	Name          *string `json:"name"`
	DisplayName   *string `json:"displayName"`
	Email         *string `json:"email" validate:"omitempty,email"`
	UID           *string `json:"uid"`
	Role          *string `json:"role"`
	Type          *string `json:"type"`
	PhoneNumber   *string `json:"phoneNumber"`
	AvatarPreview *string `json:"avatarPreview"`
	PhotoURL      *struct {
		Preview string `json:"preview"`
	} `json:"photoURL"`
	IsVerified *bool   `json:"isVerified"`
	Status     *string `json:"status" validate:"omitempty,oneof=active inactive pending suspended"`
}

func (p memberPatch) input() member.UpdateInput {
	in := member.UpdateInput{
		Name:          p.Name,
		Email:         p.Email,
		UID:           p.UID,
		Role:          p.Role,
		Type:          p.Type,
		PhoneNumber:   p.PhoneNumber,
		AvatarPreview: p.AvatarPreview,
		IsVerified:    p.IsVerified,
	}
	if in.Name == nil && p.DisplayName != nil {
		in.Name = p.DisplayName
	}
	if in.AvatarPreview == nil && p.PhotoURL != nil {
		in.AvatarPreview = &p.PhotoURL.Preview
	}
	if p.Status != nil {
		s := domain.MemberStatus(*p.Status)
		in.Status = &s
	}
	return in
}

type moveToGroupRequest struct {
	TeamID  string `json:"teamId" validate:"required,uuid"`
	GroupID string `json:"groupId" validate:"required,uuid"`
}

type deleteMembersRequest struct {
	TeamID    string   `json:"teamId" validate:"required,uuid"`
	MemberIDs []string `json:"memberIds" validate:"required,min=1,dive,uuid"`
}

// Create handles POST /api/member.
func (h *membersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	link := req.InvitationLink
	if link == "" {
		link = h.invitationLink
	}

	res, err := h.members.Create(r.Context(), member.CreateInput{
		TeamID:         bodyID(req.TeamID),
		Name:           req.Name,
		Email:          req.Email,
		UID:            req.UID,
		Company:        req.Company,
		Role:           req.Role,
		Type:           req.Type,
		PhoneNumber:    req.PhoneNumber,
		AvatarPreview:  req.AvatarPreview,
		IsVerified:     req.IsVerified,
		Status:         domain.MemberStatus(req.Status),
		InvitationLink: link,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create member")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// List handles GET /api/member?teamId=&memberIds=.
func (h *membersHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryID(r, "teamId", team.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	ids, err := queryIDs(r, "memberIds")
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	members, err := h.members.List(r.Context(), teamID, ids)
	if err != nil {
		writeServiceError(w, r, err, "failed to list members")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// Get handles GET /api/member/{memberId}?teamId=.
func (h *membersHandler) Get(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	m, err := h.members.Get(r.Context(), memberID, teamID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Update handles PUT /api/member/{memberId}?teamId=.
func (h *membersHandler) Update(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req memberPatch
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	m, err := h.members.Update(r.Context(), memberID, teamID, req.input())
	if err != nil {
		writeServiceError(w, r, err, "failed to update member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateProfile handles PUT /api/member/{email}/updateProfile?teamId=.
func (h *membersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryID(r, "teamId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req memberPatch
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	m, err := h.members.UpdateByEmail(r.Context(), chi.URLParam(r, "email"), teamID, req.input())
	if err != nil {
		writeServiceError(w, r, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// MoveToGroup handles PUT /api/member/{memberId}/moveToGroup.
func (h *membersHandler) MoveToGroup(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req moveToGroupRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	m, err := h.members.MoveToGroup(r.Context(), memberID, bodyID(req.TeamID), bodyID(req.GroupID))
	if err != nil {
		writeServiceError(w, r, err, "failed to move member")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Delete handles DELETE /api/member/{memberId}?teamId=.
func (h *membersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	memberID, err := pathID(r, "memberId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", member.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := h.members.Delete(r.Context(), memberID, teamID); err != nil {
		writeServiceError(w, r, err, "failed to delete member")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": 1})
}

// DeleteMany handles DELETE /api/member.
func (h *membersHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req deleteMembersRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	res, err := h.members.DeleteMany(r.Context(), bodyIDs(req.MemberIDs), bodyID(req.TeamID))
	if err != nil {
		writeServiceError(w, r, err, "failed to delete members")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
