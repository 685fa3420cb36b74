package api

import (
	"net/http"

	"github.com/alecgard/mergeflow/internal/group"
	"github.com/alecgard/mergeflow/internal/team"
)

// groupsHandler groups group registry HTTP handlers.
type groupsHandler struct {
	groups *group.Service
}

func newGroupsHandler(groups *group.Service) *groupsHandler {
	return &groupsHandler{groups: groups}
}

type createGroupRequest struct {
	TeamID  string   `json:"teamId" validate:"required,uuid"`
	Name    string   `json:"name" validate:"required"`
	Members []string `json:"members" validate:"dive,uuid"`
}

type updateGroupRequest struct {
	Name    *string   `json:"name"`
	Members *[]string `json:"members" validate:"omitempty,dive,uuid"`
}

type removeFromGroupRequest struct {
	TeamID   string `json:"teamId" validate:"required,uuid"`
	MemberID string `json:"memberId" validate:"required,uuid"`
}

type deleteGroupsRequest struct {
	TeamID   string   `json:"teamId" validate:"required,uuid"`
	GroupIDs []string `json:"groupIds" validate:"required,min=1,dive,uuid"`
}

// List handles GET /api/groups?teamId=.
func (h *groupsHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryID(r, "teamId", team.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	groups, err := h.groups.List(r.Context(), teamID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// Create handles POST /api/groups/create.
func (h *groupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	g, err := h.groups.Create(r.Context(), bodyID(req.TeamID), req.Name, bodyIDs(req.Members))
	if err != nil {
		writeServiceError(w, r, err, "failed to create group")
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// Get handles GET /api/groups/{groupId}?teamId=.
func (h *groupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	g, err := h.groups.Get(r.Context(), groupID, teamID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Update handles PUT /api/groups/{groupId}?teamId=.
func (h *groupsHandler) Update(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req updateGroupRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	in := group.UpdateInput{Name: req.Name}
	if req.Members != nil {
		members := bodyIDs(*req.Members)
		in.Members = &members
	}
	g, err := h.groups.Update(r.Context(), groupID, teamID, in)
	if err != nil {
		writeServiceError(w, r, err, "failed to update group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// RemoveFromGroup handles DELETE /api/groups/{groupId}/removeFromGroup.
func (h *groupsHandler) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	var req removeFromGroupRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	g, err := h.groups.RemoveFromGroup(r.Context(), groupID, bodyID(req.TeamID), bodyID(req.MemberID))
	if err != nil {
		writeServiceError(w, r, err, "failed to remove member from group")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Delete handles DELETE /api/groups/{groupId}?teamId=.
func (h *groupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	teamID, err := queryID(r, "teamId", group.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if err := h.groups.Delete(r.Context(), groupID, teamID); err != nil {
		writeServiceError(w, r, err, "failed to delete group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": 1})
}

// DeleteMany handles DELETE /api/groups.
func (h *groupsHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req deleteGroupsRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	n, err := h.groups.DeleteMany(r.Context(), bodyIDs(req.GroupIDs), bodyID(req.TeamID))
	if err != nil {
		writeServiceError(w, r, err, "failed to delete groups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": n})
}

