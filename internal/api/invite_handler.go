package api

import (
	"net/http"

	"github.com/alecgard/mergeflow/internal/invite"
)

type inviteHandler struct {
	invites        *invite.Service
	invitationLink string
}

type sendInvitationRequest struct {
	Email          string `json:"email" validate:"required,email"`
	InvitationLink string `json:"invitationLink"`
}

// SendInvitation handles POST /invite/send-invitation. Unlike
// /api/teams/send it records nothing on a team.
func (h *inviteHandler) SendInvitation(w http.ResponseWriter, r *http.Request) {
	var req sendInvitationRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	link := req.InvitationLink
	if link == "" {
		link = h.invitationLink
	}
	res := h.invites.Send(r.Context(), req.Email, link)
	if !res.Success {
		writeError(w, http.StatusInternalServerError, "send_failed", invite.ErrSendFailed.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
