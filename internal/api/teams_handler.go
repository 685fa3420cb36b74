package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/team"
)

// teamsHandler groups team registry and enrollment HTTP handlers.
type teamsHandler struct {
	teams          *team.Service
	activity       audit.Reader
	invitationLink string
	onThrottle     func()
}

func newTeamsHandler(teams *team.Service, activity audit.Reader, invitationLink string, onThrottle func()) *teamsHandler {
	if onThrottle == nil {
		onThrottle = func() {}
	}
	return &teamsHandler{
		teams:          teams,
		activity:       activity,
		invitationLink: invitationLink,
		onThrottle:     onThrottle,
	}
}

type createTeamRequest struct {
	CompanyName    string   `json:"companyName" validate:"required"`
	OwnerID        string   `json:"ownerId" validate:"required"`
	OwnerEmail     string   `json:"ownerEmail" validate:"required,email"`
	OwnerRole      string   `json:"ownerRole" validate:"required"`
	Shared         []string `json:"shared" validate:"dive,email"`
	InvitationLink string   `json:"invitationLink"`
}

type sendInviteRequest struct {
	TeamID         string `json:"teamId" validate:"required,uuid"`
	Email          string `json:"email" validate:"required,email"`
	InvitationLink string `json:"invitationLink"`
}

func (h *teamsHandler) link(s string) string {
	if s == "" {
		return h.invitationLink
	}
	return s
}

// Create handles POST /api/teams.
func (h *teamsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	res, err := h.teams.Create(r.Context(), team.CreateInput{
		CompanyName:    req.CompanyName,
		OwnerID:        req.OwnerID,
		OwnerEmail:     req.OwnerEmail,
		OwnerRole:      req.OwnerRole,
		Shared:         req.Shared,
		InvitationLink: h.link(req.InvitationLink),
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create team")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// List handles GET /api/teams.
func (h *teamsHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.teams.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "failed to list teams")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// SendInvite handles POST /api/teams/send.
func (h *teamsHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	var req sendInviteRequest
	if err := decode(r, &req); err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	t, err := h.teams.SendInvite(r.Context(), bodyID(req.TeamID), req.Email, h.link(req.InvitationLink))
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			h.onThrottle()
		}
		writeServiceError(w, r, err, "failed to send invitation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team": t, "inviteSent": true})
}

// Get handles GET /api/teams/{teamId}.
func (h *teamsHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamId", team.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	t, err := h.teams.Get(r.Context(), teamID)
	if err != nil {
		writeServiceError(w, r, err, "failed to get team")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CheckByName handles GET /api/teams/{teamName}/check?name=&email=. An
// existing member answers 202; a fresh enrollment answers 201.
func (h *teamsHandler) CheckByName(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	enr, err := h.teams.FindOrEnrollByCompanyName(r.Context(), chi.URLParam(r, "teamName"), q.Get("name"), q.Get("email"))
	if err != nil {
		writeServiceError(w, r, err, "failed to check team")
		return
	}
	status := http.StatusCreated
	if enr.Existing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, enr)
}

// SignupCheck handles GET /api/teams/{email}/signupCheck?name=. No team for
// the email's domain answers 200 with a null team: the caller should create
// one.
func (h *teamsHandler) SignupCheck(w http.ResponseWriter, r *http.Request) {
	enr, err := h.teams.FindOrEnrollByEmailDomain(r.Context(), chi.URLParam(r, "email"), r.URL.Query().Get("name"))
	if err != nil {
		writeServiceError(w, r, err, "failed to check signup")
		return
	}
	status := http.StatusCreated
	if enr.Team == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, enr)
}

// Delete handles DELETE /api/teams/{teamId}.
func (h *teamsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamId", team.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	c, err := h.teams.Delete(r.Context(), teamID)
	if err != nil {
		writeServiceError(w, r, err, "failed to delete team")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Activity handles GET /api/teams/{teamId}/activity?limit=.
func (h *teamsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	teamID, err := pathID(r, "teamId", team.ErrNotFound)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	limit, err := queryLimit(r, 50, 500)
	if err != nil {
		writeServiceError(w, r, err, "")
		return
	}
	if _, err := h.teams.Get(r.Context(), teamID); err != nil {
		writeServiceError(w, r, err, "failed to get team")
		return
	}
	if h.activity == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": []audit.Event{}})
		return
	}
	events, err := h.activity.ListAuditEvents(r.Context(), teamID, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list activity")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
