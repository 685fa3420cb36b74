package api

import (
	"context"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/auth"
	"github.com/alecgard/mergeflow/internal/document"
	"github.com/alecgard/mergeflow/internal/group"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/member"
	"github.com/alecgard/mergeflow/internal/metrics"
	"github.com/alecgard/mergeflow/internal/ratelimit"
	"github.com/alecgard/mergeflow/internal/team"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router. Metrics, Guard,
// ClientLimiter, Activity and DB are optional.
type RouterDeps struct {
	Teams     *team.Service
	Members   *member.Service
	Groups    *group.Service
	Documents *document.Service
	Invites   *invite.Service

	Activity      audit.Reader
	Metrics       *metrics.Metrics
	Guard         *auth.Guard
	ClientLimiter *ratelimit.Limiter
	DB            Pinger

	AllowedOrigins []string
	// InvitationLink is used when a request does not name its own.
	InvitationLink string
	// Sentry attaches a hub to each request and captures panics.
	Sentry bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(echoRequestID)
	r.Use(chimw.Recoverer)
	if deps.Sentry {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(secureHeaders)

	admin := auth.AdminMiddleware(deps.Guard)

	r.Get("/health", healthHandler(deps.DB))

	if m := deps.Metrics; m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
		r.With(admin).Get("/metrics/summary", m.Handler())
	}

	members := newMembersHandler(deps.Members, deps.InvitationLink)
	documents := newDocumentsHandler(deps.Documents, deps.InvitationLink)
	groups := newGroupsHandler(deps.Groups)
	teams := newTeamsHandler(deps.Teams, deps.Activity, deps.InvitationLink, rejection(deps.Metrics, "team"))
	invites := &inviteHandler{invites: deps.Invites, invitationLink: deps.InvitationLink}

	r.Route("/api", func(ar chi.Router) {
		ar.Route("/member", func(mr chi.Router) {
			mr.Post("/", members.Create)
			mr.Get("/", members.List)
			mr.Delete("/", members.DeleteMany)
			mr.Get("/{memberId}", members.Get)
			mr.Put("/{memberId}", members.Update)
			mr.Delete("/{memberId}", members.Delete)
			mr.Put("/{memberId}/moveToGroup", members.MoveToGroup)
			mr.Put("/{email}/updateProfile", members.UpdateProfile)
		})

		ar.Route("/documents", func(dr chi.Router) {
			dr.Get("/", documents.List)
			dr.Delete("/", documents.DeleteMany)
			dr.Post("/upload", documents.Upload)
			dr.Post("/upload-url", documents.UploadURL)
			dr.Post("/create", documents.CreateFolder)
			dr.Get("/{documentId}", documents.Get)
			dr.Delete("/{documentId}", documents.Delete)
			dr.Put("/{documentId}/edit", documents.AppendToFolder)
			dr.Put("/{documentId}/share", documents.Share)
			dr.Put("/{documentId}/permission", documents.UpdatePermission)
			dr.Put("/{documentId}/favorite", documents.SetFavorite)
			dr.Put("/{documentId}/tags", documents.SetTags)
			dr.Delete("/{documentId}/revoke", documents.RevokeAccess)
		})

		ar.Route("/teams", func(tr chi.Router) {
			tr.Post("/", teams.Create)
			tr.With(admin).Get("/", teams.List)
			tr.Post("/send", teams.SendInvite)
			tr.Get("/{teamId}", teams.Get)
			tr.With(admin).Delete("/{teamId}", teams.Delete)
			tr.With(admin).Get("/{teamId}/activity", teams.Activity)
			tr.Get("/{teamName}/check", teams.CheckByName)
			tr.Get("/{email}/signupCheck", teams.SignupCheck)
		})

		ar.Route("/groups", func(gr chi.Router) {
			gr.Get("/", groups.List)
			gr.Delete("/", groups.DeleteMany)
			gr.Post("/create", groups.Create)
			gr.Get("/{groupId}", groups.Get)
			gr.Put("/{groupId}", groups.Update)
			gr.Delete("/{groupId}", groups.Delete)
			gr.Delete("/{groupId}/removeFromGroup", groups.RemoveFromGroup)
		})
	})

	r.Route("/invite", func(ir chi.Router) {
		if deps.ClientLimiter != nil {
			ir.Use(ratelimit.Middleware(deps.ClientLimiter, ratelimit.ClientIP, rejection(deps.Metrics, "client")))
		}
		ir.Post("/send-invitation", invites.SendInvitation)
	})

	return newCORS(deps.AllowedOrigins).Handler(r)
}

func rejection(m *metrics.Metrics, scope string) func() {
	if m == nil {
		return func() {}
	}
	return func() { m.IncInviteRejection(scope) }
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "memory"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "connected"})
	}
}
