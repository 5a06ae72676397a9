package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/shelf/internal/handler"
	"github.com/dukerupert/shelf/internal/membership"
	"github.com/dukerupert/shelf/internal/metrics"
	"github.com/dukerupert/shelf/internal/middleware"
	"github.com/dukerupert/shelf/internal/store"
	ws "github.com/dukerupert/shelf/internal/websocket"
)

// Config carries what the router needs beyond the database.
type Config struct {
	BaseURL      string
	CookieSecure bool
	Mailer       membership.Mailer
	Registerer   prometheus.Registerer
	Gatherer     prometheus.Gatherer
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	service      *membership.Service
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	authH        *handler.AuthHandler
	membershipH  *handler.MembershipHandler
	productH     *handler.ProductHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	m := metrics.New(cfg.Registerer)

	svc := membership.NewService(db, cfg.Mailer, cfg.BaseURL, logger.With("component", "membership"),
		membership.WithNotifier(hub),
		membership.WithMetrics(m),
	)

	return &Server{
		db:           db,
		hub:          hub,
		service:      svc,
		metrics:      m,
		gatherer:     cfg.Gatherer,
		authH:        handler.NewAuthHandler(db, svc, cfg.CookieSecure, logger.With("component", "auth")),
		membershipH:  handler.NewMembershipHandler(svc, logger.With("component", "membership_handler")),
		productH:     handler.NewProductHandler(db, hub, logger.With("component", "product")),
		sessionStore: store.NewSessionStore(db),
		userStore:    store.NewUserStore(db),
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Metrics returns the counters shared with background tasks.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.Handle("POST /auth/signup", s.limitByIP("signup", 10, time.Minute, s.authH.Signup))
	mux.Handle("POST /auth/login", s.limitByIP("login", 10, time.Minute, s.authH.Login))
	mux.Handle("GET /api/invites/check", s.limitByIP("invite_check", 30, time.Minute, s.membershipH.CheckInvite))

	// Emailed links
	mux.HandleFunc("GET /invite/accept", s.membershipH.AcceptInvite)
	mux.HandleFunc("POST /invite/accept", s.membershipH.AcceptInvite)
	mux.HandleFunc("GET /invite/decline", s.membershipH.DeclineInvite)
	mux.HandleFunc("POST /invite/decline", s.membershipH.DeclineInvite)
	mux.HandleFunc("GET /verify-email", s.membershipH.VerifyEmail)
	mux.HandleFunc("POST /verify-email", s.membershipH.VerifyEmail)

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// Any session
	mux.Handle("POST /auth/logout", s.session(s.authH.Logout))
	mux.Handle("GET /api/me", s.session(s.authH.Me))
	mux.Handle("PUT /api/me/display-name", s.session(s.authH.UpdateDisplayName))
	mux.Handle("PUT /api/me/api-key", s.session(s.authH.UpdateAPIKey))
	mux.Handle("POST /api/onboarding/owner", s.session(s.membershipH.CreateOwner))
	mux.Handle("POST /api/onboarding/member", s.session(s.membershipH.JoinHousehold))

	// Assigned, verified or not
	mux.Handle("POST /api/verification/resend", s.assigned(
		middleware.RateLimitWith(s.rateLimiter, middleware.UserKey("resend"), 1, 30*time.Second, http.HandlerFunc(s.membershipH.ResendCooldown))(http.HandlerFunc(s.membershipH.ResendVerification)),
	))
	mux.Handle("GET /api/household", s.assigned(http.HandlerFunc(s.membershipH.Household)))
	mux.Handle("POST /api/household/leave", s.assigned(http.HandlerFunc(s.membershipH.LeaveHousehold)))
	mux.Handle("DELETE /api/household", s.assigned(middleware.RequireOwner(http.HandlerFunc(s.membershipH.DeleteHousehold))))

	// Verified owner
	mux.Handle("POST /api/invites", s.owner(
		middleware.RateLimit(s.rateLimiter, middleware.UserKey("invite"), 20, time.Hour)(http.HandlerFunc(s.membershipH.ReserveInvite)),
	))
	mux.Handle("GET /api/invites", s.owner(http.HandlerFunc(s.membershipH.ListInvites)))
	mux.Handle("POST /api/invites/revoke", s.owner(http.HandlerFunc(s.membershipH.RevokeInvite)))
	mux.Handle("GET /api/members", s.owner(http.HandlerFunc(s.membershipH.ListMembers)))
	mux.Handle("DELETE /api/members/{id}", s.owner(http.HandlerFunc(s.membershipH.RemoveMember)))
	mux.Handle("PUT /api/household", s.owner(http.HandlerFunc(s.membershipH.RenameHousehold)))

	// Verified household features
	mux.Handle("GET /api/products", s.verified(s.productH.List))
	mux.Handle("POST /api/products", s.verified(s.productH.Create))
	mux.Handle("PUT /api/products/{id}", s.verified(s.productH.Update))
	mux.Handle("DELETE /api/products/{id}", s.verified(s.productH.Delete))
	mux.Handle("GET /ws", s.verified(ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket"))))

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) limitByIP(prefix string, limit int, window time.Duration, h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.IPKey(prefix), limit, window)(h)
}

func (s *Server) session(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.sessionStore, s.userStore)(h)
}

func (s *Server) assigned(h http.Handler) http.Handler {
	return middleware.RequireAuth(s.sessionStore, s.userStore)(middleware.RequireAssigned(h))
}

func (s *Server) verified(h http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(s.sessionStore, s.userStore)(middleware.RequireVerified(h))
}

func (s *Server) owner(h http.Handler) http.Handler {
	return middleware.RequireAuth(s.sessionStore, s.userStore)(middleware.RequireVerified(middleware.RequireOwner(h)))
}
