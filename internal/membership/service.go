// Package membership owns the household lifecycle: invites, role
// assignment, email verification and teardown. Every mutation runs in a
// single database transaction.
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukerupert/shelf/internal/config"
	"github.com/dukerupert/shelf/internal/database"
	"github.com/dukerupert/shelf/internal/email"
	"github.com/dukerupert/shelf/internal/metrics"
	"github.com/dukerupert/shelf/internal/model"
	"github.com/dukerupert/shelf/internal/store"
	"github.com/dukerupert/shelf/internal/websocket"
)

const (
	maxDisplayName   = 32
	maxHouseholdName = 64

	defaultHouseholdName = "Household"
)

// Mailer sends the emails the membership flows depend on.
type Mailer interface {
	SendInvite(ctx context.Context, to, householdName, acceptURL, declineURL string) error
	SendVerification(ctx context.Context, to, verifyURL string) error
}

// Notifier is told about membership changes after they commit.
type Notifier interface {
	Broadcast(householdID int64, msg websocket.Message)
	DisconnectUser(userID int64)
}

type Service struct {
	db       *sql.DB
	mailer   Mailer
	notifier Notifier
	metrics  *metrics.Metrics
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now, mainly so tests can move past token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(db *sql.DB, mailer Mailer, baseURL string, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		db:      db,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "membership"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeEmail trims and lower-cases an address. Every email stored or
// compared by the service goes through it.
func NormalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidEmail is a shape check only: something@something.
func ValidEmail(value string) bool {
	at := strings.IndexByte(value, '@')
	return at > 0 && at < len(value)-1
}

func validateDisplayName(value string) (string, error) {
	name := strings.TrimSpace(value)
	if name == "" || utf8.RuneCountInString(name) > maxDisplayName {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}

func (s *Service) withTx(fn func(st store.Stores) error) error {
	return database.WithTx(s.db, func(tx *sql.Tx) error {
		return fn(store.New(tx))
	})
}

// link builds an absolute URL carrying a raw token.
func (s *Service) link(path, raw string) string {
	return s.baseURL + path + "?token=" + url.QueryEscape(raw)
}

// caller loads the acting account.
func caller(st store.Stores, userID int64) (*model.User, error) {
	u, err := st.Users.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// owner loads the acting account and requires it to own a household.
func owner(st store.Stores, userID int64) (*model.User, error) {
	u, err := caller(st, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasRole(model.RoleOwner) || u.HouseholdID == nil {
		return nil, ErrForbidden
	}
	return u, nil
}

// deliveryError makes every mail failure match email.ErrDelivery unless it
// is a configuration problem.
func deliveryError(err error) error {
	if errors.Is(err, email.ErrDelivery) || errors.Is(err, config.ErrMissingConfiguration) {
		return err
	}
	return fmt.Errorf("%w: %w", email.ErrDelivery, err)
}

func (s *Service) broadcast(householdID int64, entity, action string, id int64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(householdID, websocket.NewMessage(entity, action, id, nil))
}

func (s *Service) disconnect(userIDs ...int64) {
	if s.notifier == nil {
		return
	}
	for _, id := range userIDs {
		s.notifier.DisconnectUser(id)
	}
}
