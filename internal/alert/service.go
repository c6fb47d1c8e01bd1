package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

var notificationsRaised = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "karat_notifications_raised_total",
		Help: "Notifications created by the alerting policy",
	},
	[]string{"reserve_type", "breach"},
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=alert
type Repository interface {
	// CreateIfAbsent stores n unless an unseen notification already exists for
	// the same store and reserve. It reports whether n was stored.
	CreateIfAbsent(ctx context.Context, n *Notification) (bool, error)
	FindActive(ctx context.Context, storeID string, t reserve.Type) (*Notification, error)
	ListActive(ctx context.Context, storeID string) ([]*Notification, error)
	Acknowledge(ctx context.Context, id uuid.UUID) error
}

// Dispatcher hands a new notification to whatever delivers reminders.
type Dispatcher interface {
	Enqueue(ctx context.Context, n *Notification) error
}

type Policy struct {
	repo       Repository
	dispatcher Dispatcher
	now        func() time.Time
}

func NewPolicy(repo Repository, dispatcher Dispatcher) *Policy {
	if dispatcher == nil {
		dispatcher = LogDispatcher{}
	}

	return &Policy{
		repo:       repo,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

type breach string

const (
	breachNone     breach = ""
	breachNegative breach = "negative"
	breachLowStock breach = "low_stock"
)

func classify(balance, threshold decimal.Decimal) breach {
	switch {
	case balance.IsNegative():
		return breachNegative
	case balance.LessThan(threshold):
		return breachLowStock
	}

	return breachNone
}

// Evaluate raises a notification when balance is negative or under threshold and
// no unseen notification exists for the reserve. It returns nil when nothing was raised.
func (p *Policy) Evaluate(
	ctx context.Context,
	storeID string,
	t reserve.Type,
	balance, threshold decimal.Decimal,
) (*Notification, error) {
	kind := classify(balance, threshold)
	if kind == breachNone {
		return nil, nil
	}

	_, err := p.repo.FindActive(ctx, storeID, t)
	if err == nil {
		return nil, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("finding active notification: %w", err)
	}

	n := &Notification{
		ID:          uuid.New(),
		StoreID:     storeID,
		ReserveType: t,
		Message:     message(kind, storeID, t, balance, threshold),
		Link:        fmt.Sprintf("/stores/%s/reserves/%s", storeID, t),
		CreatedAt:   p.now(),
	}

	created, err := p.repo.CreateIfAbsent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	// Lost the race to a concurrent breach on the same reserve.
	if !created {
		return nil, nil
	}

	notificationsRaised.WithLabelValues(string(t), string(kind)).Inc()

	if err := p.dispatcher.Enqueue(ctx, n); err != nil {
		slog.Error("failed to enqueue notification", "error", err, "notification_id", n.ID)
	}

	return n, nil
}

func message(kind breach, storeID string, t reserve.Type, balance, threshold decimal.Decimal) string {
	if kind == breachNegative {
		return fmt.Sprintf("Insufficient balance: %s at %s is %s", t, storeID, balance.String())
	}

	return fmt.Sprintf("Low stock: %s at %s is %s, below %s", t, storeID, balance.String(), threshold.String())
}

func (p *Policy) Acknowledge(ctx context.Context, id uuid.UUID) error {
	return p.repo.Acknowledge(ctx, id)
}

func (p *Policy) ListActive(ctx context.Context, storeID string) ([]*Notification, error) {
	return p.repo.ListActive(ctx, storeID)
}

// LogDispatcher only records the notification in the log. It is used when no
// reminder queue is configured.
type LogDispatcher struct{}

func (LogDispatcher) Enqueue(_ context.Context, n *Notification) error {
	slog.Info("notification raised",
		"notification_id", n.ID,
		"store_id", n.StoreID,
		"reserve_type", n.ReserveType,
		"message", n.Message,
	)

	return nil
}
