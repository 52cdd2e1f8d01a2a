package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gravecare-api/apperrors"
	"gravecare-api/metrics"
	"gravecare-api/models"
	"gravecare-api/store"
	"gravecare-api/utils"
)

// DefaultNotifyTimeout bounds an inline notification send.
const DefaultNotifyTimeout = 10 * time.Second

// Notifier delivers the new-order summary.
type Notifier interface {
	IsConfigured() bool
	Send(ctx context.Context, order models.Order) error
}

// Queue hands a persisted order to an asynchronous sender.
type Queue interface {
	Enqueue(ctx context.Context, order models.Order) error
}

// NotificationStatus is the outcome of the notification step of a submission.
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationSkipped NotificationStatus = "skipped"
	NotificationFailed  NotificationStatus = "failed"
	NotificationQueued  NotificationStatus = "queued"
)

// Message is the client-facing summary for the status.
func (s NotificationStatus) Message() string {
	switch s {
	case NotificationSent:
		return "Order saved and notification sent"
	case NotificationSkipped:
		return "Order saved (notification skipped: mail transport not configured)"
	case NotificationQueued:
		return "Order saved (notification queued)"
	default:
		return "Order saved (notification failed)"
	}
}

// OrderInput is the decoded request body. Pointers distinguish an absent
// field from its zero value, so a coordinate of 0 is accepted.
type OrderInput struct {
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Name    *string  `json:"name"`
	Email   *string  `json:"email"`
	Phone   *string  `json:"phone"`
	Address *string  `json:"address"`
}

// Fields checks presence and returns the order attributes unchanged. A blank
// string counts as missing.
func (in OrderInput) Fields() (models.OrderFields, error) {
	var missing []string
	str := func(name string, v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
			return ""
		}
		return *v
	}
	num := func(name string, v *float64) float64 {
		if v == nil {
			missing = append(missing, name)
			return 0
		}
		return *v
	}

	fields := models.OrderFields{
		Lat:     num("lat", in.Lat),
		Lng:     num("lng", in.Lng),
		Name:    str("name", in.Name),
		Email:   str("email", in.Email),
		Phone:   str("phone", in.Phone),
		Address: str("address", in.Address),
	}
	if len(missing) > 0 {
		err := apperrors.MissingField("All fields are required: lat, lng, name, email, phone, address")
		for _, f := range missing {
			err.WithDetail(f, "is required")
		}
		return models.OrderFields{}, err
	}
	return fields, nil
}

// SubmitResult is the 201 response body of a successful submission.
type SubmitResult struct {
	Message      string             `json:"message"`
	Notification NotificationStatus `json:"notification"`
	Order        models.Order       `json:"order"`
}

// OrderService persists orders and dispatches their notification. A
// persisted order is never failed by the notification step.
type OrderService struct {
	orders        store.OrderStore
	notifier      Notifier
	queue         Queue
	remoteQueue   bool
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
}

type OrderOption func(*OrderService)

// WithQueue sends notifications through q instead of inline.
func WithQueue(q Queue) OrderOption {
	return func(s *OrderService) { s.queue = q }
}

// WithRemoteQueue sends notifications through q, whose consumer runs in
// another process with its own mail settings. Orders are queued even when the
// local notifier is not configured.
func WithRemoteQueue(q Queue) OrderOption {
	return func(s *OrderService) {
		s.queue = q
		s.remoteQueue = true
	}
}

func WithNotifyTimeout(d time.Duration) OrderOption {
	return func(s *OrderService) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) OrderOption {
	return func(s *OrderService) { s.metrics = m }
}

// NewOrderService creates an OrderService. notifier may be nil, which behaves
// as an unconfigured notifier.
func NewOrderService(orders store.OrderStore, notifier Notifier, log logrus.FieldLogger, opts ...OrderOption) *OrderService {
	s := &OrderService{
		orders:        orders,
		notifier:      notifier,
		notifyTimeout: DefaultNotifyTimeout,
		log:           log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates and persists an order for userID, then notifies.
func (s *OrderService) Submit(ctx context.Context, userID string, in OrderInput) (SubmitResult, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return SubmitResult{}, apperrors.InvalidToken(fmt.Errorf("subject %q is not an object id: %w", userID, err))
	}
	fields, err := in.Fields()
	if err != nil {
		return SubmitResult{}, err
	}

	log := utils.LoggerFrom(ctx, s.log).WithField("user_id", userID)
	order, err := s.orders.Create(ctx, owner, fields)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeValidation) {
			log.WithError(err).WithField("op", "create order").Error("persist order failed")
		}
		return SubmitResult{}, err
	}
	s.metrics.OrderCreated()

	log = log.WithField("order_id", order.ID.Hex())
	status := s.notify(ctx, order, log)
	s.metrics.Notification(string(status))

	return SubmitResult{Message: status.Message(), Notification: status, Order: order}, nil
}

// notify never returns an error; failures are logged and folded into the status.
func (s *OrderService) notify(ctx context.Context, order models.Order, log logrus.FieldLogger) (status NotificationStatus) {
	if !s.remoteQueue && (s.notifier == nil || !s.notifier.IsConfigured()) {
		log.Warn("order notification skipped: mail transport not configured")
		return NotificationSkipped
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("order notification panicked")
			status = NotificationFailed
		}
	}()

	// The order is already durable, so a client disconnect must not abort delivery.
	ctx = context.WithoutCancel(ctx)

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, order); err != nil {
			log.WithError(err).Error("order notification could not be queued")
			return NotificationFailed
		}
		return NotificationQueued
	}

	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Send(ctx, order); err != nil {
		log.WithError(err).Error("order notification failed")
		return NotificationFailed
	}
	log.Info("order notification sent")
	return NotificationSent
}

// List returns the user's orders, newest first.
func (s *OrderService) List(ctx context.Context, userID string) ([]models.Order, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apperrors.InvalidToken(fmt.Errorf("subject %q is not an object id: %w", userID, err))
	}
	orders, err := s.orders.ListByOwner(ctx, owner)
	if err != nil {
		utils.LoggerFrom(ctx, s.log).WithError(err).WithFields(logrus.Fields{"op": "list orders", "user_id": userID}).Error("list orders failed")
		return nil, err
	}
	return orders, nil
}
