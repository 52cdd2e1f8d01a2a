package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gravecare-api/apperrors"
	"gravecare-api/metrics"
	"gravecare-api/models"
	"gravecare-api/store"
)

type fakeNotifier struct {
	configured bool
	err        error
	panics     bool
	block      bool

	mu    sync.Mutex
	sent  []models.Order
	ctxOK []bool
}

func (n *fakeNotifier) IsConfigured() bool { return n.configured }

func (n *fakeNotifier) Send(ctx context.Context, order models.Order) error {
	if n.panics {
		panic("transport exploded")
	}
	if n.block {
		<-ctx.Done()
		return ctx.Err()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, order)
	n.ctxOK = append(n.ctxOK, ctx.Err() == nil)
	return n.err
}

func (n *fakeNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fakeQueue struct {
	err    error
	orders []models.Order
}

func (q *fakeQueue) Enqueue(_ context.Context, order models.Order) error {
	if q.err != nil {
		return q.err
	}
	q.orders = append(q.orders, order)
	return nil
}

type brokenStore struct{ err error }

func (s brokenStore) Create(context.Context, primitive.ObjectID, models.OrderFields) (models.Order, error) {
	return models.Order{}, s.err
}

func (s brokenStore) ListByOwner(context.Context, primitive.ObjectID) ([]models.Order, error) {
	return nil, s.err
}

func validInput() OrderInput {
	return OrderInput{
		Lat:     ptr(40.1),
		Lng:     ptr(44.5),
		Name:    ptr("Ani"),
		Email:   ptr("a@x.com"),
		Phone:   ptr("+37491000000"),
		Address: ptr("Yerevan"),
	}
}

func TestSubmitEchoesFieldsAndOwner(t *testing.T) {
	orders := store.NewMemoryOrderStore()
	notifier := &fakeNotifier{configured: true}
	svc := NewOrderService(orders, notifier, quietLogger())
	user := primitive.NewObjectID()

	res, err := svc.Submit(context.Background(), user.Hex(), validInput())
	require.NoError(t, err)

	assert.Equal(t, NotificationSent, res.Notification)
	assert.Equal(t, "Order saved and notification sent", res.Message)
	assert.Equal(t, user, res.Order.UserID)
	assert.False(t, res.Order.ID.IsZero())
	assert.Equal(t, models.OrderFields{
		Lat: 40.1, Lng: 44.5, Name: "Ani", Email: "a@x.com", Phone: "+37491000000", Address: "Yerevan",
	}, res.Order.OrderFields)
	require.Equal(t, 1, notifier.calls())
	assert.Equal(t, res.Order.ID, notifier.sent[0].ID)
}

func TestSubmitDeliveryFailureStillSucceeds(t *testing.T) {
	orders := store.NewMemoryOrderStore()
	notifier := &fakeNotifier{configured: true, err: apperrors.Delivery(errors.New("535 auth rejected"))}
	m := metrics.New()
	svc := NewOrderService(orders, notifier, quietLogger(), WithMetrics(m))

	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationFailed, res.Notification)
	assert.Equal(t, "Order saved (notification failed)", res.Message)
	assert.Equal(t, 1, orders.Len())
	assert.Equal(t, 1, notifier.calls())
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP order_notifications_total Order notification outcomes.
# TYPE order_notifications_total counter
order_notifications_total{status="failed"} 1
# HELP orders_created_total Orders durably persisted.
# TYPE orders_created_total counter
orders_created_total 1
`), "orders_created_total", "order_notifications_total"))
}

func TestSubmitUnconfiguredNotifierSkips(t *testing.T) {
	orders := store.NewMemoryOrderStore()
	notifier := &fakeNotifier{configured: false}
	queue := &fakeQueue{}
	svc := NewOrderService(orders, notifier, quietLogger(), WithQueue(queue))

	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationSkipped, res.Notification)
	assert.Equal(t, 1, orders.Len())
	assert.Zero(t, notifier.calls())
	assert.Empty(t, queue.orders)

	res, err = NewOrderService(orders, nil, quietLogger()).Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationSkipped, res.Notification)
}

func TestSubmitQueued(t *testing.T) {
	notifier := &fakeNotifier{configured: true}
	queue := &fakeQueue{}
	svc := NewOrderService(store.NewMemoryOrderStore(), notifier, quietLogger(), WithQueue(queue))

	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationQueued, res.Notification)
	require.Len(t, queue.orders, 1)
	assert.Equal(t, res.Order.ID, queue.orders[0].ID)
	assert.Zero(t, notifier.calls())

	queue.err = errors.New("queue is full")
	res, err = svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationFailed, res.Notification)
}

func TestSubmitRemoteQueueIgnoresLocalMailConfig(t *testing.T) {
	queue := &fakeQueue{}
	svc := NewOrderService(store.NewMemoryOrderStore(), &fakeNotifier{configured: false}, quietLogger(), WithRemoteQueue(queue))

	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationQueued, res.Notification)
	require.Len(t, queue.orders, 1)
	assert.Equal(t, res.Order.ID, queue.orders[0].ID)

	res, err = NewOrderService(store.NewMemoryOrderStore(), nil, quietLogger(), WithRemoteQueue(queue)).
		Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationQueued, res.Notification)
	assert.Len(t, queue.orders, 2)
}

func TestSubmitNotifierPanicIsContained(t *testing.T) {
	orders := store.NewMemoryOrderStore()
	svc := NewOrderService(orders, &fakeNotifier{configured: true, panics: true}, quietLogger())

	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationFailed, res.Notification)
	assert.Equal(t, 1, orders.Len())
}

func TestSubmitSendTimeoutIsBounded(t *testing.T) {
	svc := NewOrderService(store.NewMemoryOrderStore(), &fakeNotifier{configured: true, block: true},
		quietLogger(), WithNotifyTimeout(20*time.Millisecond))

	start := time.Now()
	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationFailed, res.Notification)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSubmitSurvivesCanceledRequest(t *testing.T) {
	notifier := &fakeNotifier{configured: true}
	svc := NewOrderService(store.NewMemoryOrderStore(), notifier, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Submit(ctx, primitive.NewObjectID().Hex(), validInput())
	require.NoError(t, err)
	assert.Equal(t, NotificationSent, res.Notification)
	require.Len(t, notifier.ctxOK, 1)
	assert.True(t, notifier.ctxOK[0])
}

func TestSubmitMissingFields(t *testing.T) {
	drop := map[string]func(*OrderInput){
		"lat":     func(in *OrderInput) { in.Lat = nil },
		"lng":     func(in *OrderInput) { in.Lng = nil },
		"name":    func(in *OrderInput) { in.Name = nil },
		"email":   func(in *OrderInput) { in.Email = ptr("   ") },
		"phone":   func(in *OrderInput) { in.Phone = nil },
		"address": func(in *OrderInput) { in.Address = ptr("") },
	}
	for field, mutate := range drop {
		t.Run(field, func(t *testing.T) {
			orders := store.NewMemoryOrderStore()
			notifier := &fakeNotifier{configured: true}
			svc := NewOrderService(orders, notifier, quietLogger())

			in := validInput()
			mutate(&in)
			_, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), in)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.CodeMissingField, appErr.Code)
			assert.Contains(t, appErr.Details, field)
			assert.Zero(t, orders.Len())
			assert.Zero(t, notifier.calls())
		})
	}
}

func TestSubmitZeroCoordinatesArePresent(t *testing.T) {
	svc := NewOrderService(store.NewMemoryOrderStore(), nil, quietLogger())
	in := validInput()
	in.Lat = ptr(0.0)
	in.Lng = ptr(0.0)

	res, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), in)
	require.NoError(t, err)
	assert.Zero(t, res.Order.Lat)
	assert.Zero(t, res.Order.Lng)
}

func TestSubmitStoreValidationError(t *testing.T) {
	notifier := &fakeNotifier{configured: true}
	rejected := apperrors.Validation(map[string]string{"order": "rejected by collection schema"}, errors.New("Document failed validation"))
	svc := NewOrderService(brokenStore{err: rejected}, notifier, quietLogger())

	_, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details, "order")
	assert.Zero(t, notifier.calls())
}

func TestSubmitEchoesValuesUnchanged(t *testing.T) {
	orders := store.NewMemoryOrderStore()
	svc := NewOrderService(orders, nil, quietLogger())
	user := primitive.NewObjectID()
	in := validInput()
	in.Name = ptr("  Ani ")
	in.Email = ptr("ani at mail")
	in.Address = ptr(" Yerevan\n")
	in.Lat = ptr(400.0)

	res, err := svc.Submit(context.Background(), user.Hex(), in)
	require.NoError(t, err)
	assert.Equal(t, "  Ani ", res.Order.Name)
	assert.Equal(t, "ani at mail", res.Order.Email)
	assert.Equal(t, " Yerevan\n", res.Order.Address)
	assert.Equal(t, 400.0, res.Order.Lat)

	list, err := svc.List(context.Background(), user.Hex())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, res.Order.OrderFields, list[0].OrderFields)
}

func TestSubmitStoreFailure(t *testing.T) {
	notifier := &fakeNotifier{configured: true}
	svc := NewOrderService(brokenStore{err: apperrors.Store("create order", errors.New("no primary"))}, notifier, quietLogger())

	_, err := svc.Submit(context.Background(), primitive.NewObjectID().Hex(), validInput())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStore))
	assert.Zero(t, notifier.calls())
}

func TestSubmitRejectsMalformedSubject(t *testing.T) {
	svc := NewOrderService(store.NewMemoryOrderStore(), nil, quietLogger())
	_, err := svc.Submit(context.Background(), "not-an-id", validInput())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidToken))
}

func TestListIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	svc := NewOrderService(store.NewMemoryOrderStore(), nil, quietLogger())
	a, b := primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex()

	var mine []primitive.ObjectID
	for i := 0; i < 3; i++ {
		res, err := svc.Submit(ctx, a, validInput())
		require.NoError(t, err)
		mine = append(mine, res.Order.ID)
		_, err = svc.Submit(ctx, b, validInput())
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, a)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, o := range list {
		assert.Equal(t, a, o.UserID.Hex())
		assert.Equal(t, mine[len(mine)-1-i], o.ID)
	}

	empty, err := svc.List(ctx, primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
