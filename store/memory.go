package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gravecare-api/apperrors"
	"gravecare-api/models"
)

// MemoryOrderStore is an in-process OrderStore with the same validation and
// ordering rules as MongoOrderStore.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders []models.Order
	now    func() time.Time
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{now: time.Now}
}

func (s *MemoryOrderStore) Create(_ context.Context, ownerID primitive.ObjectID, fields models.OrderFields) (models.Order, error) {
	if ownerID.IsZero() {
		return models.Order{}, apperrors.Validation(map[string]string{"userId": "is required"}, nil)
	}
	if err := validateOrder(fields); err != nil {
		return models.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	order := models.Order{
		ID:          primitive.NewObjectID(),
		UserID:      ownerID,
		OrderFields: fields,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.orders = append(s.orders, order)
	return order, nil
}

func (s *MemoryOrderStore) ListByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Order{}
	// Walk backwards so equal timestamps keep newest-inserted first.
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == ownerID {
			out = append(out, s.orders[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Len reports how many orders have been stored.
func (s *MemoryOrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// MemoryUserStore is an in-process UserStore.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[primitive.ObjectID]models.User
	byEmail map[string]primitive.ObjectID
	now     func() time.Time
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[primitive.ObjectID]models.User),
		byEmail: make(map[string]primitive.ObjectID),
		now:     time.Now,
	}
}

func (s *MemoryUserStore) Create(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[user.Email]; ok {
		return models.User{}, apperrors.DuplicateEmail(nil)
	}
	now := s.now().UTC()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user.ID
	return user, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id primitive.ObjectID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

// Len reports how many users have been stored.
func (s *MemoryUserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
