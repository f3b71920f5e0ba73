// Package memorystorage is an in-process implementation of the shop storage.
// It is used when no database DSN is configured and in tests. It enforces the
// same constraints as the PostgreSQL schema: unique emails, one profile per
// user, one cart entry per (user, product) and existing products in carts.
package memorystorage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/user"
)

type MemoryStorage struct {
	mu sync.RWMutex

	users         map[int64]user.User
	emailsToUsers map[string]int64
	profiles      map[int64]user.Profile
	products      map[int64]models.Product
	carts         map[int64][]models.CartEntry

	nextUserID    int64
	nextProductID int64
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		users:         map[int64]user.User{},
		emailsToUsers: map[string]int64{},
		profiles:      map[int64]user.Profile{},
		products:      map[int64]models.Product{},
		carts:         map[int64][]models.CartEntry{},
		nextUserID:    1,
		nextProductID: 1,
	}, nil
}

func (s *MemoryStorage) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emailsToUsers[usr.Email]; exists {
		return 0, models.ErrDuplicateEmail
	}

	stored := *usr
	stored.ID = s.nextUserID
	s.nextUserID++

	s.users[stored.ID] = stored
	s.emailsToUsers[stored.Email] = stored.ID

	return stored.ID, nil
}

func (s *MemoryStorage) FindUserByEmail(
	ctx context.Context,
	email string,
	transaction *sql.Tx,
) (*user.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, found := s.emailsToUsers[email]
	if !found {
		return nil, false, nil
	}
	usr := s.users[userID]

	return &usr, true, nil
}

func (s *MemoryStorage) GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, found := s.users[userID]
	if !found {
		return nil, false, nil
	}

	return &usr, true, nil
}

func (s *MemoryStorage) GetUserWithProfile(ctx context.Context, userID int64) (*user.WithProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, found := s.users[userID]
	if !found {
		return nil, false, nil
	}
	profile, found := s.profiles[userID]
	if !found {
		return nil, false, nil
	}

	return &user.WithProfile{User: usr, Profile: profile}, true, nil
}

func (s *MemoryStorage) UpsertUserProfile(ctx context.Context, profile *user.Profile, transaction *sql.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.users[profile.UserID]; !found {
		return models.ErrRecordNotFound
	}
	s.profiles[profile.UserID] = *profile

	return nil
}

func (s *MemoryStorage) AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.users[userID]; !found {
		return nil, models.ErrRecordNotFound
	}
	if _, found := s.products[productID]; !found {
		return nil, models.ErrProductNotFound
	}

	entries := s.carts[userID]
	for i := range entries {
		if entries[i].ProductID == productID {
			entries[i].Quantity++
			entry := entries[i]
			return &entry, nil
		}
	}

	entry := models.CartEntry{UserID: userID, ProductID: productID, Quantity: 1}
	s.carts[userID] = append(entries, entry)

	return &entry, nil
}

func (s *MemoryStorage) GetCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []models.CartItem{}
	for _, entry := range s.carts[userID] {
		product := s.products[entry.ProductID]
		result = append(result, models.CartItem{
			CartEntry: entry,
			Name:      product.Name,
			Price:     product.Price,
		})
	}

	return result, nil
}

func (s *MemoryStorage) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, found := s.carts[userID]
	if !found {
		return nil
	}
	s.carts[userID] = funk.Filter(entries, func(entry models.CartEntry) bool {
		return entry.ProductID != productID
	}).([]models.CartEntry)

	return nil
}

func (s *MemoryStorage) UpdateCartQuantity(
	ctx context.Context,
	userID,
	productID int64,
	quantity int,
) (*models.CartEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.carts[userID]
	for i := range entries {
		if entries[i].ProductID == productID {
			entries[i].Quantity = quantity
			entry := entries[i]
			return &entry, true, nil
		}
	}

	return nil, false, nil
}

func (s *MemoryStorage) GetProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Product, 0, len(s.products))
	for id := int64(1); id < s.nextProductID; id++ {
		if product, found := s.products[id]; found {
			result = append(result, product)
		}
	}

	return result, nil
}

func (s *MemoryStorage) GetProductByID(ctx context.Context, productID int64) (*models.Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, found := s.products[productID]
	if !found {
		return nil, false, nil
	}

	return &product, true, nil
}

func (s *MemoryStorage) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := models.Product{
		ID:        s.nextProductID,
		Name:      product.Name,
		Price:     product.Price,
		CreatedAt: time.Now(),
	}
	s.nextProductID++
	s.products[stored.ID] = stored

	return &stored, nil
}

// BeginTransaction returns a nil transaction: every call is applied immediately.
func (s *MemoryStorage) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (s *MemoryStorage) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (s *MemoryStorage) CommitTransaction(transaction *sql.Tx) error {
	return nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
