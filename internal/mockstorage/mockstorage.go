// Package mockstorage provides a testify-based mock implementation
// of the storage interfaces used by the service and router packages.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/user"
)

// StorageMock is a testify mock that implements every storage operation.
type StorageMock struct {
	mock.Mock
}

// Ping mocks the storage health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// CreateUser mocks account creation and returns a generated ID.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User, tx *sql.Tx) (int64, error) {
	args := m.Called(ctx, usr, tx)
	return args.Get(0).(int64), args.Error(1)
}

// FindUserByEmail mocks the email lookup.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string, tx *sql.Tx) (*user.User, bool, error) {
	args := m.Called(ctx, email, tx)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetUserByID mocks fetching an account by its ID.
func (m *StorageMock) GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetUserWithProfile mocks the account/profile join.
func (m *StorageMock) GetUserWithProfile(ctx context.Context, userID int64) (*user.WithProfile, bool, error) {
	args := m.Called(ctx, userID)
	withProfile, _ := args.Get(0).(*user.WithProfile)
	return withProfile, args.Bool(1), args.Error(2)
}

// UpsertUserProfile mocks the profile upsert.
func (m *StorageMock) UpsertUserProfile(ctx context.Context, profile *user.Profile, tx *sql.Tx) error {
	args := m.Called(ctx, profile, tx)
	return args.Error(0)
}

// AddToCart mocks adding a product to a cart.
func (m *StorageMock) AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error) {
	args := m.Called(ctx, userID, productID)
	entry, _ := args.Get(0).(*models.CartEntry)
	return entry, args.Error(1)
}

// GetCart mocks listing a cart.
func (m *StorageMock) GetCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]models.CartItem)
	return items, args.Error(1)
}

// RemoveFromCart mocks removing a cart entry.
func (m *StorageMock) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	args := m.Called(ctx, userID, productID)
	return args.Error(0)
}

// UpdateCartQuantity mocks setting a cart entry quantity.
func (m *StorageMock) UpdateCartQuantity(
	ctx context.Context,
	userID,
	productID int64,
	quantity int,
) (*models.CartEntry, bool, error) {
	args := m.Called(ctx, userID, productID, quantity)
	entry, _ := args.Get(0).(*models.CartEntry)
	return entry, args.Bool(1), args.Error(2)
}

// GetProducts mocks listing the catalog.
func (m *StorageMock) GetProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]models.Product)
	return products, args.Error(1)
}

// GetProductByID mocks fetching one product.
func (m *StorageMock) GetProductByID(ctx context.Context, productID int64) (*models.Product, bool, error) {
	args := m.Called(ctx, productID)
	product, _ := args.Get(0).(*models.Product)
	return product, args.Bool(1), args.Error(2)
}

// CreateProduct mocks inserting a product.
func (m *StorageMock) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	args := m.Called(ctx, product)
	created, _ := args.Get(0).(*models.Product)
	return created, args.Error(1)
}

// Close mocks closing the storage and releasing resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
