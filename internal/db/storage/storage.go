package storage

import (
	"context"
	"database/sql"

	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/user"
)

// Storage is implemented by every shop storage backend.
type Storage interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)

	GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error)

	GetUserWithProfile(ctx context.Context, userID int64) (*user.WithProfile, bool, error)

	UpsertUserProfile(ctx context.Context, profile *user.Profile, transaction *sql.Tx) error

	AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error)

	GetCart(ctx context.Context, userID int64) ([]models.CartItem, error)

	RemoveFromCart(ctx context.Context, userID, productID int64) error

	UpdateCartQuantity(ctx context.Context, userID, productID int64, quantity int) (*models.CartEntry, bool, error)

	GetProducts(ctx context.Context) ([]models.Product, error)

	GetProductByID(ctx context.Context, productID int64) (*models.Product, bool, error)

	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error

	Ping(ctx context.Context) error

	Close() error
}
