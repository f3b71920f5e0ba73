package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/user"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error)

	FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error)

	GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error)

	GetUserWithProfile(ctx context.Context, userID int64) (*user.WithProfile, bool, error)

	UpsertUserProfile(ctx context.Context, profile *user.Profile, transaction *sql.Tx) error
}

type cartKeeper interface {
	AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error)

	GetCart(ctx context.Context, userID int64) ([]models.CartItem, error)

	RemoveFromCart(ctx context.Context, userID, productID int64) error

	UpdateCartQuantity(
		ctx context.Context,
		userID,
		productID int64,
		quantity int,
	) (*models.CartEntry, bool, error)
}

type productKeeper interface {
	GetProducts(ctx context.Context) ([]models.Product, error)

	GetProductByID(ctx context.Context, productID int64) (*models.Product, bool, error)

	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	transactioner
	userKeeper
	cartKeeper
	productKeeper
	pinger
}

type passwordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type tokenIssuer interface {
	Issue(userID int64, userName string) (string, error)
}

type Service struct {
	db     storage
	hasher passwordHasher
	tokens tokenIssuer
}

func New(
	db storage,
	hasher passwordHasher,
	tokens tokenIssuer,
) *Service {
	return &Service{
		db:     db,
		hasher: hasher,
		tokens: tokens,
	}
}

// Register creates an account and, when profile fields are present, its profile.
// Both writes share one transaction. The email is checked up front and the
// storage unique constraint catches the racing case; both yield models.ErrDuplicateEmail.
func (s *Service) Register(
	ctx context.Context,
	request *models.RegisterRequest,
) (*models.PublicUser, error) {
	_, found, err := s.db.FindUserByEmail(ctx, request.Email, nil)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, models.ErrDuplicateEmail
	}

	passwordHash, err := s.hasher.Hash(request.Password)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.db.RollbackTransaction(tx)
	}()

	usr := &user.User{
		Name:         request.Name,
		Surname:      request.Surname,
		Email:        request.Email,
		PasswordHash: passwordHash,
	}
	usr.ID, err = s.db.CreateUser(ctx, usr, tx)
	if err != nil {
		return nil, err
	}

	if !request.ProfileFields.IsEmpty() {
		if err := s.db.UpsertUserProfile(ctx, profileFromFields(usr.ID, request.ProfileFields), tx); err != nil {
			return nil, err
		}
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return nil, err
	}

	return &models.PublicUser{
		ID:      usr.ID,
		Name:    usr.Name,
		Surname: usr.Surname,
		Email:   usr.Email,
	}, nil
}

// Login verifies the credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	usr, found, err := s.db.FindUserByEmail(ctx, email, nil)
	if err != nil {
		return "", err
	}
	if !found {
		return "", models.ErrUserNotFound
	}

	if !s.hasher.Verify(password, usr.PasswordHash) {
		return "", models.ErrInvalidPassword
	}

	return s.tokens.Issue(usr.ID, usr.Name)
}

// FindByEmail returns the account with the given email, or nil when there is none.
func (s *Service) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	usr, found, err := s.db.FindUserByEmail(ctx, email, nil)
	if err != nil || !found {
		return nil, err
	}
	return usr, nil
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*models.UserData, error) {
	usr, found, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrRecordNotFound
	}

	return &models.UserData{
		Name:    usr.Name,
		Surname: usr.Surname,
		Email:   usr.Email,
	}, nil
}

// GetProfile returns the account with its profile. An account without a
// profile is reported as models.ErrRecordNotFound.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*models.UserInfo, error) {
	withProfile, found, err := s.db.GetUserWithProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrRecordNotFound
	}

	return &models.UserInfo{
		UserData: models.UserData{
			Name:    withProfile.Name,
			Surname: withProfile.Surname,
			Email:   withProfile.Email,
		},
		ProfileFields: models.ProfileFields{
			Country:     withProfile.Profile.Country,
			City:        withProfile.Profile.City,
			Street:      withProfile.Profile.Street,
			HouseNumber: withProfile.Profile.HouseNumber,
			Phone:       withProfile.Profile.Phone,
		},
	}, nil
}

func (s *Service) UpsertProfile(ctx context.Context, userID int64, fields models.ProfileFields) error {
	return s.db.UpsertUserProfile(ctx, profileFromFields(userID, fields), nil)
}

func (s *Service) AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error) {
	return s.db.AddToCart(ctx, userID, productID)
}

func (s *Service) ListCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return s.db.GetCart(ctx, userID)
}

func (s *Service) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	return s.db.RemoveFromCart(ctx, userID, productID)
}

// SetCartQuantity rejects quantities below 1 before touching storage.
func (s *Service) SetCartQuantity(
	ctx context.Context,
	userID,
	productID int64,
	quantity int,
) (*models.CartEntry, error) {
	if quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	entry, found, err := s.db.UpdateCartQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrRecordNotFound
	}

	return entry, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.db.GetProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, found, err := s.db.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, request *models.CreateProductRequest) (*models.Product, error) {
	return s.db.CreateProduct(ctx, &models.Product{
		Name:  request.Name,
		Price: request.Price,
	})
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// IsClientError reports whether err is one of the client-facing failures.
func IsClientError(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr)
}

func profileFromFields(userID int64, fields models.ProfileFields) *user.Profile {
	return &user.Profile{
		UserID:      userID,
		Country:     fields.Country,
		City:        fields.City,
		Street:      fields.Street,
		HouseNumber: fields.HouseNumber,
		Phone:       fields.Phone,
	}
}
