// Package postgresdb provides a PostgreSQL-based implementation of the shop storage:
// user accounts with their profiles, the product catalog and per-user carts.
// Schema migrations are applied with goose from the embedded migrations.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/shop/internal/models"
	"github.com/patric-chuzhbe/shop/internal/user"
	"github.com/patric-chuzhbe/shop/migrations"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresDB is a PostgreSQL-backed implementation of the shop storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables or disables dropping every table before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New opens the database, runs the embedded migrations and returns a PostgresDB.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, "."); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

func (db *PostgresDB) queryerFor(transaction *sql.Tx) queryer {
	if transaction == nil {
		return db.database
	}
	return transaction
}

func (db *PostgresDB) executorFor(transaction *sql.Tx) executor {
	if transaction == nil {
		return db.database
	}
	return transaction
}

// CreateUser inserts a new account and returns its id.
// A duplicate email yields models.ErrDuplicateEmail.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (int64, error) {
	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`
			INSERT INTO users (name, surname, email, password_hash)
				VALUES ($1, $2, $3, $4)
				RETURNING id
		`,
		usr.Name,
		usr.Surname,
		usr.Email,
		usr.PasswordHash,
	)
	var userID int64
	if err := row.Scan(&userID); err != nil {
		if isUniqueViolation(err) {
			return 0, models.ErrDuplicateEmail
		}
		return 0, err
	}

	return userID, nil
}

// FindUserByEmail looks up an account by its exact email.
func (db *PostgresDB) FindUserByEmail(
	ctx context.Context,
	email string,
	transaction *sql.Tx,
) (*user.User, bool, error) {
	row := db.queryerFor(transaction).QueryRowContext(
		ctx,
		`SELECT id, name, surname, email, password_hash FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// GetUserByID looks up an account by id.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID int64) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, surname, email, password_hash FROM users WHERE id = $1`,
		userID,
	)

	return scanUser(row)
}

// GetUserWithProfile returns the account joined with its profile.
// An account without a profile row is reported as not found.
func (db *PostgresDB) GetUserWithProfile(ctx context.Context, userID int64) (*user.WithProfile, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT users.id, users.name, users.surname, users.email,
				user_info.kraj, user_info.miasto, user_info.ulica, user_info.nrdomu, user_info.telefon
				FROM users
					JOIN user_info ON user_info.user_id = users.id
				WHERE users.id = $1
		`,
		userID,
	)

	result := &user.WithProfile{}
	err := row.Scan(
		&result.ID,
		&result.Name,
		&result.Surname,
		&result.Email,
		&result.Profile.Country,
		&result.Profile.City,
		&result.Profile.Street,
		&result.Profile.HouseNumber,
		&result.Profile.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	result.Profile.UserID = result.ID

	return result, true, nil
}

// UpsertUserProfile inserts the profile row or overwrites every field of the existing one.
func (db *PostgresDB) UpsertUserProfile(ctx context.Context, profile *user.Profile, transaction *sql.Tx) error {
	_, err := db.executorFor(transaction).ExecContext(
		ctx,
		`
			INSERT INTO user_info (user_id, kraj, miasto, ulica, nrdomu, telefon)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (user_id) DO UPDATE
				SET
					kraj = EXCLUDED.kraj,
					miasto = EXCLUDED.miasto,
					ulica = EXCLUDED.ulica,
					nrdomu = EXCLUDED.nrdomu,
					telefon = EXCLUDED.telefon
		`,
		profile.UserID,
		profile.Country,
		profile.City,
		profile.Street,
		profile.HouseNumber,
		profile.Phone,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ErrRecordNotFound
		}
		return err
	}

	return nil
}

// AddToCart puts one unit of the product into the user's cart.
// Adding a product that is already there increments its quantity.
func (db *PostgresDB) AddToCart(ctx context.Context, userID, productID int64) (*models.CartEntry, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			INSERT INTO cart (user_id, product_id, quantity)
				VALUES ($1, $2, 1)
				ON CONFLICT (user_id, product_id) DO UPDATE
				SET quantity = cart.quantity + 1
				RETURNING user_id, product_id, quantity
		`,
		userID,
		productID,
	)

	entry := &models.CartEntry{}
	if err := row.Scan(&entry.UserID, &entry.ProductID, &entry.Quantity); err != nil {
		if isForeignKeyViolation(err) {
			if violatedConstraint(err, "product") {
				return nil, models.ErrProductNotFound
			}
			return nil, models.ErrRecordNotFound
		}
		return nil, err
	}

	return entry, nil
}

// GetCart lists the user's cart entries joined with their products, oldest first.
func (db *PostgresDB) GetCart(ctx context.Context, userID int64) ([]models.CartItem, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT cart.user_id, cart.product_id, cart.quantity, products.name, products.price
				FROM cart
					JOIN products ON products.id = cart.product_id
				WHERE cart.user_id = $1
				ORDER BY cart.added_at, cart.product_id
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		err = rows.Scan(&item.UserID, &item.ProductID, &item.Quantity, &item.Name, &item.Price)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RemoveFromCart deletes the entry. Removing a missing entry is not an error.
func (db *PostgresDB) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	_, err := db.database.ExecContext(
		ctx,
		`DELETE FROM cart WHERE user_id = $1 AND product_id = $2`,
		userID,
		productID,
	)

	return err
}

// UpdateCartQuantity sets the quantity of an existing entry.
// The boolean result is false when no entry matched.
func (db *PostgresDB) UpdateCartQuantity(
	ctx context.Context,
	userID,
	productID int64,
	quantity int,
) (*models.CartEntry, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			UPDATE cart SET quantity = $3
				WHERE user_id = $1 AND product_id = $2
				RETURNING user_id, product_id, quantity
		`,
		userID,
		productID,
		quantity,
	)

	entry := &models.CartEntry{}
	if err := row.Scan(&entry.UserID, &entry.ProductID, &entry.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return entry, true, nil
}

// GetProducts returns the whole catalog ordered by id.
func (db *PostgresDB) GetProducts(ctx context.Context) ([]models.Product, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT id, name, price, created_at FROM products ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Price, &product.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetProductByID looks up a single product.
func (db *PostgresDB) GetProductByID(ctx context.Context, productID int64) (*models.Product, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, price, created_at FROM products WHERE id = $1`,
		productID,
	)

	product := &models.Product{}
	if err := row.Scan(&product.ID, &product.Name, &product.Price, &product.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return product, true, nil
}

// CreateProduct inserts a product and returns the stored row.
func (db *PostgresDB) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	row := db.database.QueryRowContext(
		ctx,
		`INSERT INTO products (name, price) VALUES ($1, $2) RETURNING id, name, price, created_at`,
		product.Name,
		product.Price,
	)

	result := &models.Product{}
	if err := row.Scan(&result.ID, &result.Name, &result.Price, &result.CreatedAt); err != nil {
		return nil, err
	}

	return result, nil
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// BeginTransaction starts a new SQL transaction.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}

func scanUser(row *sql.Row) (*user.User, bool, error) {
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Name, &usr.Surname, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func violatedConstraint(err error, fragment string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.Contains(strings.ToLower(pgErr.ConstraintName), fragment)
}
