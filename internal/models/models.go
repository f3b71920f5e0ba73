package models

import "time"

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Surname  string `json:"surname" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	ProfileFields
}

// ProfileFields is the optional address/contact block. The JSON keys are the
// ones the shop frontend has always sent.
type ProfileFields struct {
	Country     string `json:"kraj"`
	City        string `json:"miasto"`
	Street      string `json:"ulica"`
	HouseNumber string `json:"nrdomu"`
	Phone       string `json:"telefon"`
}

// IsEmpty reports whether none of the profile fields were supplied.
func (p ProfileFields) IsEmpty() bool {
	return p == ProfileFields{}
}

type RegisterResponse struct {
	Success bool       `json:"success"`
	User    PublicUser `json:"user"`
}

type PublicUser struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type UserData struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type UserDataResponse struct {
	Success  bool     `json:"success"`
	UserData UserData `json:"userData"`
}

type UserInfo struct {
	UserData
	ProfileFields
}

type UserInfoResponse struct {
	Success  bool     `json:"success"`
	UserInfo UserInfo `json:"userInfo"`
}

type UpdateUserInfoRequest struct {
	ProfileFields
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateProductRequest struct {
	Name  string  `json:"name" validate:"required"`
	Price float64 `json:"price" validate:"gte=0"`
}

// CartEntry is the (user, product, quantity) association.
type CartEntry struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartItem is a cart entry joined with its product row.
type CartItem struct {
	CartEntry
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type AddToCartRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

type AddToCartResponse struct {
	Success bool      `json:"success"`
	Product CartEntry `json:"product"`
}

type UpdateCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type UpdateCartQuantityResponse struct {
	Success     bool      `json:"success"`
	UpdatedItem CartEntry `json:"updatedItem"`
}

const (
	StorageTypePostgresql = iota + 1
	StorageTypeMemory
)
