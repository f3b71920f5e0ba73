// Package user defines the shop account model: the identity record used for
// login and the optional address/contact profile attached to it.
package user

// User is a registered shop account.
type User struct {
	// ID is the database-assigned identifier.
	ID int64

	Name    string
	Surname string

	// Email is unique and compared case-sensitively, as stored.
	Email string

	// PasswordHash is a self-describing bcrypt hash. It never leaves the service layer.
	PasswordHash string
}

// Profile is the address/contact record of a user. A user has at most one.
type Profile struct {
	UserID      int64
	Country     string
	City        string
	Street      string
	HouseNumber string
	Phone       string
}

// WithProfile is a user joined with its profile row.
type WithProfile struct {
	User
	Profile Profile
}
