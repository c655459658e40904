package models

import "time"

// SignupRequest carries the fields accepted at signup. Absent optional fields
// are omitted from the stored document so the store's own defaults apply.
type SignupRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone,omitempty"`
	Type     string `json:"type,omitempty"`
}

// LoginRequest resolves a user by id or phone; id takes precedence when the
// phone is absent.
type LoginRequest struct {
	User  string `json:"user,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// EditUserRequest is the fan-out patch for editUserProfile. Pointers are used
// where an explicit zero value must be distinguishable from "not provided".
type EditUserRequest struct {
	User string `json:"user,omitempty"` // target; admins only when different from the caller

	// User-scoped subset.
	Phone       string `json:"phone,omitempty"`
	Status      string `json:"status,omitempty"`
	FCM         string `json:"fcm,omitempty"`
	Device      string `json:"device,omitempty"`
	Email       string `json:"email,omitempty"`
	NewPassword string `json:"newPassword,omitempty"`

	// Profile-scoped subset.
	Name          string     `json:"name,omitempty"`
	Firstname     string     `json:"firstname,omitempty"`
	Lastname      string     `json:"lastname,omitempty"`
	Birthdate     *time.Time `json:"birthdate,omitempty"`
	Longitude     *float64   `json:"longitude,omitempty"`
	Latitude      *float64   `json:"latitude,omitempty"`
	Address       string     `json:"address,omitempty"`
	Picture       string     `json:"picture,omitempty"`
	RemovePicture bool       `json:"removePicture,omitempty"` // clears the picture independent of Picture
}

// ListUsersRequest filters and paginates the user listing. Page is 1-based.
type ListUsersRequest struct {
	ActorID string `form:"-"`
	Q       string `form:"q"`
	Page    int    `form:"page"`
	Limit   int    `form:"limit"`
	Status  string `form:"status"`
	Type    string `form:"type"`
}

// AuthResult is returned by signup and login: the profile-joined user plus a
// fresh identity token.
type AuthResult struct {
	Success bool   `json:"success"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}

// EditResult reflects the outcome of the two independent sub-updates of
// editUserProfile. Success is the logical AND of both, so a false value may
// still come with partially applied changes.
type EditResult struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

// UserPage is one page of the joined user listing. TotalCount comes from a
// separate count pass and is not guaranteed to observe the same snapshot as
// the page itself.
type UserPage struct {
	Success     bool    `json:"success"`
	Users       []*User `json:"users"`
	CurrentPage int     `json:"currentPage"`
	TotalPages  int     `json:"totalPages"`
	TotalCount  int     `json:"totalCount"`
}

// ChargeRequest creates a charge against a customer source.
type ChargeRequest struct {
	CustomerID  string `json:"customer" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Source      string `json:"source" binding:"required"`
	Description string `json:"description,omitempty"`
}

// TransferRequest moves funds to a user's connected account. The destination
// is resolved from the user's connected PaymentAccount, never supplied raw.
type TransferRequest struct {
	UserID      string `json:"user" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description,omitempty"`
}

// TopupRequest adds funds to the platform balance.
type TopupRequest struct {
	Amount              int64  `json:"amount" binding:"required"`
	Description         string `json:"description,omitempty"`
	StatementDescriptor string `json:"statementDescriptor,omitempty"`
}
