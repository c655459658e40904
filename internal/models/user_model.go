package models

import "time"

// User type and status/state enums. Status is monotone: an active user may be
// soft-deleted, but a deleted user is never resurrected.
const (
	TypeUser  = "user"
	TypeAdmin = "admin"

	StatusActive  = "active"
	StatusDeleted = "deleted"

	StateOnline  = "online"
	StateOffline = "offline"
)

// DeviceToken is a push-notification registration: one FCM token per device.
type DeviceToken struct {
	Device string `json:"device" firestore:"device"`
	FCM    string `json:"fcm" firestore:"fcm"`
}

// User represents an identity record. The password hash never leaves the
// backend; the joined Profile is attached by the service layer and is not
// stored on the user document itself.
type User struct {
	ID                string        `json:"id" firestore:"-"` // Document ID
	Username          string        `json:"username,omitempty" firestore:"username,omitempty"`
	Email             string        `json:"email" firestore:"email"`
	Phone             string        `json:"phone,omitempty" firestore:"phone,omitempty"`
	Type              string        `json:"type" firestore:"type"`
	Status            string        `json:"status" firestore:"status"`
	State             string        `json:"state" firestore:"state"`
	Devices           []DeviceToken `json:"fcms,omitempty" firestore:"fcms,omitempty"`
	ProfileID         string        `json:"-" firestore:"profile,omitempty"`
	PasswordHash      string        `json:"-" firestore:"passwordHash,omitempty"`
	IsPasswordSet     bool          `json:"isPasswordSet" firestore:"isPasswordSet"`
	IsStripeConnected bool          `json:"isStripeConnected" firestore:"isStripeConnected"`
	CreatedAt         time.Time     `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt         time.Time     `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`

	Profile *Profile `json:"profile,omitempty" firestore:"-"`
}

// IsActive reports whether the user may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// IsAdmin reports whether the user may act on other users' records.
func (u *User) IsAdmin() bool {
	return u.Type == TypeAdmin
}
