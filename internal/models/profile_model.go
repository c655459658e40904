package models

import "time"

// Profile holds the extended attributes of a user. A profile is owned 1:1 by
// its user and is created in the same provisioning operation; it is never
// created standalone.
type Profile struct {
	ID               string     `json:"id" firestore:"-"` // Document ID, auto-generated
	UserID           string     `json:"user" firestore:"user"`
	Name             string     `json:"name,omitempty" firestore:"name,omitempty"`
	Firstname        string     `json:"firstname,omitempty" firestore:"firstname,omitempty"`
	Lastname         string     `json:"lastname,omitempty" firestore:"lastname,omitempty"`
	Birthdate        *time.Time `json:"birthdate,omitempty" firestore:"birthdate,omitempty"`
	Longitude        float64    `json:"longitude,omitempty" firestore:"longitude,omitempty"`
	Latitude         float64    `json:"latitude,omitempty" firestore:"latitude,omitempty"`
	Address          string     `json:"address,omitempty" firestore:"address,omitempty"`
	Picture          string     `json:"picture,omitempty" firestore:"picture,omitempty"` // storage key, not a URL
	PaymentAccountID string     `json:"paymentAccount,omitempty" firestore:"paymentAccount,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt        time.Time  `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`

	// PictureURL is a short-lived presigned download URL resolved from
	// Picture at read time. Never stored.
	PictureURL string `json:"pictureUrl,omitempty" firestore:"-"`
}
