package models

import "time"

// PasswordResetToken is a single-use credential-recovery token. At most one
// live token exists per user; validity is a pure function of IssuedAt and is
// checked lazily at reset time, not by a background sweep.
type PasswordResetToken struct {
	ID       string    `json:"id" firestore:"-"` // Document ID
	UserID   string    `json:"user" firestore:"user"`
	Token    string    `json:"-" firestore:"token"`
	IssuedAt time.Time `json:"issuedAt" firestore:"issuedAt"`
}

// ExpiredAt reports whether the token is past the validity window at the
// given instant.
func (t *PasswordResetToken) ExpiredAt(now time.Time, validity time.Duration) bool {
	return now.Sub(t.IssuedAt) > validity
}
