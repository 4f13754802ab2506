// Package auth implements credential checks and login session
// bookkeeping.
package auth

import "time"

// Account is the credential view of a directory member.
type Account struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	IsActive     bool
}

// SessionRecord mirrors a redis session into postgres so active
// logins survive cache flushes and can be audited.
type SessionRecord struct {
	ID        string
	MemberID  int64
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}
