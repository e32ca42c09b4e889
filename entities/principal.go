package entities

import "time"

// Principal is the verified identity behind one request or one open session.
type Principal struct {
	UserID    string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (p Principal) IsZero() bool { return p.UserID == "" }
