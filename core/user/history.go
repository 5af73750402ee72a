package user

import "time"

// Login attempt outcomes.
const (
	LoginStatusSuccess = "success"
	LoginStatusFailed  = "failed"
)

// LoginRecord is a single entry in the login history, recorded for every
// login attempt whether it succeeded or not.
type LoginRecord struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username"`
	Status    string    `json:"status"` // success | failed
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type HistoryFilter struct {
	Username string    `query:"username"`
	Status   string    `query:"status"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
	Limit    int       `query:"limit"`
}
