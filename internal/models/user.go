package models

import (
	"time"
)

// User is a registered learner. Points are mutated only by the scoring
// ledger and always equal the sum of the user's result records.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Avatar       string    `json:"avatar"`
	Description  string    `json:"description"`
	Points       int       `json:"points"`
	IsAdmin      bool      `json:"-"`
	Level        Level     `json:"level"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public view of a user.
type Profile struct {
	Name        string `json:"name"`
	Username    string `json:"username"`
	Description string `json:"description"`
	Avatar      string `json:"avatar"`
	Points      int    `json:"points"`
}

// Profile returns the public view of the user.
func (u *User) Profile() Profile {
	return Profile{
		Name:        u.Name,
		Username:    u.Username,
		Description: u.Description,
		Avatar:      u.Avatar,
		Points:      u.Points,
	}
}

// ProfileUpdate carries a partial profile edit. Nil fields are left as-is.
type ProfileUpdate struct {
	Name        *string `json:"name,omitempty"`
	Username    *string `json:"username,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// TokenRequest exchanges credentials for an access token.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
