package models

import "time"

// User is a single account in the credential store. Optional fields are
// left empty when absent so the store can keep them out of unique indexes.
type User struct {
	ID           string    `json:"id"                 bson:"_id"`
	Name         string    `json:"name"               bson:"name"`
	Username     string    `json:"username,omitempty" bson:"username,omitempty"`
	Email        string    `json:"email"              bson:"email"`
	PasswordHash string    `json:"-"                  bson:"password,omitempty"` // never serialize
	GoogleID     string    `json:"googleId,omitempty" bson:"googleId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"          bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"          bson:"updatedAt"`
}

// PublicUser is the projection returned alongside a freshly issued token.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// RegisterRequest is the JSON body for POST /api/register.
type RegisterRequest struct {
	Name        string `json:"name"        validate:"required"`
	Username    string `json:"username"    validate:"required"`
	Email       string `json:"email"       validate:"required,email"`
	Password    string `json:"password"    validate:"required,bcryptmax"`
	ConfirmPass string `json:"confirmPass" validate:"required,eqfield=Password"`
}

// LoginRequest is the JSON body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GoogleLoginRequest is the JSON body for POST /api/google-login.
type GoogleLoginRequest struct {
	Token string `json:"token" validate:"required"`
}

// MessageResponse acknowledges a request that produces no token.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResponse is returned by both login flows.
type AuthResponse struct {
	Message string     `json:"message"`
	Token   string     `json:"token"`
	User    PublicUser `json:"user"`
}
