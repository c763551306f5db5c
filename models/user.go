package models

// User represents a registered account.
// PasswordHash is a bcrypt hash; never returned in JSON responses.
type User struct {
	ID           int    `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	Name         string `json:"name" db:"name"`
	PasswordHash string `json:"-" db:"passwordHash"`
}

// SignupRequest is the POST /api/auth/signup body.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` // Plaintext; hashed in the handler
}

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MeResponse is the GET /api/auth/me body.
type MeResponse struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
