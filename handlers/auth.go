package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"checkit-service/auth"
	"checkit-service/models"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// SignupHandler handles POST /api/auth/signup - registers a user and logs
// them in by returning a fresh session token.
// The duplicate-email lookup is only a fast path; the unique index on the
// email column is the authority, so a constraint violation from the insert
// also maps to 409.
func SignupHandler(db *sqlx.DB, tokens *auth.TokenManager) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		logRequest(ctx, "info", "Signup request")

		var req models.SignupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logRequest(ctx, "error", "Invalid signup body", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
			return
		}

		if req.Email == "" || req.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Email and password are required"))
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if !validEmail(email) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid email format"))
			return
		}

		password := strings.TrimSpace(req.Password)
		if utf8.RuneCountInString(password) < 6 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Password must be at least 6 characters"))
			return
		}

		var existingID int
		err := db.Get(&existingID, "SELECT id FROM users WHERE lower(email) = ?", email)
		if err == nil {
			logRequest(ctx, "info", "Email already registered", zap.String("email", email))
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(errs.NewValidationError("Email already in use"))
			return
		}
		if err != sql.ErrNoRows {
			logRequest(ctx, "error", "Failed to check existing user", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Signup failed"))
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			logRequest(ctx, "error", "Password hashing failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Signup failed"))
			return
		}

		result, err := db.Exec("INSERT INTO users (email, name, passwordHash) VALUES (?, ?, ?)",
			email, "", string(hashed))
		if err != nil {
			// Signup races resolve here: the unique index reports the loser.
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				logRequest(ctx, "info", "Duplicate email on insert", zap.String("email", email))
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(errs.NewValidationError("Email already in use"))
				return
			}
			logRequest(ctx, "error", "Failed to create user", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Signup failed"))
			return
		}

		id, _ := result.LastInsertId()

		token, err := tokens.Issue(int(id))
		if err != nil {
			logRequest(ctx, "error", "Failed to issue token", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Signup failed"))
			return
		}

		logRequest(ctx, "info", "User created", zap.Int64("user_id", id))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "User created",
			"token":   token,
		})
	})
}

// LoginHandler handles POST /api/auth/login. Unknown email, missing stored
// hash and wrong password all collapse into the same 401 so the response
// never reveals which part failed.
func LoginHandler(db *sqlx.DB, tokens *auth.TokenManager) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		logRequest(ctx, "info", "Login request")

		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logRequest(ctx, "error", "Invalid login body", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
			return
		}

		if req.Email == "" || req.Password == "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Email and password are required"))
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))
		if !validEmail(email) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid email format"))
			return
		}

		password := strings.TrimSpace(req.Password)
		if utf8.RuneCountInString(password) < 6 {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("Password must be at least 6 characters"))
			return
		}

		var user models.User
		err := db.Get(&user, "SELECT id, email, name, passwordHash FROM users WHERE lower(email) = ?", email)
		if err == sql.ErrNoRows {
			logRequest(ctx, "info", "Unknown email", zap.String("email", email))
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid credentials"))
			return
		}
		if err != nil {
			logRequest(ctx, "error", "Failed to query user", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Login failed"))
			return
		}

		if user.PasswordHash == "" {
			logRequest(ctx, "error", "User row missing password hash", zap.Int("user_id", user.ID))
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid credentials"))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			logRequest(ctx, "info", "Invalid password", zap.Int("user_id", user.ID))
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid credentials"))
			return
		}

		token, err := tokens.Issue(user.ID)
		if err != nil {
			logRequest(ctx, "error", "Failed to issue token", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Login failed"))
			return
		}

		logRequest(ctx, "info", "Login successful", zap.Int("user_id", user.ID))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}

// MeHandler handles GET /api/auth/me - returns the authenticated user.
func MeHandler(db *sqlx.DB) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		userID, ok := authUserID(ctx)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Not authenticated"))
			return
		}

		var user models.User
		err := db.Get(&user, "SELECT id, email, name FROM users WHERE id = ?", userID)
		if err == sql.ErrNoRows {
			logRequest(ctx, "info", "User not found", zap.Int("user_id", userID))
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(errs.NewNotFoundError("User not found"))
			return
		}
		if err != nil {
			logRequest(ctx, "error", "Failed to fetch user", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to fetch user info"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.MeResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
		})
	})
}
