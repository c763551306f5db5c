package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"checkit-service/auth"
	"checkit-service/models"

	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	logger "github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// logRequest logs the request with the specified format.
// Shared package-level function to avoid duplicating it on every handler
// struct; reuses httpserver context utils for route details.
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	routeName := httpserver.GetRouteName(ctx)
	method := httpserver.GetRouteMethod(ctx)
	path := httpserver.GetRoutePath(ctx)

	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + routeName + " - " + method + " - " + path
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", routeName),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

// Authenticated wraps a handler with bearer-token authentication. A missing
// or malformed header is a 401; a token that fails verification is a 403.
// On success the user id is attached to the context for the wrapped handler.
func Authenticated(tokens *auth.TokenManager, next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Access denied. No token provided"))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewValidationError("Access denied. No token provided"))
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			logRequest(ctx, "error", "Token verification failed", zap.Error(err))
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(errs.NewValidationError("Invalid or expired token."))
			return
		}

		next(auth.WithUserID(ctx, claims.UserID), w, r)
	})
}

// WithCORS adds permissive CORS headers (the service is consumed by a
// browser frontend on another origin).
func WithCORS(next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		next(ctx, w, r)
	})
}

// Preflight answers CORS preflight requests; registered per path for the
// OPTIONS method.
func Preflight(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
}

// authUserID pulls the authenticated user id attached by Authenticated.
func authUserID(ctx context.Context) (int, bool) {
	return auth.UserID(ctx)
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validEmail reports whether the (already trimmed) email looks like an
// address: something@domain.tld, no whitespace.
func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseDate parses the TEXT date representation used throughout the store.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// validateTitle enforces the shared title rules: required, non-blank after
// trimming, at most 100 characters. kind names the entity for the message.
func validateTitle(title string, kind string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%s title is required.", kind)
	}
	if utf8.RuneCountInString(title) > 100 {
		return fmt.Errorf("%s title must be under 100 characters.", kind)
	}
	return nil
}

// validateDescription enforces the 300-character cap on optional
// descriptions.
func validateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > 300 {
		return fmt.Errorf("Description must be under 300 characters.")
	}
	return nil
}

// validateDates checks that both dates parse and that dateCompleted does not
// precede dateCreated.
func validateDates(dateCreated, dateCompleted *string) error {
	var created, completed time.Time
	var err error

	if dateCreated != nil && *dateCreated != "" {
		created, err = parseDate(*dateCreated)
		if err != nil {
			return fmt.Errorf("Invalid dateCreated format.")
		}
	}
	if dateCompleted != nil && *dateCompleted != "" {
		completed, err = parseDate(*dateCompleted)
		if err != nil {
			return fmt.Errorf("Invalid dateCompleted format.")
		}
	}
	if !created.IsZero() && !completed.IsZero() && completed.Before(created) {
		return fmt.Errorf("dateCompleted cannot be earlier than dateCreated.")
	}
	return nil
}

// validateStatus checks the status enumeration; empty/omitted is allowed.
func validateStatus(status *string) error {
	if status != nil && *status != "" && !models.AllowedStatuses[*status] {
		return fmt.Errorf("Invalid task status.")
	}
	return nil
}

// validatePriority checks the priority enumeration; empty/omitted is allowed.
func validatePriority(priority *string) error {
	if priority != nil && *priority != "" && !models.AllowedPriorities[*priority] {
		return fmt.Errorf("Invalid task priority.")
	}
	return nil
}

// validateChecklistContent enforces the checklist content rules. Exactly 100
// characters is accepted; 101 is not.
func validateChecklistContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("Checklist content is required.")
	}
	if utf8.RuneCountInString(content) > 100 {
		return fmt.Errorf("Checklist content must be under 100 characters.")
	}
	return nil
}
