package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"voicebot/internal/models"
)

type contextKey string

// UserContextKey is the key for the user in the context.
const UserContextKey = contextKey("user")

// initDataMaxAge bounds how old a Mini App launch may be.
const initDataMaxAge = 24 * time.Hour

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// AuthMiddleware validates the Telegram Mini App initData and puts the user in the context.
func AuthMiddleware(botToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "tma" {
				http.Error(w, "Authorization header format must be 'tma <initData>'", http.StatusUnauthorized)
				return
			}

			if botToken == "" {
				log.Error().Msg("TELEGRAM_BOT_TOKEN is not set")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			raw := parts[1]
			if err := initdata.Validate(raw, botToken, initDataMaxAge); err != nil {
				log.Warn().Err(err).Msg("Invalid init data")
				http.Error(w, "Invalid init data", http.StatusUnauthorized)
				return
			}

			data, err := initdata.Parse(raw)
			if err != nil {
				log.Warn().Err(err).Msg("Error parsing init data")
				http.Error(w, "Error parsing init data", http.StatusBadRequest)
				return
			}

			user := &models.User{
				ID:           data.User.ID,
				Username:     data.User.Username,
				FirstName:    data.User.FirstName,
				LanguageCode: data.User.LanguageCode,
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
