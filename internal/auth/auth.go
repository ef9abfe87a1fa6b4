// Package auth registers the OAuth providers users sign in with.
package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"

	"safeform/internal/config"
	"safeform/internal/logger"
)

// InitGothProviders configures gothic's state store and registers the
// providers that have credentials. It returns the registered provider names.
func InitGothProviders(cfg config.AuthConfig, sessionSecret string, secure bool) []string {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.MaxAge(600)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode
	gothic.Store = store

	var providers []goth.Provider
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers = append(providers, google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, "email", "profile"))
	} else {
		logger.Warn("google OAuth credentials missing, sign-in disabled")
	}

	goth.ClearProviders()
	goth.UseProviders(providers...)

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return names
}
