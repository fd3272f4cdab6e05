// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"mealtrack/internal/app"
)

// OIDCConfig holds the single sign-on client. The zero value is disabled.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// NewOIDCConfig discovers the issuer and builds the OAuth2 client for the
// authorization code flow.
func NewOIDCConfig(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*OIDCConfig, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string  `json:"username"`
		Password string  `json:"password"`
		Name     string  `json:"name"`
		HeightCm float64 `json:"heightCm"`
		WeightKg float64 `json:"weightKg"`
		Gender   string  `json:"gender"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := s.svc.Auth.Register(r.Context(), app.Registration{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		HeightCm: req.HeightCm,
		WeightKg: req.WeightKg,
		Gender:   req.Gender,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "username": user.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := s.svc.Auth.Login(r.Context(), req.Username, req.Password, r.UserAgent(), r.RemoteAddr)
	if errors.Is(err, app.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	setSessionCookie(w, r, token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session")
	if err == nil {
		_ = s.svc.Auth.Logout(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled":      s.oidcConfig.Enabled,
		"max_upload_bytes": s.opts.MaxUploadBytes,
		"meal_types":       mealTypeNames(),
	})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		writeError(w, http.StatusNotFound, errors.New("sso disabled"))
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		writeError(w, http.StatusBadRequest, errors.New("invalid state"))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("exchange token: %w", err))
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		s.writeServiceError(w, r, errors.New("no id_token in token response"))
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		s.writeServiceError(w, r, fmt.Errorf("verify id token: %w", err))
		return
	}

	var claims struct {
		Email string `json:"email"`
		Sub   string `json:"sub"`
	}
	if err = idToken.Claims(&claims); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("parse claims: %w", err))
		return
	}

	username := claims.Email
	if username == "" {
		username = claims.Sub
	}

	sessionToken, err := s.svc.Auth.LoginWithUser(r.Context(), username, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	setSessionCookie(w, r, sessionToken)
	http.Redirect(w, r, "/", http.StatusFound)
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
