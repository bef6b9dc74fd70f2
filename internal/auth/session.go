package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"
)

const (
	stateCookie   = "wf_oauth_state"
	sessionCookie = "wf_session"

	loginPath   = "/login"
	landingPath = "/docs"

	stateTTL = 10 * time.Minute
)

// LoginHandler starts the authorization code flow. The state value is kept
// in a short-lived cookie and checked again on the callback.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
		return
	}

	state, err := newState()
	if err != nil {
		a.logError("login state", err)
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, a.cookie(stateCookie, state, int(stateTTL.Seconds())))
	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the login. The ID token from the exchange becomes
// the session cookie, and the user's tenant is provisioned if this is the
// first login from that domain.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
		return
	}

	q := r.URL.Query()
	saved, err := r.Cookie(stateCookie)
	if err != nil || saved.Value == "" || q.Get("state") != saved.Value {
		http.Error(w, "login state mismatch", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, a.cookie(stateCookie, "", -1))

	if msg := q.Get("error"); msg != "" {
		http.Error(w, "login failed: "+msg, http.StatusUnauthorized)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), q.Get("code"))
	if err != nil {
		a.logError("code exchange", err)
		http.Error(w, "token exchange failed", http.StatusBadGateway)
		return
	}
	raw, _ := token.Extra("id_token").(string)
	if raw == "" {
		http.Error(w, "provider returned no id_token", http.StatusBadGateway)
		return
	}

	email, err := emailClaim(r.Context(), a.verifier, raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	actor, status, err := a.resolveActor(r.Context(), email)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	if a.logger != nil {
		a.logger.Info("user signed in", "user", actor.UserID, "tenant", actor.TenantID)
	}

	http.SetCookie(w, a.cookie(sessionCookie, raw, 0))
	http.Redirect(w, r, landingPath, http.StatusSeeOther)
}

// LogoutHandler drops the session and sends the browser back to /login.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, a.cookie(sessionCookie, "", -1))
	http.SetCookie(w, a.cookie(stateCookie, "", -1))
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

func (a *Auth) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   !a.devMode,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Auth) logError(msg string, err error) {
	if a.logger != nil {
		a.logger.Error(msg, "error", err)
	}
}

func newState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
