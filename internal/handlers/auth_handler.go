package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"scameleon/internal/security"
	"scameleon/internal/service"
	"scameleon/internal/validation"
)

// AuthHandler serves registration, login and logout
type AuthHandler struct {
	authService          *service.AuthService
	csrf                 *security.CSRFGenerator
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	stateSecret          string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, csrf *security.CSRFGenerator, providers map[string]OAuthProvider, redirectBaseURL, stateSecret string) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		csrf:                 csrf,
		oauthProviders:       providers,
		oauthRedirectBaseURL: redirectBaseURL,
		stateSecret:          stateSecret,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	CSRFToken string `json:"csrfToken"`
}

// Register creates an account and opens a session
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", err)
		return
	}

	if _, err := h.authService.Register(req.Email, req.Password, req.Name); err != nil {
		var verr validation.ValidationError
		switch {
		case errors.As(err, &verr):
			respondWithError(w, http.StatusBadRequest, verr.Error(), "", nil)
		case errors.Is(err, service.ErrEmailTaken):
			respondWithError(w, http.StatusConflict, "Email already registered", "", nil)
		default:
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to register user", err)
		}
		return
	}
	h.login(w, r, req.Email, req.Password)
}

// Login verifies credentials and sets the session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", err)
		return
	}
	h.login(w, r, req.Email, req.Password)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, email, password string) {
	user, session, err := h.authService.Login(email, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password", "", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to log in", err)
		return
	}

	token, err := h.csrf.GenerateToken(session.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to generate CSRF token", err)
		return
	}
	http.SetCookie(w, security.CreateSessionCookie(r, SessionCookieName, session.ID, session.ExpiresAt))
	respondWithJSON(w, http.StatusOK, sessionResponse{
		Email:     user.Email,
		Name:      user.Name,
		CSRFToken: token,
	})
}

// Logout deletes the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.authService.Logout(cookie.Value); err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to log out", err)
			return
		}
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, SessionCookieName))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Session returns the logged-in user and a fresh CSRF token. Used by the
// client on page load to restore its auth state.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return
	}
	token, err := h.csrf.GenerateToken(cookie.Value)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to generate CSRF token", err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse{
		Email:     user.Email,
		Name:      user.Name,
		CSRFToken: token,
	})
}
