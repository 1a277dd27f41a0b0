package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/middleware"
	"github.com/DiscordEmotes/website/internal/utils"
)

type Handler struct {
	service      *Service
	secureCookie bool
}

func NewHandler(service *Service, secureCookie bool) *Handler {
	return &Handler{service: service, secureCookie: secureCookie}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/login", h.Login)
	r.Get("/callback", h.Callback)
	r.Post("/logout", h.Logout)
	r.Get("/me", h.Me)

	return r
}

// Login redirects the browser to the Discord authorize page.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.LoginURL(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to build login URL")
		utils.RespondError(w, http.StatusInternalServerError, "Failed to start login")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// Callback finishes the OAuth dance and sets the session cookie.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	// The provider reports a denied consent screen via ?error=.
	if r.URL.Query().Get("error") != "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		utils.RespondError(w, http.StatusBadRequest, "Missing state or code")
		return
	}

	cookieToken, _, err := h.service.HandleCallback(r.Context(), state, code)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidState):
			utils.RespondError(w, http.StatusBadRequest, "Invalid login state, please retry")
		case errors.Is(err, ErrExchangeFailed):
			utils.RespondError(w, http.StatusBadGateway, "Login with Discord failed")
		default:
			log.Error().Err(err).Msg("OAuth callback failed")
			utils.RespondError(w, http.StatusInternalServerError, "Login failed")
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.service.sessionTTL / time.Second),
	})

	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout destroys the session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, _, err := middleware.RequireSession(r.Context()); err == nil {
		h.service.Logout(r.Context(), sessionID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	utils.RespondNoContent(w)
}

// Me returns the logged-in Discord identity, or 401 for anonymous requests.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sessionID, _, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.service.CurrentUser(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		log.Error().Err(err).Msg("Failed to fetch current user")
		utils.RespondError(w, http.StatusBadGateway, "Identity provider unavailable")
		return
	}

	utils.RespondSuccess(w, map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"discriminator": user.Discriminator,
		"avatarUrl":     user.AvatarURL(),
	})
}
