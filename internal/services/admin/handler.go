package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/DiscordEmotes/website/internal/middleware"
	"github.com/DiscordEmotes/website/internal/services/emote"
	"github.com/DiscordEmotes/website/internal/utils"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/emotes", h.ListEmotes)
	r.Patch("/emotes/{emoteID}/verified", h.SetVerified)
	r.Delete("/emotes/{emoteID}", h.DeleteEmote)
	return r
}

func (h *Handler) ListEmotes(w http.ResponseWriter, r *http.Request) {
	_, userID, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	filter := ListFilter{Search: utils.GetQueryString(r, "search", "")}
	if v := r.URL.Query().Get("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid verified filter")
			return
		}
		filter.Verified = &b
	}
	if v := r.URL.Query().Get("shared"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "Invalid shared filter")
			return
		}
		filter.Shared = &b
	}

	emotes, err := h.service.ListEmotes(r.Context(), userID, filter)
	if err != nil {
		respondAdminError(w, err, "Failed to list emotes")
		return
	}

	utils.RespondSuccess(w, emotes)
}

func (h *Handler) SetVerified(w http.ResponseWriter, r *http.Request) {
	_, userID, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	emoteID, err := uuid.Parse(chi.URLParam(r, "emoteID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	var req SetVerifiedRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := utils.Validate(&req); err != nil {
		utils.RespondValidationError(w, utils.FormatValidationErrors(err))
		return
	}

	e, err := h.service.SetVerified(r.Context(), userID, emoteID, *req.Verified)
	if err != nil {
		respondAdminError(w, err, "Failed to update emote")
		return
	}

	utils.RespondSuccess(w, e)
}

func (h *Handler) DeleteEmote(w http.ResponseWriter, r *http.Request) {
	_, userID, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	emoteID, err := uuid.Parse(chi.URLParam(r, "emoteID"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid emote ID")
		return
	}

	if err := h.service.DeleteEmote(r.Context(), userID, emoteID); err != nil {
		respondAdminError(w, err, "Failed to delete emote")
		return
	}

	utils.RespondNoContent(w)
}

func respondAdminError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotAdmin):
		utils.RespondError(w, http.StatusForbidden, "Administrator access required")
	case errors.Is(err, emote.ErrEmoteNotFound):
		utils.RespondError(w, http.StatusNotFound, "Emote not found")
	default:
		log.Error().Err(err).Msg(fallback)
		utils.RespondError(w, http.StatusInternalServerError, fallback)
	}
}
