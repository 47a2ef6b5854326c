package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"scameleon/internal/catalog"
	"scameleon/internal/game"
	"scameleon/internal/validation"
)

// GameHandler exposes the per-user game controller over JSON
type GameHandler struct {
	registry *game.Registry
	catalog  *catalog.Catalog
}

// NewGameHandler creates a new game handler
func NewGameHandler(registry *game.Registry, cat *catalog.Catalog) *GameHandler {
	return &GameHandler{registry: registry, catalog: cat}
}

func (h *GameHandler) controller(w http.ResponseWriter, r *http.Request) *game.Controller {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, http.StatusUnauthorized, ErrUnauthorized, "", nil)
		return nil
	}
	ctrl, err := h.registry.Get(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to load game state", err)
		return nil
	}
	return ctrl
}

// respondWithState writes the controller snapshot, translating state machine
// errors. A lockout is not an error to the client: it answers 200 with the
// lockout view so the UI can render the refill countdown.
func (h *GameHandler) respondWithState(w http.ResponseWriter, ctrl *game.Controller, err error) {
	switch {
	case err == nil, errors.Is(err, game.ErrLockedOut):
		respondWithJSON(w, http.StatusOK, ctrl.Snapshot())
	case errors.Is(err, game.ErrInvalidTransition):
		respondWithError(w, http.StatusConflict, err.Error(), "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Game operation failed", err)
	}
}

// GetState returns the current game snapshot
func (h *GameHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	ctrl.Tick()
	respondWithJSON(w, http.StatusOK, ctrl.Snapshot())
}

// SelectWorld opens a world's level map
func (h *GameHandler) SelectWorld(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	worldID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid world id", "", nil)
		return
	}
	h.respondWithState(w, ctrl, ctrl.SelectWorld(worldID))
}

// DismissIntro closes a world intro modal
func (h *GameHandler) DismissIntro(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.DismissIntro())
}

// BackToWorlds returns from a level map to world selection
func (h *GameHandler) BackToWorlds(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.BackToWorlds())
}

// SelectLevel opens the briefing for a level
func (h *GameHandler) SelectLevel(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	levelID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid level id", "", nil)
		return
	}
	h.respondWithState(w, ctrl, ctrl.SelectLevel(levelID))
}

// StartLevel begins the briefed level
func (h *GameHandler) StartLevel(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.StartLevel())
}

// CancelBriefing closes the level briefing without starting
func (h *GameHandler) CancelBriefing(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.CancelBriefing())
}

type answerRequest struct {
	Option string `json:"option"`
}

// SubmitAnswer grades the selected option for the current question
func (h *GameHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", err)
		return
	}
	if err := validation.ValidateAnswerKey(req.Option); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), "", nil)
		return
	}
	h.respondWithState(w, ctrl, ctrl.SubmitAnswer(req.Option))
}

// Advance moves past the feedback pane to the next question
func (h *GameHandler) Advance(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.Advance())
}

// ExitLevel abandons the level in progress
func (h *GameHandler) ExitLevel(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.ExitLevel())
}

// DismissModal closes a completion modal
func (h *GameHandler) DismissModal(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.DismissModal())
}

// Refill restores all hearts immediately
func (h *GameHandler) Refill(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	h.respondWithState(w, ctrl, ctrl.RefillNow())
}

// Notifications drains pending badge and refill notifications
func (h *GameHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	notifications := ctrl.Notifications()
	if notifications == nil {
		notifications = []game.Notification{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"notifications": notifications})
}

type badgeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Earned      bool   `json:"earned"`
}

// ListBadges returns every badge definition with the user's earned state
func (h *GameHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	ctrl := h.controller(w, r)
	if ctrl == nil {
		return
	}
	held := make(map[string]bool)
	for _, id := range ctrl.HeldBadges() {
		held[id] = true
	}
	views := make([]badgeView, 0, len(h.catalog.Badges))
	for _, b := range h.catalog.Badges {
		views = append(views, badgeView{
			ID:          b.ID,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			Earned:      held[b.ID],
		})
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"badges": views})
}
