package handler

import (
	"net/http"
	"time"

	"planning/internal/auth"
)

type userDTO struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserDTO(u auth.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		Provider:    u.Provider,
		CreatedAt:   u.CreatedAt,
	}
}

type MeHandler struct {
	Svc *auth.Service
}

func (h *MeHandler) session(r *http.Request) (*auth.Session, error) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return h.Svc.SessionFor(r.Context(), claims)
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Svc.CurrentUser(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

func (h *MeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req auth.ProfileInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Svc.UpdateProfile(r.Context(), sess, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}
