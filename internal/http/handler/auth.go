package handler

import (
	"net/http"

	"planning/internal/auth"
)

type AuthHandler struct {
	Svc *auth.Service
}

type tokenResp struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Svc.SignUp(r.Context(), auth.NewSession(nil), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResp{Token: res.Token, User: toUserDTO(res.User)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Svc.SignIn(r.Context(), auth.NewSession(nil), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Token: res.Token, User: toUserDTO(res.User)})
}

type federatedReq struct {
	IDToken string `json:"id_token"`
}

func (h *AuthHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req federatedReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.Svc.SignInWithFederatedProvider(r.Context(), auth.NewSession(nil), req.IDToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResp{Token: res.Token, User: toUserDTO(res.User)})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	sess, err := h.Svc.SessionFor(r.Context(), claims)
	if err != nil {
		// the account is gone; still revoke the token
		sess = auth.NewSession(nil)
	}
	if err := h.Svc.SignOut(r.Context(), sess, claims); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetReq struct {
	Email string `json:"email"`
}

// Reset always answers 202 for well-formed emails.
func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Svc.ResetPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type resetConfirmReq struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) ResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Svc.ConfirmPasswordReset(r.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
