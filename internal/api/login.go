package api

import (
	"encoding/json"
	"net/http"

	"github.com/nmslite/drivetemp/internal/auth"
)

type LoginHandler struct {
	auth *auth.Service
}

func NewLoginHandler(svc *auth.Service) *LoginHandler {
	return &LoginHandler{auth: svc}
}

// Login handles POST /api/v1/login
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		SendError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON payload", nil)
		return
	}

	if req.Username == "" || req.Password == "" {
		SendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Username and password are required", nil)
		return
	}

	response, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		SendError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil)
		return
	}

	SendJSON(w, http.StatusOK, response)
}
