package http

import (
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"worktrack/server/internal/auth"
	"worktrack/server/internal/crypto"
	"worktrack/server/internal/model"
	"worktrack/server/internal/rbac"
	"worktrack/server/internal/repository"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type registerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Classroom  string `json:"classroom"`
	EmployeeID string `json:"employeeId"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Phone      string `json:"phone"`
	SecretKey  string `json:"secretKey"`
}

type tokenResponse struct {
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
	User         accountSummary `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = rbac.RoleEmployee
	}
	if !rbac.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}

	if _, exists, err := s.store.AccountByEmail(r.Context(), req.Email); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	} else if exists {
		writeError(w, http.StatusBadRequest, "email_in_use")
		return
	}
	if employeeID := strings.TrimSpace(req.EmployeeID); employeeID != "" {
		exists, err := s.store.EmployeeIDExists(r.Context(), employeeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		if exists {
			writeError(w, http.StatusBadRequest, "employee_id_in_use")
			return
		}
	}

	// The id is fixed before redemption so the key is claimed for the account
	// it creates.
	accountID := uuid.NewString()
	redemption, err := s.keys.Redeem(r.Context(), strings.TrimSpace(req.SecretKey), role, accountID)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	now := time.Now().UTC()
	account := model.Account{
		ID:           accountID,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// A classroom pinned to the key overrides whatever the request carries.
	if redemption.Classroom != nil {
		account.Classroom = redemption.Classroom
	} else if classroom := strings.TrimSpace(req.Classroom); classroom != "" {
		account.Classroom = &classroom
	}
	if employeeID := strings.TrimSpace(req.EmployeeID); employeeID != "" {
		account.EmployeeID = &employeeID
	}
	if department := strings.TrimSpace(req.Department); department != "" {
		account.Department = &department
	}
	if position := strings.TrimSpace(req.Position); position != "" {
		account.Position = &position
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		account.Phone = &phone
	}
	if caller := s.optionalAccount(r); caller != nil {
		account.CreatedBy = &caller.ID
	}

	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusBadRequest, "account_create_failed")
		return
	}

	switch redemption.Source {
	case rbac.SourceIssuedKey:
		log.Printf("registered %s as %s via issued key %s", account.Email, account.Role, redemption.Key.ID)
	case rbac.SourceSharedSecret:
		log.Printf("registered %s as %s via shared registration secret", account.Email, account.Role)
	}

	resp, err := s.issueTokens(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	account, ok, err := s.store.AccountByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_credential")
		return
	}
	if err := crypto.CheckPassword(account.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credential")
		return
	}
	if !account.IsActive {
		writeError(w, http.StatusForbidden, "account_disabled")
		return
	}

	now := time.Now().UTC()
	if err := s.store.UpdateLastLogin(r.Context(), account.ID, now); err == nil {
		account.LastLogin = &now
	}

	resp, err := s.issueTokens(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credential")
		return
	}

	// Role and active status are re-resolved so revocations take effect here.
	account, ok, err := s.store.AccountByID(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "account_not_found")
		return
	}
	if !account.IsActive {
		writeError(w, http.StatusForbidden, "account_disabled")
		return
	}

	resp, err := s.issueTokens(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) issueTokens(account model.Account) (tokenResponse, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: account.ID,
		Role:   account.Role,
		Email:  account.Email,
	})
	if err != nil {
		return tokenResponse{}, err
	}
	refreshToken, err := auth.NewRefreshToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.RefreshTokenTTL, account.ID)
	if err != nil {
		return tokenResponse{}, err
	}
	return tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         mapAccountSummary(account),
	}, nil
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())
	writeJSON(w, http.StatusOK, mapAccountSummary(*account))
}

type updateMeRequest struct {
	Name       *string `json:"name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())

	var req updateMeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	update := repository.AccountUpdate{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != "" {
			update.Name = &name
		}
	}
	update.Phone = req.Phone
	update.Department = req.Department
	update.Position = req.Position

	updated, ok, err := s.store.UpdateAccount(r.Context(), account.ID, update, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "account_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapAccountSummary(updated))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}
	if err := crypto.CheckPassword(account.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credential")
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}
	if err := s.store.SetPassword(r.Context(), account.ID, hash, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

const resetKeyPrefix = "reset:"

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if s.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "reset_unavailable")
		return
	}

	// The response never reveals whether the address is registered.
	account, ok, err := s.store.AccountByEmail(r.Context(), req.Email)
	if err == nil && ok && account.IsActive {
		token, err := crypto.NewResetToken()
		if err == nil {
			if err := s.redis.Set(r.Context(), resetKeyPrefix+token, account.ID, s.cfg.ResetTokenTTL).Err(); err == nil {
				// Delivery (mail) is out of scope; surfaced in the server log.
				log.Printf("password reset token issued for %s: %s", account.Email, token)
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}
	if s.redis == nil {
		writeError(w, http.StatusServiceUnavailable, "reset_unavailable")
		return
	}

	// GetDel consumes the token, so it is single-use even under concurrency.
	userID, err := s.redis.GetDel(r.Context(), resetKeyPrefix+req.Token).Result()
	if err == redis.Nil {
		writeError(w, http.StatusBadRequest, "invalid_reset_token")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}
	if err := s.store.SetPassword(r.Context(), userID, hash, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
