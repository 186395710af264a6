package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"worktrack/server/internal/config"
	"worktrack/server/internal/model"
	"worktrack/server/internal/rbac"
	"worktrack/server/internal/repository"
)

type Server struct {
	cfg      config.Config
	store    *repository.Store
	redis    *redis.Client
	verifier *rbac.Verifier
	manager  *rbac.Manager
	keys     *rbac.KeyProtocol
}

// NewServer wires the authorization core to the store. redisClient may be nil;
// password reset is then unavailable but everything else works.
func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		redis:    redisClient,
		verifier: &rbac.Verifier{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Accounts: store},
		manager:  &rbac.Manager{Accounts: store},
		keys:     &rbac.KeyProtocol{Keys: store, FallbackSecret: cfg.RegistrationSecretKey},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)
		r.With(s.authMiddleware).Get("/me", s.handleGetMe)
		r.With(s.authMiddleware).Put("/me", s.handleUpdateMe)
		r.With(s.authMiddleware).Put("/change-password", s.handleChangePassword)
	})

	r.Route("/attendance", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/check-in", s.handleCheckIn)
		r.Post("/check-out", s.handleCheckOut)
		r.Post("/break-start", s.handleBreakStart)
		r.Post("/break-end", s.handleBreakEnd)
		r.Get("/today", s.handleToday)
		r.Get("/summary/{userId}", s.handleAttendanceSummary)
		r.Get("/details/{userId}", s.handleAttendanceDetails)
		r.Get("/{userId}", s.handleUserAttendance)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireMinRole(rbac.RoleHR)).Get("/users", s.handleListUsers)
		r.With(s.requireMinRole(rbac.RoleAdmin)).Put("/users/{id}", s.handleUpdateUser)
		r.With(s.requireMinRole(rbac.RoleAdmin)).Delete("/users/{id}", s.handleDeactivateUser)
		r.With(s.requireMinRole(rbac.RoleAdmin)).Put("/users/{id}/role", s.handleSetUserRole)
		r.With(s.requireMinRole(rbac.RoleHR)).Get("/attendance", s.handleListAttendance)
		r.With(s.requireMinRole(rbac.RoleManager)).Post("/attendance", s.handleUpsertAttendance)
		r.With(s.requireMinRole(rbac.RoleHR)).Get("/attendance/all", s.handleAttendanceHistory)
		r.With(s.requireMinRole(rbac.RoleAdmin)).Delete("/attendance/{id}", s.handleDeleteAttendance)
	})

	r.Route("/secret-keys", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireMinRole(rbac.RoleHR))
		r.Post("/generate", s.handleGenerateKey)
		r.Get("/generatable-roles", s.handleGeneratableRoles)
		r.Get("/my-keys", s.handleMyKeys)
		r.Put("/{id}/deactivate", s.handleDeactivateKey)
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, err := s.verifier.Verify(r.Context(), bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeAuthzError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), accountKey{}, &account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireMinRole(minRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rbac.RequireMinRole(accountFromContext(r.Context()), minRole); err != nil {
				writeAuthzError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type accountKey struct{}

func accountFromContext(ctx context.Context) *model.Account {
	account, _ := ctx.Value(accountKey{}).(*model.Account)
	return account
}

// optionalAccount resolves a bearer token when one is present. Registration
// accepts both anonymous and authenticated callers.
func (s *Server) optionalAccount(r *http.Request) *model.Account {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil
	}
	account, err := s.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil
	}
	return &account
}

// authzStatus maps the taxonomy onto HTTP statuses. Unknown codes mean a
// non-authorization error leaked through; treat it as a server fault.
func authzStatus(code rbac.Code) int {
	switch code {
	case rbac.CodeInvalidCredential, rbac.CodeAuthenticationRequired:
		return http.StatusUnauthorized
	case rbac.CodeAccountDisabled, rbac.CodeInsufficientRole, rbac.CodeInsufficientRank,
		rbac.CodeClassroomMismatch, rbac.CodeElevatedRoleForbidden:
		return http.StatusForbidden
	case rbac.CodeTargetRequired, rbac.CodeSecretKeyRequired,
		rbac.CodeInvalidSecretKey, rbac.CodeSecretKeyExpired:
		return http.StatusBadRequest
	case rbac.CodeAccountNotFound, rbac.CodeTargetNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeAuthzError(w http.ResponseWriter, err error) {
	var rbacErr *rbac.Error
	if !errors.As(err, &rbacErr) {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, authzStatus(rbacErr.Code), map[string]string{
		"error":   string(rbacErr.Code),
		"message": rbacErr.Message,
	})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

const dateLayout = "2006-01-02"

func today() string {
	return time.Now().UTC().Format(dateLayout)
}

type accountSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	Classroom  *string `json:"classroom,omitempty"`
	EmployeeID *string `json:"employeeId,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	IsActive   bool    `json:"isActive"`
	LastLogin  *string `json:"lastLogin,omitempty"`
	CreatedAt  string  `json:"createdAt"`
}

func mapAccountSummary(account model.Account) accountSummary {
	summary := accountSummary{
		ID:         account.ID,
		Name:       account.Name,
		Email:      account.Email,
		Role:       account.Role,
		Classroom:  account.Classroom,
		EmployeeID: account.EmployeeID,
		Department: account.Department,
		Position:   account.Position,
		Phone:      account.Phone,
		IsActive:   account.IsActive,
		CreatedAt:  account.CreatedAt.UTC().Format(time.RFC3339),
	}
	if account.LastLogin != nil {
		formatted := account.LastLogin.UTC().Format(time.RFC3339)
		summary.LastLogin = &formatted
	}
	return summary
}

type attendanceSummary struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	Date          string  `json:"date"`
	Status        string  `json:"status"`
	CheckIn       *string `json:"checkIn,omitempty"`
	CheckOut      *string `json:"checkOut,omitempty"`
	BreakStart    *string `json:"breakStart,omitempty"`
	BreakEnd      *string `json:"breakEnd,omitempty"`
	TotalHours    float64 `json:"totalHours"`
	OvertimeHours float64 `json:"overtimeHours"`
	Notes         *string `json:"notes,omitempty"`
	ApprovedBy    *string `json:"approvedBy,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

func mapAttendanceSummary(record model.AttendanceRecord) attendanceSummary {
	return attendanceSummary{
		ID:            record.ID,
		UserID:        record.UserID,
		Date:          record.Date,
		Status:        record.Status,
		CheckIn:       formatTime(record.CheckIn),
		CheckOut:      formatTime(record.CheckOut),
		BreakStart:    formatTime(record.BreakStart),
		BreakEnd:      formatTime(record.BreakEnd),
		TotalHours:    record.TotalHours,
		OvertimeHours: record.OvertimeHours,
		Notes:         record.Notes,
		ApprovedBy:    record.ApprovedBy,
	}
}

type secretKeySummary struct {
	ID        string  `json:"id"`
	Key       string  `json:"key"`
	Role      string  `json:"role"`
	Classroom *string `json:"classroom,omitempty"`
	IsActive  bool    `json:"isActive"`
	UsedBy    *string `json:"usedBy,omitempty"`
	UsedAt    *string `json:"usedAt,omitempty"`
	ExpiresAt *string `json:"expiresAt,omitempty"`
	CreatedAt string  `json:"createdAt"`
}

func mapSecretKeySummary(key model.SecretKey) secretKeySummary {
	return secretKeySummary{
		ID:        key.ID,
		Key:       key.Key,
		Role:      key.Role,
		Classroom: key.Classroom,
		IsActive:  key.IsActive,
		UsedBy:    key.UsedBy,
		UsedAt:    formatTime(key.UsedAt),
		ExpiresAt: formatTime(key.ExpiresAt),
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
	}
}
