package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"worktrack/server/internal/model"
	"worktrack/server/internal/rbac"
	"worktrack/server/internal/repository"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	filter := repository.AccountFilter{
		Scope:      rbac.VisibilityScope(*caller),
		Role:       r.URL.Query().Get("role"),
		Department: r.URL.Query().Get("department"),
		Classroom:  r.URL.Query().Get("classroom"),
	}
	if raw := r.URL.Query().Get("isActive"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &parsed
		}
	}

	accounts, err := s.store.ListAccounts(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summaries := make([]accountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, mapAccountSummary(account))
	}
	writeJSON(w, http.StatusOK, summaries)
}

type updateUserRequest struct {
	Name       *string `json:"name,omitempty"`
	Classroom  *string `json:"classroom,omitempty"`
	EmployeeID *string `json:"employeeId,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	IsActive   *bool   `json:"isActive,omitempty"`
	Role       *string `json:"role,omitempty"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())
	targetID := chi.URLParam(r, "id")

	if err := s.manager.CanManage(r.Context(), *caller, targetID); err != nil {
		writeAuthzError(w, err)
		return
	}
	target, ok, err := s.store.AccountByID(r.Context(), targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if req.Role != nil {
		if err := rbac.AuthorizeRoleChange(*caller, target, *req.Role); err != nil {
			writeAuthzError(w, err)
			return
		}
	}
	if req.IsActive != nil && !*req.IsActive {
		if err := rbac.AuthorizeDeactivate(target); err != nil {
			writeAuthzError(w, err)
			return
		}
	}

	update := repository.AccountUpdate{
		Name:       req.Name,
		EmployeeID: req.EmployeeID,
		Department: req.Department,
		Position:   req.Position,
		Phone:      req.Phone,
		IsActive:   req.IsActive,
	}
	if req.Classroom != nil {
		// An admin pinned to a classroom cannot move users out of it.
		if caller.Role != rbac.RoleSuperAdmin && caller.Classroom != nil && *caller.Classroom != "" {
			update.Classroom = caller.Classroom
		} else {
			update.Classroom = req.Classroom
		}
	}

	updated, ok, err := s.store.UpdateAccount(r.Context(), targetID, update, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}

	if req.Role != nil && *req.Role != updated.Role {
		updated, ok, err = s.store.SetAccountRole(r.Context(), targetID, *req.Role, time.Now().UTC())
		if err != nil || !ok {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}
	writeJSON(w, http.StatusOK, mapAccountSummary(updated))
}

func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())
	targetID := chi.URLParam(r, "id")

	if err := s.manager.CanManage(r.Context(), *caller, targetID); err != nil {
		writeAuthzError(w, err)
		return
	}
	target, ok, err := s.store.AccountByID(r.Context(), targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}
	if err := rbac.AuthorizeDeactivate(target); err != nil {
		writeAuthzError(w, err)
		return
	}

	// Removal is a soft deactivate; attendance history stays intact.
	deactivated, err := s.store.DeactivateAccount(r.Context(), targetID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deactivated {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())
	targetID := chi.URLParam(r, "id")

	if err := s.manager.CanManage(r.Context(), *caller, targetID); err != nil {
		writeAuthzError(w, err)
		return
	}
	target, ok, err := s.store.AccountByID(r.Context(), targetID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}

	var req setRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := rbac.AuthorizeRoleChange(*caller, target, req.Role); err != nil {
		writeAuthzError(w, err)
		return
	}

	updated, ok, err := s.store.SetAccountRole(r.Context(), targetID, req.Role, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}
	writeJSON(w, http.StatusOK, mapAccountSummary(updated))
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	filter := repository.AttendanceFilter{
		UserID:    r.URL.Query().Get("userId"),
		Date:      r.URL.Query().Get("date"),
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
	}

	scope := rbac.VisibilityScope(*caller)
	if !scope.All {
		ids, err := s.store.AccountIDsInScope(r.Context(), scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
		filter.UserIDs = ids
	}

	records, err := s.store.ListAttendance(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summaries := make([]attendanceSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, mapAttendanceSummary(record))
	}
	writeJSON(w, http.StatusOK, summaries)
}

type upsertAttendanceRequest struct {
	UserID   string  `json:"userId"`
	Date     string  `json:"date"`
	Status   *string `json:"status,omitempty"`
	CheckIn  *string `json:"checkIn,omitempty"`
	CheckOut *string `json:"checkOut,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func parseRecordTime(raw *string) (*time.Time, bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, false
	}
	utc := parsed.UTC()
	return &utc, true
}

func (s *Server) handleUpsertAttendance(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	var req upsertAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.UserID == "" {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetRequired, "target user id is required"))
		return
	}
	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = today()
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return
	}

	target, ok, err := s.store.AccountByID(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}
	if !rbac.VisibilityScope(*caller).Matches(target) {
		writeAuthzError(w, rbac.NewError(rbac.CodeClassroomMismatch, "target user is outside your managed scope"))
		return
	}

	checkIn, valid := parseRecordTime(req.CheckIn)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_check_in")
		return
	}
	checkOut, valid := parseRecordTime(req.CheckOut)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_check_out")
		return
	}

	now := time.Now().UTC()
	record, exists, err := s.store.AttendanceByUserDate(r.Context(), target.ID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !exists {
		record = model.AttendanceRecord{
			ID:        uuid.NewString(),
			UserID:    target.ID,
			Date:      date,
			Status:    "Present",
			CreatedAt: now,
		}
	}

	if req.Status != nil && *req.Status != "" {
		record.Status = *req.Status
	}
	if checkIn != nil {
		record.CheckIn = checkIn
	}
	if checkOut != nil {
		record.CheckOut = checkOut
	}
	if req.Notes != nil {
		record.Notes = req.Notes
	}
	record.TotalHours, record.OvertimeHours = record.WorkedHours()
	record.ApprovedBy = &caller.ID
	record.ApprovedAt = &now
	record.UpdatedAt = now

	if exists {
		err = s.store.SaveAttendance(r.Context(), record)
	} else {
		err = s.store.CreateAttendance(r.Context(), record)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapAttendanceSummary(record))
}

type attendanceHistoryResponse struct {
	User    accountSummary      `json:"user"`
	Records []attendanceSummary `json:"records"`
}

func (s *Server) handleAttendanceHistory(w http.ResponseWriter, r *http.Request) {
	caller := accountFromContext(r.Context())

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetRequired, "target user id is required"))
		return
	}
	target, ok, err := s.store.AccountByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return
	}
	if err := rbac.CanViewAccount(*caller, target); err != nil {
		writeAuthzError(w, err)
		return
	}

	records, err := s.store.ListAttendance(r.Context(), repository.AttendanceFilter{
		UserID:    target.ID,
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	summaries := make([]attendanceSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, mapAttendanceSummary(record))
	}
	writeJSON(w, http.StatusOK, attendanceHistoryResponse{
		User:    mapAccountSummary(target),
		Records: summaries,
	})
}

func (s *Server) handleDeleteAttendance(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "id")

	deleted, err := s.store.DeleteAttendance(r.Context(), recordID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "record_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
