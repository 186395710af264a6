package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"worktrack/server/internal/model"
	"worktrack/server/internal/rbac"
	"worktrack/server/internal/repository"
)

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())
	now := time.Now().UTC()
	date := today()

	record, ok, err := s.store.AttendanceByUserDate(r.Context(), account.ID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if ok && record.CheckIn != nil {
		writeError(w, http.StatusBadRequest, "already_checked_in")
		return
	}

	if !ok {
		record = model.AttendanceRecord{
			ID:        uuid.NewString(),
			UserID:    account.ID,
			Date:      date,
			Status:    "Present",
			CheckIn:   &now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateAttendance(r.Context(), record); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	} else {
		record.CheckIn = &now
		record.UpdatedAt = now
		if err := s.store.SaveAttendance(r.Context(), record); err != nil {
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}

	writeJSON(w, http.StatusOK, mapAttendanceSummary(record))
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())
	now := time.Now().UTC()

	record, ok, err := s.store.AttendanceByUserDate(r.Context(), account.ID, today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok || record.CheckIn == nil {
		writeError(w, http.StatusBadRequest, "not_checked_in")
		return
	}
	if record.CheckOut != nil {
		writeError(w, http.StatusBadRequest, "already_checked_out")
		return
	}
	if record.BreakStart != nil && record.BreakEnd == nil {
		writeError(w, http.StatusBadRequest, "break_open")
		return
	}

	record.CheckOut = &now
	record.TotalHours, record.OvertimeHours = record.WorkedHours()
	record.UpdatedAt = now
	if err := s.store.SaveAttendance(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapAttendanceSummary(record))
}

func (s *Server) handleBreakStart(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())
	now := time.Now().UTC()

	record, ok, err := s.store.AttendanceByUserDate(r.Context(), account.ID, today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok || record.CheckIn == nil {
		writeError(w, http.StatusBadRequest, "not_checked_in")
		return
	}
	if record.CheckOut != nil {
		writeError(w, http.StatusBadRequest, "already_checked_out")
		return
	}
	if record.BreakStart != nil {
		writeError(w, http.StatusBadRequest, "break_already_taken")
		return
	}

	record.BreakStart = &now
	record.UpdatedAt = now
	if err := s.store.SaveAttendance(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapAttendanceSummary(record))
}

func (s *Server) handleBreakEnd(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())
	now := time.Now().UTC()

	record, ok, err := s.store.AttendanceByUserDate(r.Context(), account.ID, today())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok || record.BreakStart == nil {
		writeError(w, http.StatusBadRequest, "break_not_started")
		return
	}
	if record.BreakEnd != nil {
		writeError(w, http.StatusBadRequest, "break_already_ended")
		return
	}

	record.BreakEnd = &now
	record.UpdatedAt = now
	if err := s.store.SaveAttendance(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapAttendanceSummary(record))
}

type todayResponse struct {
	Date       string             `json:"date"`
	CheckedIn  bool               `json:"checkedIn"`
	CheckedOut bool               `json:"checkedOut"`
	OnBreak    bool               `json:"onBreak"`
	Record     *attendanceSummary `json:"record,omitempty"`
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	account := accountFromContext(r.Context())
	date := today()

	record, ok, err := s.store.AttendanceByUserDate(r.Context(), account.ID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := todayResponse{Date: date}
	if ok {
		resp.CheckedIn = record.CheckIn != nil
		resp.CheckedOut = record.CheckOut != nil
		resp.OnBreak = record.BreakStart != nil && record.BreakEnd == nil
		summary := mapAttendanceSummary(record)
		resp.Record = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

// viewableTarget resolves the target account and applies the single-target
// visibility rule (self, or hr+ with classroom pinning).
func (s *Server) viewableTarget(w http.ResponseWriter, r *http.Request) (model.Account, bool) {
	caller := accountFromContext(r.Context())
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetRequired, "target user id is required"))
		return model.Account{}, false
	}

	target, ok, err := s.store.AccountByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Account{}, false
	}
	if !ok {
		writeAuthzError(w, rbac.NewError(rbac.CodeTargetNotFound, "target user not found"))
		return model.Account{}, false
	}
	if err := rbac.CanViewAccount(*caller, target); err != nil {
		writeAuthzError(w, err)
		return model.Account{}, false
	}
	return target, true
}

func (s *Server) handleUserAttendance(w http.ResponseWriter, r *http.Request) {
	target, ok := s.viewableTarget(w, r)
	if !ok {
		return
	}

	filter := repository.AttendanceFilter{
		UserID:    target.ID,
		StartDate: r.URL.Query().Get("startDate"),
		EndDate:   r.URL.Query().Get("endDate"),
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

// monthRange converts "2006-01" into the inclusive date bounds of that month.
func monthRange(month string) (string, string, bool) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return "", "", false
	}
	end := start.AddDate(0, 1, -1)
	return start.Format(dateLayout), end.Format(dateLayout), true
}

type monthlySummary struct {
	UserID        string         `json:"userId"`
	Month         string         `json:"month"`
	Days          int            `json:"days"`
	StatusCounts  map[string]int `json:"statusCounts"`
	TotalHours    float64        `json:"totalHours"`
	OvertimeHours float64        `json:"overtimeHours"`
}

func (s *Server) monthlyRecords(w http.ResponseWriter, r *http.Request) (model.Account, string, []model.AttendanceRecord, bool) {
	target, ok := s.viewableTarget(w, r)
	if !ok {
		return model.Account{}, "", nil, false
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	start, end, valid := monthRange(month)
	if !valid {
		writeError(w, http.StatusBadRequest, "invalid_month")
		return model.Account{}, "", nil, false
	}

	records, err := s.store.ListAttendance(r.Context(), repository.AttendanceFilter{
		UserID:    target.ID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return model.Account{}, "", nil, false
	}
	return target, month, records, true
}

func (s *Server) handleAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	target, month, records, ok := s.monthlyRecords(w, r)
	if !ok {
		return
	}

	summary := monthlySummary{
		UserID:       target.ID,
		Month:        month,
		Days:         len(records),
		StatusCounts: map[string]int{},
	}
	for _, record := range records {
		summary.StatusCounts[record.Status]++
		summary.TotalHours += record.TotalHours
		summary.OvertimeHours += record.OvertimeHours
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAttendanceDetails(w http.ResponseWriter, r *http.Request) {
	_, _, records, ok := s.monthlyRecords(w, r)
	if !ok {
		return
	}

	summaries := make([]attendanceSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, mapAttendanceSummary(record))
	}
	writeJSON(w, http.StatusOK, summaries)
}
