package model

import "time"

// Account roles, ordered super_admin > admin > manager > hr > employee.
// The ranking itself lives in the rbac package.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Classroom    *string
	EmployeeID   *string
	Department   *string
	Position     *string
	Phone        *string
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    *string
}

// SecretKey gates self-registration into elevated roles. The issuer's role
// and classroom are snapshotted at issuance and never follow later changes
// to the issuer account.
type SecretKey struct {
	ID                   string
	Key                  string
	Role                 string
	Classroom            *string
	GeneratedBy          string
	GeneratedByRole      string
	GeneratedByClassroom *string
	IsActive             bool
	UsedBy               *string
	UsedAt               *time.Time
	ExpiresAt            *time.Time
	CreatedAt            time.Time
}

type AttendanceRecord struct {
	ID            string
	UserID        string
	Date          string
	Status        string
	CheckIn       *time.Time
	CheckOut      *time.Time
	BreakStart    *time.Time
	BreakEnd      *time.Time
	TotalHours    float64
	OvertimeHours float64
	Notes         *string
	ApprovedBy    *string
	ApprovedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// WorkedHours returns total worked hours (check-out minus check-in minus
// break) and overtime beyond the standard day. Zero when the record is not
// yet closed out.
func (r AttendanceRecord) WorkedHours() (total, overtime float64) {
	if r.CheckIn == nil || r.CheckOut == nil {
		return 0, 0
	}
	worked := r.CheckOut.Sub(*r.CheckIn)
	if r.BreakStart != nil && r.BreakEnd != nil {
		worked -= r.BreakEnd.Sub(*r.BreakStart)
	}
	if worked < 0 {
		return 0, 0
	}
	total = worked.Hours()
	if total > 8 {
		overtime = total - 8
	}
	return total, overtime
}
