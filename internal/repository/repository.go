package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"worktrack/server/internal/model"
	"worktrack/server/internal/rbac"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const accountColumns = `id, name, email, password_hash, role, classroom, employee_id, department, position, phone, is_active, last_login, created_at, updated_at, created_by`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.Classroom,
		&a.EmployeeID,
		&a.Department,
		&a.Position,
		&a.Phone,
		&a.IsActive,
		&a.LastLogin,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CreatedBy,
	)
	return a, err
}

func (s *Store) AccountByID(ctx context.Context, id string) (model.Account, bool, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, false, nil
	}
	return account, err == nil, err
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (model.Account, bool, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, false, nil
	}
	return account, err == nil, err
}

func (s *Store) EmployeeIDExists(ctx context.Context, employeeID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE employee_id = $1)
	`, employeeID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateAccount(ctx context.Context, account model.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.Classroom,
		account.EmployeeID,
		account.Department,
		account.Position,
		account.Phone,
		account.IsActive,
		account.LastLogin,
		account.CreatedAt,
		account.UpdatedAt,
		account.CreatedBy,
	)
	return err
}

// AccountUpdate carries only the fields the caller wants changed; nil leaves
// the column untouched.
type AccountUpdate struct {
	Name       *string
	Email      *string
	Classroom  *string
	EmployeeID *string
	Department *string
	Position   *string
	Phone      *string
	IsActive   *bool
}

func (s *Store) UpdateAccount(ctx context.Context, id string, update AccountUpdate, now time.Time) (model.Account, bool, error) {
	sets := []string{}
	args := []any{}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.Classroom != nil {
		add("classroom", *update.Classroom)
	}
	if update.EmployeeID != nil {
		add("employee_id", *update.EmployeeID)
	}
	if update.Department != nil {
		add("department", *update.Department)
	}
	if update.Position != nil {
		add("position", *update.Position)
	}
	if update.Phone != nil {
		add("phone", *update.Phone)
	}
	if update.IsActive != nil {
		add("is_active", *update.IsActive)
	}
	add("updated_at", now)

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), len(args), accountColumns)

	account, err := scanAccount(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, false, nil
	}
	return account, err == nil, err
}

// AccountFilter narrows ListAccounts. Scope comes from the caller's
// visibility; the remaining fields are optional query filters on top of it.
type AccountFilter struct {
	Scope      rbac.Scope
	Role       string
	Department string
	Classroom  string
	IsActive   *bool
}

func accountFilterClauses(filter AccountFilter) ([]string, []any) {
	where := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.Scope.All {
		if filter.Scope.Classroom != "" {
			add("classroom = $%d", filter.Scope.Classroom)
		}
		if filter.Scope.Department != "" {
			add("department = $%d", filter.Scope.Department)
		}
	}
	if filter.Role != "" {
		add("role = $%d", filter.Role)
	}
	if filter.Department != "" {
		add("department = $%d", filter.Department)
	}
	if filter.Classroom != "" {
		add("classroom = $%d", filter.Classroom)
	}
	if filter.IsActive != nil {
		add("is_active = $%d", *filter.IsActive)
	}
	return where, args
}

func (s *Store) ListAccounts(ctx context.Context, filter AccountFilter) ([]model.Account, error) {
	where, args := accountFilterClauses(filter)
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// AccountIDsInScope returns the ids of every account the scope can see, used
// to bound cross-user attendance queries.
func (s *Store) AccountIDsInScope(ctx context.Context, scope rbac.Scope) ([]string, error) {
	where, args := accountFilterClauses(AccountFilter{Scope: scope})
	query := `SELECT id FROM accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) SetAccountRole(ctx context.Context, id, role string, now time.Time) (model.Account, bool, error) {
	account, err := scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts
		SET role = $1, updated_at = $2
		WHERE id = $3
		RETURNING `+accountColumns+`
	`, role, now, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, false, nil
	}
	return account, err == nil, err
}

func (s *Store) DeactivateAccount(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET is_active = false, updated_at = $1
		WHERE id = $2
	`, now, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) SetPassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`, passwordHash, now, id)
	return err
}

func (s *Store) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET last_login = $1
		WHERE id = $2
	`, at, id)
	return err
}

const secretKeyColumns = `id, key, role, classroom, generated_by, generated_by_role, generated_by_classroom, is_active, used_by, used_at, expires_at, created_at`

func scanSecretKey(row pgx.Row) (model.SecretKey, error) {
	var k model.SecretKey
	err := row.Scan(
		&k.ID,
		&k.Key,
		&k.Role,
		&k.Classroom,
		&k.GeneratedBy,
		&k.GeneratedByRole,
		&k.GeneratedByClassroom,
		&k.IsActive,
		&k.UsedBy,
		&k.UsedAt,
		&k.ExpiresAt,
		&k.CreatedAt,
	)
	return k, err
}

func (s *Store) InsertKey(ctx context.Context, key model.SecretKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO secret_keys (`+secretKeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		key.ID,
		key.Key,
		key.Role,
		key.Classroom,
		key.GeneratedBy,
		key.GeneratedByRole,
		key.GeneratedByClassroom,
		key.IsActive,
		key.UsedBy,
		key.UsedAt,
		key.ExpiresAt,
		key.CreatedAt,
	)
	return err
}

func (s *Store) ActiveKey(ctx context.Context, keyString, role string) (model.SecretKey, bool, error) {
	key, err := scanSecretKey(s.pool.QueryRow(ctx, `
		SELECT `+secretKeyColumns+`
		FROM secret_keys
		WHERE key = $1 AND role = $2 AND is_active = true
	`, keyString, role))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SecretKey{}, false, nil
	}
	return key, err == nil, err
}

// ClaimKey consumes the key for one registration. The used_at guard makes the
// claim a compare-and-swap: the second of two concurrent redemptions affects
// zero rows and reports false.
func (s *Store) ClaimKey(ctx context.Context, keyID, usedBy string, usedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE secret_keys
		SET used_by = $1, used_at = $2
		WHERE id = $3 AND used_at IS NULL
	`, usedBy, usedAt, keyID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) KeyByID(ctx context.Context, id string) (model.SecretKey, bool, error) {
	key, err := scanSecretKey(s.pool.QueryRow(ctx, `
		SELECT `+secretKeyColumns+`
		FROM secret_keys
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SecretKey{}, false, nil
	}
	return key, err == nil, err
}

func (s *Store) KeysByIssuer(ctx context.Context, issuerID string) ([]model.SecretKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+secretKeyColumns+`
		FROM secret_keys
		WHERE generated_by = $1
		ORDER BY created_at DESC
	`, issuerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []model.SecretKey{}
	for rows.Next() {
		key, err := scanSecretKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) DeactivateKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE secret_keys
		SET is_active = false
		WHERE id = $1
	`, id)
	return err
}

// DeactivateExpiredKeys retires every active key whose expiry has passed.
func (s *Store) DeactivateExpiredKeys(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE secret_keys
		SET is_active = false
		WHERE is_active = true AND expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const attendanceColumns = `id, user_id, date, status, check_in, check_out, break_start, break_end, total_hours, overtime_hours, notes, approved_by, approved_at, created_at, updated_at`

func scanAttendance(row pgx.Row) (model.AttendanceRecord, error) {
	var r model.AttendanceRecord
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Date,
		&r.Status,
		&r.CheckIn,
		&r.CheckOut,
		&r.BreakStart,
		&r.BreakEnd,
		&r.TotalHours,
		&r.OvertimeHours,
		&r.Notes,
		&r.ApprovedBy,
		&r.ApprovedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (s *Store) AttendanceByUserDate(ctx context.Context, userID, date string) (model.AttendanceRecord, bool, error) {
	record, err := scanAttendance(s.pool.QueryRow(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE user_id = $1 AND date = $2
	`, userID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AttendanceRecord{}, false, nil
	}
	return record, err == nil, err
}

func (s *Store) AttendanceByID(ctx context.Context, id string) (model.AttendanceRecord, bool, error) {
	record, err := scanAttendance(s.pool.QueryRow(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AttendanceRecord{}, false, nil
	}
	return record, err == nil, err
}

func (s *Store) CreateAttendance(ctx context.Context, record model.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		record.ID,
		record.UserID,
		record.Date,
		record.Status,
		record.CheckIn,
		record.CheckOut,
		record.BreakStart,
		record.BreakEnd,
		record.TotalHours,
		record.OvertimeHours,
		record.Notes,
		record.ApprovedBy,
		record.ApprovedAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	return err
}

func (s *Store) SaveAttendance(ctx context.Context, record model.AttendanceRecord) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE attendance
		SET status = $1, check_in = $2, check_out = $3, break_start = $4, break_end = $5,
		    total_hours = $6, overtime_hours = $7, notes = $8, approved_by = $9, approved_at = $10,
		    updated_at = $11
		WHERE id = $12
	`,
		record.Status,
		record.CheckIn,
		record.CheckOut,
		record.BreakStart,
		record.BreakEnd,
		record.TotalHours,
		record.OvertimeHours,
		record.Notes,
		record.ApprovedBy,
		record.ApprovedAt,
		record.UpdatedAt,
		record.ID,
	)
	return err
}

// AttendanceFilter narrows ListAttendance. A nil UserIDs means no visibility
// restriction; an empty non-nil slice matches nothing.
type AttendanceFilter struct {
	UserIDs   []string
	UserID    string
	Date      string
	StartDate string
	EndDate   string
}

func (s *Store) ListAttendance(ctx context.Context, filter AttendanceFilter) ([]model.AttendanceRecord, error) {
	where := []string{}
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.UserIDs != nil {
		add("user_id = ANY($%d)", filter.UserIDs)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Date != "" {
		add("date = $%d", filter.Date)
	}
	if filter.StartDate != "" {
		add("date >= $%d", filter.StartDate)
	}
	if filter.EndDate != "" {
		add("date <= $%d", filter.EndDate)
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, user_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.AttendanceRecord{}
	for rows.Next() {
		record, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Store) DeleteAttendance(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
