package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository persists users in Postgres through the pgx stdlib driver.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, role, full_name, sex, dob, blood_group, course, COALESCE(reg_no, ''), level, email,
	password_hash, passport_path, signature_path, receipt_path, is_approved, id_print_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Role, &u.FullName, &u.Sex, &u.DOB, &u.BloodGroup, &u.Course, &u.RegNo, &u.Level,
		&u.Email, &u.PasswordHash, &u.PassportPath, &u.SignaturePath, &u.ReceiptPath, &u.Approved, &u.PrintCount,
		&u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *PostgresRepository) Create(ctx context.Context, u User) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (role, full_name, sex, dob, blood_group, course, reg_no, level, email, password_hash,
			passport_path, signature_path, receipt_path, is_approved, id_print_count)
		VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7, ''),$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, created_at
	`, u.Role, u.FullName, u.Sex, u.DOB, u.BloodGroup, u.Course, u.RegNo, u.Level, u.Email, u.PasswordHash,
		u.PassportPath, u.SignaturePath, u.ReceiptPath, u.Approved, u.PrintCount)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, role, email string) (User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 AND email = $2`, role, email))
}

func (r *PostgresRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = 'admin'`).Scan(&n)
	return n, err
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, p Profile) error {
	return r.exec(ctx, `
		UPDATE users
		SET full_name = $2, sex = $3, dob = $4, blood_group = $5, course = $6, reg_no = NULLIF($7, ''), level = $8
		WHERE id = $1
	`, id, p.FullName, p.Sex, p.DOB, p.BloodGroup, p.Course, p.RegNo, p.Level)
}

func (r *PostgresRepository) SetAssets(ctx context.Context, id int64, passportPath, signaturePath string) error {
	return r.exec(ctx, `
		UPDATE users
		SET passport_path = COALESCE(NULLIF($2, ''), passport_path),
			signature_path = COALESCE(NULLIF($3, ''), signature_path)
		WHERE id = $1
	`, id, passportPath, signaturePath)
}

func (r *PostgresRepository) SetReceipt(ctx context.Context, id int64, path string) error {
	return r.exec(ctx, `UPDATE users SET receipt_path = $2, is_approved = FALSE WHERE id = $1`, id, path)
}

func (r *PostgresRepository) SetApproval(ctx context.Context, id int64, approved bool) error {
	return r.exec(ctx, `UPDATE users SET is_approved = $2 WHERE id = $1`, id, approved)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) ListStudents(ctx context.Context, query string) ([]User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE role = 'student'`
	args := []any{}
	if query = strings.TrimSpace(query); query != "" {
		q += ` AND (full_name ILIKE $1 ESCAPE '\' OR reg_no ILIKE $1 ESCAPE '\')`
		args = append(args, "%"+escapeLike(query)+"%")
	}
	q += ` ORDER BY id DESC`
	return r.list(ctx, q, args...)
}

func (r *PostgresRepository) StudentsByName(ctx context.Context) ([]User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = 'student' ORDER BY full_name, id`)
}

func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_approved),
			COUNT(*) FILTER (WHERE NOT is_approved),
			COALESCE(SUM(id_print_count), 0)
		FROM users WHERE role = 'student'
	`).Scan(&s.Total, &s.Approved, &s.Pending, &s.Prints)
	return s, err
}

func (r *PostgresRepository) RecordPrint(ctx context.Context, id int64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET id_print_count = id_print_count + 1 WHERE id = $1 AND role = 'student'`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO print_log (user_id, printed_at) VALUES ($1, $2)`, id, at); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// mapError turns unique violations into ErrDuplicate.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w (%s)", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
