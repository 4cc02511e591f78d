package student

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("Email or Reg No already exists.")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrNotApproved        = errors.New("Not approved yet.")
	ErrSelfDelete         = errors.New("You cannot delete your own account here.")
	ErrPassportRequired   = errors.New("Passport is required (upload or capture).")
	ErrSignatureRequired  = errors.New(`Signature is required (upload or draw, then click "Use This").`)
	ErrAdminExists        = errors.New("Only admin can create another admin.")
	ErrInvalidInput       = errors.New("invalid input")
)

// Repository persists users and their print history. Lookups that match no
// row return ErrNotFound; unique email or reg no violations return
// ErrDuplicate.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, role, email string) (User, error)
	CountAdmins(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, id int64, p Profile) error
	// SetAssets replaces the passport and/or signature; empty paths are kept.
	SetAssets(ctx context.Context, id int64, passportPath, signaturePath string) error
	// SetReceipt stores the receipt and clears the approval flag.
	SetReceipt(ctx context.Context, id int64, path string) error
	SetApproval(ctx context.Context, id int64, approved bool) error
	Delete(ctx context.Context, id int64) error
	// ListStudents returns students newest first, filtered by a substring of
	// full name or reg no when query is not empty.
	ListStudents(ctx context.Context, query string) ([]User, error)
	// StudentsByName returns every student ordered by full name.
	StudentsByName(ctx context.Context) ([]User, error)
	Stats(ctx context.Context) (Stats, error)
	// RecordPrint increments the print counter and appends a print_log row
	// atomically.
	RecordPrint(ctx context.Context, id int64, at time.Time) error
}
