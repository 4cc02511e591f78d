package student

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"idcard/internal/auth"
)

// Registration is the input for creating a student account.
type Registration struct {
	Profile
	Email         string
	Password      string
	PassportPath  string
	SignaturePath string
}

// Service implements account, approval and print bookkeeping rules on top
// of a Repository.
type Service struct {
	repo Repository
	log  logrus.FieldLogger
	now  func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, log logrus.FieldLogger) *Service {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

// RegisterStudent creates a self-registered student. Both a passport photo
// and a signature are required.
func (s *Service) RegisterStudent(ctx context.Context, reg Registration) (User, error) {
	if reg.PassportPath == "" {
		return User{}, ErrPassportRequired
	}
	if reg.SignaturePath == "" {
		return User{}, ErrSignatureRequired
	}
	return s.createStudent(ctx, reg)
}

// AddStudent creates a student on behalf of an admin. Uploads come later.
func (s *Service) AddStudent(ctx context.Context, reg Registration) (User, error) {
	reg.PassportPath, reg.SignaturePath = "", ""
	return s.createStudent(ctx, reg)
}

func (s *Service) createStudent(ctx context.Context, reg Registration) (User, error) {
	email, hash, err := credentials(reg.Email, reg.Password)
	if err != nil {
		return User{}, err
	}
	p := reg.Profile.normalized()
	u, err := s.repo.Create(ctx, User{
		Role:          RoleStudent,
		FullName:      p.FullName,
		Sex:           p.Sex,
		DOB:           p.DOB,
		BloodGroup:    p.BloodGroup,
		Course:        p.Course,
		RegNo:         p.RegNo,
		Level:         p.Level,
		Email:         email,
		PasswordHash:  hash,
		PassportPath:  reg.PassportPath,
		SignaturePath: reg.SignaturePath,
	})
	if err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "reg_no": u.RegNo}).Info("student registered")
	return u, nil
}

// RegisterAdmin creates an admin. While no admin exists anyone may do this;
// afterwards only an admin (byAdmin) can.
func (s *Service) RegisterAdmin(ctx context.Context, fullName, email, password string, byAdmin bool) (User, error) {
	if !byAdmin {
		exists, err := s.HasAdmin(ctx)
		if err != nil {
			return User{}, err
		}
		if exists {
			return User{}, ErrAdminExists
		}
	}
	email, hash, err := credentials(email, password)
	if err != nil {
		return User{}, err
	}
	u, err := s.repo.Create(ctx, User{
		Role:         RoleAdmin,
		FullName:     strings.TrimSpace(fullName),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("admin registered")
	return u, nil
}

// HasAdmin reports whether at least one admin account exists.
func (s *Service) HasAdmin(ctx context.Context) (bool, error) {
	n, err := s.repo.CountAdmins(ctx)
	return n > 0, err
}

// Authenticate checks email and password for an account of the given role.
func (s *Service) Authenticate(ctx context.Context, role, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, role, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// UpdateProfile replaces the identity fields of a student.
func (s *Service) UpdateProfile(ctx context.Context, id int64, p Profile) (User, error) {
	if err := s.repo.UpdateProfile(ctx, id, p.normalized()); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateAssets replaces the passport and/or signature. Empty paths keep the
// current file.
func (s *Service) UpdateAssets(ctx context.Context, id int64, passportPath, signaturePath string) (User, error) {
	if passportPath != "" || signaturePath != "" {
		if err := s.repo.SetAssets(ctx, id, passportPath, signaturePath); err != nil {
			return User{}, err
		}
	}
	return s.repo.Get(ctx, id)
}

// UploadReceipt stores a payment receipt and sends the student back to
// pending approval.
func (s *Service) UploadReceipt(ctx context.Context, id int64, path string) (User, error) {
	if path == "" {
		return User{}, fmt.Errorf("%w: No receipt provided.", ErrInvalidInput)
	}
	if err := s.repo.SetReceipt(ctx, id, path); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// SetApproval approves or un-approves a student.
func (s *Service) SetApproval(ctx context.Context, id int64, approved bool) (User, error) {
	u, err := s.student(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.SetApproval(ctx, u.ID, approved); err != nil {
		return User{}, err
	}
	u.Approved = approved
	s.log.WithFields(logrus.Fields{"user_id": id, "approved": approved}).Info("approval updated")
	return u, nil
}

// Delete removes any user other than the acting one.
func (s *Service) Delete(ctx context.Context, actorID, id int64) (User, error) {
	if actorID == id {
		return User{}, ErrSelfDelete
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": id, "by": actorID}).Info("account deleted")
	return u, nil
}

// Search lists students matching q together with population stats.
func (s *Service) Search(ctx context.Context, q string) ([]User, Stats, error) {
	users, err := s.repo.ListStudents(ctx, q)
	if err != nil {
		return nil, Stats{}, err
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, Stats{}, err
	}
	return users, stats, nil
}

// Printable returns the student whose card is about to be printed. Students
// printing their own card must be approved; admins may print any student.
func (s *Service) Printable(ctx context.Context, id int64, requireApproval bool) (User, error) {
	u, err := s.student(ctx, id)
	if err != nil {
		return User{}, err
	}
	if requireApproval && !u.Approved {
		return User{}, ErrNotApproved
	}
	return u, nil
}

// RecordPrint increments the print counter and appends to the print log.
func (s *Service) RecordPrint(ctx context.Context, id int64, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	if err := s.repo.RecordPrint(ctx, id, at.UTC()); err != nil {
		return fmt.Errorf("record print for user %d: %w", id, err)
	}
	return nil
}

// CSVHeader is the first row of ExportCSV.
var CSVHeader = []string{"Full Name", "Reg No", "Course", "Level", "Sex", "DOB", "Blood Group", "Email", "Approved", "Prints"}

// ExportCSV writes every student ordered by full name.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer) error {
	users, err := s.repo.StudentsByName(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, u := range users {
		approved := "No"
		if u.Approved {
			approved = "Yes"
		}
		if err := cw.Write([]string{
			u.FullName, u.RegNo, u.Course, u.Level, u.Sex, u.DOB, u.BloodGroup, u.Email,
			approved, strconv.Itoa(u.PrintCount),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Service) student(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Role != RoleStudent {
		return User{}, ErrNotFound
	}
	return u, nil
}

func credentials(email, password string) (string, string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrEmptyPassword) {
		return "", "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if err != nil {
		return "", "", err
	}
	return email, hash, nil
}
