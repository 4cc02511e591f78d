package student

import (
	"strings"
	"time"

	"idcard/internal/card"
)

// Roles stored in users.role.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// User is a row of the users table. Admins only carry FullName, Email and
// the password hash.
type User struct {
	ID            int64     `json:"id"`
	Role          string    `json:"role"`
	FullName      string    `json:"full_name"`
	Sex           string    `json:"sex"`
	DOB           string    `json:"dob"`
	BloodGroup    string    `json:"blood_group"`
	Course        string    `json:"course"`
	RegNo         string    `json:"reg_no"`
	Level         string    `json:"level"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	PassportPath  string    `json:"-"`
	SignaturePath string    `json:"-"`
	ReceiptPath   string    `json:"-"`
	Approved      bool      `json:"is_approved"`
	PrintCount    int       `json:"id_print_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasPassport reports whether a passport photo is on file.
func (u User) HasPassport() bool { return u.PassportPath != "" }

// HasSignature reports whether a signature image is on file.
func (u User) HasSignature() bool { return u.SignaturePath != "" }

// HasReceipt reports whether a payment receipt has been uploaded.
func (u User) HasReceipt() bool { return u.ReceiptPath != "" }

// Card converts the user into the record the card engine draws.
func (u User) Card() *card.Student {
	return &card.Student{
		FullName:      u.FullName,
		Sex:           u.Sex,
		DOB:           u.DOB,
		BloodGroup:    u.BloodGroup,
		Course:        u.Course,
		RegNo:         u.RegNo,
		Level:         u.Level,
		PhotoPath:     u.PassportPath,
		SignaturePath: u.SignaturePath,
	}
}

// Profile is the editable identity part of a student.
type Profile struct {
	FullName   string `json:"full_name" form:"full_name"`
	Sex        string `json:"sex" form:"sex"`
	DOB        string `json:"dob" form:"dob"`
	BloodGroup string `json:"blood_group" form:"blood_group"`
	Course     string `json:"course" form:"course"`
	RegNo      string `json:"reg_no" form:"reg_no"`
	Level      string `json:"level" form:"level"`
}

func (p Profile) normalized() Profile {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Sex = strings.TrimSpace(p.Sex)
	p.DOB = strings.TrimSpace(p.DOB)
	p.BloodGroup = strings.TrimSpace(p.BloodGroup)
	p.Course = strings.TrimSpace(p.Course)
	p.RegNo = NormalizeRegNo(p.RegNo)
	p.Level = strings.TrimSpace(p.Level)
	return p
}

// Stats summarises the student population for the admin dashboard.
type Stats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Prints   int `json:"prints"`
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeRegNo trims and uppercases a registration number.
func NormalizeRegNo(regNo string) string {
	return strings.ToUpper(strings.TrimSpace(regNo))
}
