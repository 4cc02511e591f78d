package card

import "errors"

// ErrNilStudent is returned when Compose is called without a record.
var ErrNilStudent = errors.New("card: student record is required")

// Student is the attribute set printed on one identity card. Empty fields
// render as blank values.
type Student struct {
	FullName   string `json:"full_name"`
	Sex        string `json:"sex"`
	DOB        string `json:"dob"`
	BloodGroup string `json:"blood_group"`
	Course     string `json:"course"`
	RegNo      string `json:"reg_no"`
	Level      string `json:"level"`

	// PhotoPath and SignaturePath point at previously stored raster images.
	// Either may be empty or unreadable; the card is still produced.
	PhotoPath     string `json:"photo_path,omitempty"`
	SignaturePath string `json:"signature_path,omitempty"`
}

// Institution identifies the issuing school in the card header.
type Institution struct {
	Name      string
	Address   string
	CardLabel string
	LogoPath  string
}

// DefaultInstitution returns the header used when nothing else is configured.
func DefaultInstitution() Institution {
	return Institution{
		Name:      "ADESEUN OGUNDOYIN POLYTECHNIC ERUWA",
		Address:   "P.M.B. 1015, ERUWA, OYO STATE, NIGERIA",
		CardLabel: "STUDENT IDENTITY CARD",
		LogoPath:  "assets/aop_logo.png",
	}
}
