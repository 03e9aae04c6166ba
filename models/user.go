package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// User represents one registered person in the registry
type User struct {
	NationalID string `json:"national_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	BirthDate  string `json:"birth_date"`
}

// controlLetters is the DNI/NIE checksum alphabet, indexed by number mod 23
const controlLetters = "TRWAGMYFPDXBNJZSQVHLCKE"

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "02/01/2006"
)

var (
	// nationalIDRegex matches a DNI (8 digits) or NIE (X/Y/Z + 7 digits) followed by a control letter
	nationalIDRegex = regexp.MustCompile(`^(?:\d{8}|[XYZ]\d{7})[` + controlLetters + `]$`)

	// nameRegex allows letter runs joined by single hyphens, tokens separated by single spaces
	nameRegex = regexp.MustCompile(`^[a-zA-ZáéíóúàèòïüñçÁÉÍÓÚÀÈÒÏÜÑÇ]+(?:-[a-zA-ZáéíóúàèòïüñçÁÉÍÓÚÀÈÒÏÜÑÇ]+)*(?: [a-zA-ZáéíóúàèòïüñçÁÉÍÓÚÀÈÒÏÜÑÇ]+(?:-[a-zA-ZáéíóúàèòïüñçÁÉÍÓÚÀÈÒÏÜÑÇ]+)*)*$`)

	// birthDateRegex only bounds the day to 01-31; see ValidCalendarDate for month lengths
	birthDateRegex = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

	displayDateRegex = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// NormalizeNationalID uppercases a raw identifier
func NormalizeNationalID(raw string) string {
	return strings.ToUpper(raw)
}

// ValidNationalID reports whether id (already normalized) has the DNI/NIE shape
func ValidNationalID(id string) bool {
	return nationalIDRegex.MatchString(id)
}

// NationalIDChecksumOK verifies the control letter of a well-formed id.
// NIE prefixes X, Y and Z stand for 0, 1 and 2.
func NationalIDChecksumOK(id string) bool {
	if !ValidNationalID(id) {
		return false
	}
	digits := id[:len(id)-1]
	switch digits[0] {
	case 'X':
		digits = "0" + digits[1:]
	case 'Y':
		digits = "1" + digits[1:]
	case 'Z':
		digits = "2" + digits[1:]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return false
	}
	return controlLetters[n%23] == id[len(id)-1]
}

// ValidName reports whether s is a well-formed first name or surname
func ValidName(s string) bool {
	return nameRegex.MatchString(s)
}

// ValidBirthDate reports whether s matches the YYYY-MM-DD input form
func ValidBirthDate(s string) bool {
	return birthDateRegex.MatchString(s)
}

// ValidCalendarDate reports whether an ISO date names a real calendar day
func ValidCalendarDate(s string) bool {
	_, err := time.Parse(isoDateLayout, s)
	return err == nil
}

// ISOToDisplayDate reorders YYYY-MM-DD into DD/MM/YYYY without calendar arithmetic
func ISOToDisplayDate(iso string) string {
	parts := strings.Split(iso, "-")
	if len(parts) != 3 {
		return iso
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

// DisplayToISODate is the inverse of ISOToDisplayDate
func DisplayToISODate(display string) (string, error) {
	m := displayDateRegex.FindStringSubmatch(display)
	if m == nil {
		return "", fmt.Errorf("birth date %q is not in DD/MM/YYYY form", display)
	}
	return m[3] + "-" + m[2] + "-" + m[1], nil
}

// Validate checks the stored shape of a user record. The birth date is
// expected in display form.
func (u *User) Validate() error {
	var verr ValidationError
	if !ValidNationalID(u.NationalID) {
		verr.add(FieldNationalID, ReasonInvalid)
	}
	if !ValidName(u.FirstName) {
		verr.add(FieldFirstName, ReasonInvalid)
	}
	if !ValidName(u.LastName) {
		verr.add(FieldLastName, ReasonInvalid)
	}
	iso, err := DisplayToISODate(u.BirthDate)
	if err != nil || !ValidBirthDate(iso) {
		verr.add(FieldBirthDate, ReasonInvalid)
	}
	return verr.OrNil()
}

// Sanitize normalizes the identifier
func (u *User) Sanitize() {
	u.NationalID = NormalizeNationalID(u.NationalID)
}
