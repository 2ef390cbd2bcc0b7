package domain

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	dErrors "profile-service/pkg/domain-errors"
)

var (
	phonePattern        = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	emailPattern        = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	panPattern          = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern      = regexp.MustCompile(`^\d{12}$`)
	indianPostalPattern = regexp.MustCompile(`^\d{6}$`)
	postalPattern       = regexp.MustCompile(`^\d{5,10}$`)
)

const dateLayout = "2006-01-02"

func ValidPhone(s string) bool   { return phonePattern.MatchString(s) }
func ValidEmail(s string) bool   { return emailPattern.MatchString(s) }
func ValidPAN(s string) bool     { return panPattern.MatchString(s) }
func ValidAadhaar(s string) bool { return aadhaarPattern.MatchString(s) }

// ValidatePostalCode applies the Indian 6-digit PIN rule for India and a
// generic 5-10 digit rule elsewhere.
func ValidatePostalCode(country, code string) error {
	if country == "" || strings.EqualFold(country, "india") {
		if !indianPostalPattern.MatchString(code) {
			return dErrors.New(dErrors.CodeValidation, "postal_code must be a 6 digit PIN code")
		}
		return nil
	}
	if !postalPattern.MatchString(code) {
		return dErrors.New(dErrors.CodeValidation, "postal_code must be 5 to 10 digits")
	}
	return nil
}

// validationError converts ozzo field errors into a single domain validation error.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
}

var (
	phoneRule = validation.Match(phonePattern).Error("must be an E.164 phone number")
	emailRule = validation.Match(emailPattern).Error("must be a valid email address")
	dateRule  = validation.Date(dateLayout).Error("must be a date in YYYY-MM-DD format")
)
