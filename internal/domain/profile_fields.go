package domain

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	dErrors "profile-service/pkg/domain-errors"
)

// ProfileFields are the customer-editable profile attributes. A nil pointer
// leaves the stored value unchanged.
type ProfileFields struct {
	FirstName        *string           `json:"first_name,omitempty"`
	LastName         *string           `json:"last_name,omitempty"`
	FullName         *string           `json:"full_name,omitempty"`
	DateOfBirth      *string           `json:"date_of_birth,omitempty"`
	Gender           *Gender           `json:"gender,omitempty"`
	MaritalStatus    *MaritalStatus    `json:"marital_status,omitempty"`
	Phone            *string           `json:"phone,omitempty"`
	AlternativePhone *string           `json:"alternative_phone,omitempty"`
	Email            *string           `json:"email,omitempty"`
	OccupationType   *string           `json:"occupation_type,omitempty"`
	EmployerName     *string           `json:"employer_name,omitempty"`
	JobTitle         *string           `json:"job_title,omitempty"`
	EmploymentStatus *EmploymentStatus `json:"employment_status,omitempty"`
	AnnualIncome     *decimal.Decimal  `json:"annual_income,omitempty"`
}

// Validate checks formats and enum membership of the supplied fields.
func (f *ProfileFields) Validate() error {
	err := validation.ValidateStruct(f,
		validation.Field(&f.FirstName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&f.LastName, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&f.FullName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&f.DateOfBirth, dateRule),
		validation.Field(&f.Phone, phoneRule),
		validation.Field(&f.AlternativePhone, phoneRule),
		validation.Field(&f.Email, emailRule),
		validation.Field(&f.OccupationType, validation.Length(0, 100)),
		validation.Field(&f.EmployerName, validation.Length(0, 200)),
		validation.Field(&f.JobTitle, validation.Length(0, 100)),
	)
	if err != nil {
		return validationError(err)
	}
	if f.Gender != nil && !f.Gender.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "gender: must be male, female, other or prefer_not_to_say")
	}
	if f.MaritalStatus != nil && !f.MaritalStatus.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "marital_status: must be single, married, divorced or widowed")
	}
	if f.EmploymentStatus != nil && !f.EmploymentStatus.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "employment_status: unknown value")
	}
	if f.AnnualIncome != nil && f.AnnualIncome.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "annual_income: must not be negative")
	}
	return nil
}

// IdentityFields are set once, when the profile is created.
type IdentityFields struct {
	PANID               string `json:"pan_id,omitempty"`
	AadhaarID           string `json:"aadhaar_id,omitempty"`
	PassportID          string `json:"passport_id,omitempty"`
	SalaryAccountNumber string `json:"salary_account_number,omitempty"`
	SalaryAccountIFSC   string `json:"salary_account_ifsc,omitempty"`
	BankName            string `json:"bank_name,omitempty"`
}

func (f *IdentityFields) Validate() error {
	if f.PANID != "" && !ValidPAN(f.PANID) {
		return dErrors.New(dErrors.CodeValidation, "pan_id: must match AAAAA9999A")
	}
	if f.AadhaarID != "" && !ValidAadhaar(f.AadhaarID) {
		return dErrors.New(dErrors.CodeValidation, "aadhaar_id: must be 12 digits")
	}
	return validationError(validation.ValidateStruct(f,
		validation.Field(&f.PassportID, validation.Length(0, 20)),
		validation.Field(&f.SalaryAccountNumber, validation.Length(0, 20)),
		validation.Field(&f.SalaryAccountIFSC, validation.Length(0, 11)),
		validation.Field(&f.BankName, validation.Length(0, 100)),
	))
}

// FieldChange is one field-level difference produced by ApplyFields.
type FieldChange struct {
	Field string
	From  any
	To    any
}

// ApplyFields merges f into the profile and returns one FieldChange per field
// whose value actually changed. Supplying a field's current value is a no-op.
func (p *Profile) ApplyFields(f ProfileFields, now time.Time) []FieldChange {
	var changes []FieldChange
	diff(&changes, "first_name", &p.FirstName, f.FirstName)
	diff(&changes, "last_name", &p.LastName, f.LastName)
	diff(&changes, "full_name", &p.FullName, f.FullName)
	diff(&changes, "date_of_birth", &p.DateOfBirth, f.DateOfBirth)
	diff(&changes, "gender", &p.Gender, f.Gender)
	diff(&changes, "marital_status", &p.MaritalStatus, f.MaritalStatus)
	diff(&changes, "phone", &p.Phone, f.Phone)
	diff(&changes, "alternative_phone", &p.AlternativePhone, f.AlternativePhone)
	diff(&changes, "email", &p.Email, f.Email)
	diff(&changes, "occupation_type", &p.OccupationType, f.OccupationType)
	diff(&changes, "employer_name", &p.EmployerName, f.EmployerName)
	diff(&changes, "job_title", &p.JobTitle, f.JobTitle)
	diff(&changes, "employment_status", &p.EmploymentStatus, f.EmploymentStatus)

	if f.AnnualIncome != nil && (p.AnnualIncome == nil || !p.AnnualIncome.Equal(*f.AnnualIncome)) {
		var from any
		if p.AnnualIncome != nil {
			from = p.AnnualIncome.String()
		}
		next := *f.AnnualIncome
		changes = append(changes, FieldChange{Field: "annual_income", From: from, To: next.String()})
		p.AnnualIncome = &next
	}

	if len(changes) > 0 {
		p.UpdatedAt = now
	}
	return changes
}

// ApplyIdentity sets the immutable identity fields at creation.
func (p *Profile) ApplyIdentity(f IdentityFields) {
	p.PANID = f.PANID
	p.AadhaarID = f.AadhaarID
	p.PassportID = f.PassportID
	p.SalaryAccountNumber = f.SalaryAccountNumber
	p.SalaryAccountIFSC = f.SalaryAccountIFSC
	p.BankName = f.BankName
}

func diff[T comparable](changes *[]FieldChange, name string, current *T, next *T) {
	if next == nil || *current == *next {
		return
	}
	*changes = append(*changes, FieldChange{Field: name, From: *current, To: *next})
	*current = *next
}
