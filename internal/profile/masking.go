package profile

import "profile-service/internal/domain"

// maskedViewRoles see masked national IDs; every other role sees none of the
// identity or account fields.
var maskedViewRoles = map[string]bool{
	RoleCustomer:      true,
	RoleRiskOfficer:   true,
	RoleCreditOfficer: true,
	RoleLoanOfficer:   true,
}

// View is the read-boundary projection of a profile.
type View struct {
	domain.Profile
	AadhaarMasked string `json:"aadhaar_masked,omitempty"`
	PANMasked     string `json:"pan_id_masked,omitempty"`
}

// Mask projects p for a caller holding role. p is copied, never modified.
func Mask(p *domain.Profile, role string) *View {
	v := &View{Profile: *p}
	if !maskedViewRoles[role] {
		v.AadhaarID = ""
		v.PANID = ""
		v.PassportID = ""
		v.SalaryAccountNumber = ""
		v.SalaryAccountIFSC = ""
		return v
	}
	if v.AadhaarID != "" {
		v.AadhaarMasked = maskAadhaar(v.AadhaarID)
		v.AadhaarID = ""
	}
	if v.PANID != "" {
		v.PANMasked = maskPAN(v.PANID)
		if role == RoleCustomer {
			v.PANID = ""
		}
	}
	return v
}

// maskAadhaar keeps the last four digits: XXXX-XXXX-1234.
func maskAadhaar(aadhaar string) string {
	if len(aadhaar) < 4 {
		return "XXXX-XXXX-XXXX"
	}
	return "XXXX-XXXX-" + aadhaar[len(aadhaar)-4:]
}

// maskPAN keeps the first three and the last character: ABCXXXXF.
func maskPAN(pan string) string {
	if len(pan) < 4 {
		return "XXXX"
	}
	return pan[:3] + "XXXX" + pan[len(pan)-1:]
}
