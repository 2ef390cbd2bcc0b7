// Package completeness scores how much of a profile has been supplied and
// verified.
//
// Calculate is pure: the same inputs always give the same report. Weights are
// expected to sum to 100; config validation enforces that at startup.
package completeness

import (
	"profile-service/internal/domain"
)

// MinDocuments is the document count that earns the documents share.
const MinDocuments = 3

// Weights are the percentage points each section contributes.
type Weights struct {
	PersonalInfo  float64 `yaml:"personal_info"`
	AddressInfo   float64 `yaml:"address_info"`
	KYCInfo       float64 `yaml:"kyc_info"`
	DocumentsInfo float64 `yaml:"documents_info"`
}

var DefaultWeights = Weights{PersonalInfo: 50, AddressInfo: 20, KYCInfo: 20, DocumentsInfo: 10}

// Sum totals the four weights.
func (w Weights) Sum() float64 {
	return w.PersonalInfo + w.AddressInfo + w.KYCInfo + w.DocumentsInfo
}

// Input is the committed state a score is computed from.
type Input struct {
	Profile   *domain.Profile
	Addresses []*domain.Address
	Documents []*domain.Document
}

// Report is the overall score with its per-section shares.
type Report struct {
	Overall       float64  `json:"overall_completeness"`
	PersonalInfo  float64  `json:"personal_info"`
	AddressInfo   float64  `json:"address_info"`
	KYCInfo       float64  `json:"kyc_info"`
	DocumentsInfo float64  `json:"documents_info"`
	MissingFields []string `json:"missing_fields"`
}

// Calculate scores in. Deleted addresses and documents never count.
func Calculate(w Weights, in Input) Report {
	p := in.Profile
	r := Report{MissingFields: []string{}}

	personal := personalFields(p)
	filled := 0
	for _, f := range personal {
		if f.present {
			filled++
		} else {
			r.MissingFields = append(r.MissingFields, f.name)
		}
	}
	r.PersonalInfo = float64(filled) / float64(len(personal)) * w.PersonalInfo

	if p.PANID == "" {
		r.MissingFields = append(r.MissingFields, "pan_id")
	}

	if hasVerifiedAddress(in.Addresses) {
		r.AddressInfo = w.AddressInfo
	} else {
		r.MissingFields = append(r.MissingFields, "verified_address")
	}

	if p.KYCStatus == domain.KYCStatusVerified {
		r.KYCInfo = w.KYCInfo
	} else {
		r.MissingFields = append(r.MissingFields, "kyc")
	}

	if liveDocuments(in.Documents) >= MinDocuments {
		r.DocumentsInfo = w.DocumentsInfo
	} else {
		r.MissingFields = append(r.MissingFields, "documents")
	}

	r.Overall = r.PersonalInfo + r.AddressInfo + r.KYCInfo + r.DocumentsInfo
	return r
}

type field struct {
	name    string
	present bool
}

func personalFields(p *domain.Profile) []field {
	return []field{
		{"first_name", p.FirstName != ""},
		{"last_name", p.LastName != ""},
		{"date_of_birth", p.DateOfBirth != ""},
		{"gender", p.Gender != ""},
		{"phone", p.Phone != ""},
		{"email", p.Email != ""},
	}
}

func hasVerifiedAddress(addrs []*domain.Address) bool {
	for _, a := range addrs {
		if a.IsVerified() {
			return true
		}
	}
	return false
}

func liveDocuments(docs []*domain.Document) int {
	n := 0
	for _, d := range docs {
		if !d.IsDeleted() {
			n++
		}
	}
	return n
}
