package profile

import (
	"slices"

	dErrors "profile-service/pkg/domain-errors"
	"profile-service/pkg/requestcontext"
)

// Caller roles issued by the identity provider.
const (
	RoleCustomer            = "customer"
	RoleRiskOfficer         = "risk_officer"
	RoleCreditOfficer       = "credit_officer"
	RoleLoanOfficer         = "loan_officer"
	RoleSeniorRiskOfficer   = "senior_risk_officer"
	RoleSeniorCreditOfficer = "senior_credit_officer"
	RoleSystem              = "system"
	RoleAdmin               = "admin"
)

// Permission is an (action, resource kind) pair guarded by the policy.
type Permission struct {
	Resource string
	Action   string
}

func (p Permission) String() string {
	return p.Resource + ":" + p.Action
}

var (
	PermCreateProfile    = Permission{Resource: "profile", Action: "create"}
	PermReadAudit        = Permission{Resource: "audit", Action: "read"}
	PermVerifyAddress    = Permission{Resource: "address", Action: "verify"}
	PermVerifyDocument   = Permission{Resource: "document", Action: "verify"}
	PermUpdateKYCCheck   = Permission{Resource: "kyc", Action: "update_check"}
	PermRejectKYC        = Permission{Resource: "kyc", Action: "reject"}
	PermExpireKYC        = Permission{Resource: "kyc", Action: "expire"}
	PermReadKYC          = Permission{Resource: "kyc", Action: "read"}
	PermCreateEnrichment = Permission{Resource: "enrichment", Action: "create"}
	PermReviewEnrichment = Permission{Resource: "enrichment", Action: "review"}
	PermListEnrichments  = Permission{Resource: "enrichment", Action: "list"}
)

var (
	officerRoles = []string{RoleRiskOfficer, RoleCreditOfficer}
	seniorRoles  = []string{RoleSeniorRiskOfficer, RoleSeniorCreditOfficer}
)

// DefaultRules maps each guarded permission to the roles allowed to use it.
var DefaultRules = map[Permission][]string{
	PermCreateProfile:    {RoleSystem, RoleAdmin},
	PermReadAudit:        {RoleRiskOfficer, RoleCreditOfficer, RoleSeniorRiskOfficer, RoleSeniorCreditOfficer, RoleAdmin},
	PermVerifyAddress:    officerRoles,
	PermVerifyDocument:   officerRoles,
	PermUpdateKYCCheck:   officerRoles,
	PermRejectKYC:        officerRoles,
	PermExpireKYC:        {RoleSystem, RoleAdmin},
	PermReadKYC:          {RoleRiskOfficer, RoleCreditOfficer, RoleSeniorRiskOfficer, RoleSeniorCreditOfficer, RoleAdmin},
	PermCreateEnrichment: officerRoles,
	PermReviewEnrichment: seniorRoles,
	PermListEnrichments:  {RoleRiskOfficer, RoleCreditOfficer, RoleSeniorRiskOfficer, RoleSeniorCreditOfficer},
}

// Policy is the role table evaluated for every guarded operation. A
// permission absent from the table is denied.
type Policy struct {
	rules map[Permission][]string
}

func NewPolicy(rules map[Permission][]string) *Policy {
	if rules == nil {
		rules = DefaultRules
	}
	return &Policy{rules: rules}
}

// Allows reports whether role holds perm.
func (p *Policy) Allows(role string, perm Permission) bool {
	return role != "" && slices.Contains(p.rules[perm], role)
}

// Authorize checks the caller against perm. An anonymous caller is
// unauthorized; a caller without a permitted role is forbidden.
func (p *Policy) Authorize(caller requestcontext.Principal, perm Permission) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if !p.Allows(caller.Role, perm) {
		return dErrors.Newf(dErrors.CodeForbidden, "role %q may not %s", caller.Role, perm)
	}
	return nil
}
