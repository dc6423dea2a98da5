package model

// SocialLinks holds the optional profile URLs harvested for a member.
type SocialLinks struct {
	ProfessionalNetwork string `json:"linkedin,omitempty"`
	CodeHosting         string `json:"github,omitempty"`
	Microblog           string `json:"twitter,omitempty"`
}

// IdentityRecord is one harvested person attached to one organization.
// Records are produced once by the directory collector and never mutated.
type IdentityRecord struct {
	Name             string      `json:"name"`
	OrganizationName string      `json:"organization_name"`
	Social           SocialLinks `json:"social"`
	BatchTag         string      `json:"batch,omitempty"`
}

// Equal reports full structural equality, including empty optional fields.
func (r IdentityRecord) Equal(other IdentityRecord) bool {
	return r == other
}

// HasUsableFields reports whether the record carries anything the match API
// can key on.
func (r IdentityRecord) HasUsableFields() bool {
	return r.Name != "" || r.OrganizationName != "" || r.Social.ProfessionalNetwork != ""
}
