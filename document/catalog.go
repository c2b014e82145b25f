package document

const FormatSDJWT = "dc+sd-jwt"

// CredentialTemplate describes a credential the verifier front-end offers to request.
type CredentialTemplate struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Format      string       `json:"format"`
	Description string       `json:"description"`
	VCTValues   []string     `json:"vct_values"`
	Claims      []ClaimQuery `json:"claims"`
}

func DefaultCatalog() []CredentialTemplate {
	return []CredentialTemplate{
		{
			ID:          "0",
			Type:        "PID",
			Format:      FormatSDJWT,
			Description: "Personal Identification Credential",
			VCTValues:   []string{"urn:eudi:pid:1"},
			Claims: []ClaimQuery{
				{Path: []interface{}{"family_name"}, ID: "family_name"},
				{Path: []interface{}{"given_name"}, ID: "given_name"},
			},
		},
		{
			ID:          "1",
			Type:        "PersonalData",
			Format:      FormatSDJWT,
			Description: "Custom credential for demonstration",
			VCTValues:   []string{"urn:custom:personaldata:1"},
			Claims: []ClaimQuery{
				{Path: []interface{}{"custom_data"}, ID: "custom_data"},
				{Path: []interface{}{"department"}, ID: "department"},
				{Path: []interface{}{"role"}, ID: "role"},
			},
		},
	}
}
