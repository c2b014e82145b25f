package openid4vp

import (
	"fmt"

	"github.com/kokukuma/openid4vp-verifier/document"
)

// https://openid.net/specs/openid-4-verifiable-presentations-1_0.html

const (
	ResponseTypeVPToken    = "vp_token"
	ResponseModeDirectPost = "direct_post"
	DefaultClientName      = "OpenID4VP Verifier"
)

var supportedAlgs = []string{"ES256", "ES384", "EdDSA", "Ed25519", "ES256K"}

type AuthorizationRequest struct {
	ResponseType   string                    `json:"response_type"`
	ClientID       string                    `json:"client_id"`
	ResponseURI    string                    `json:"response_uri"`
	ResponseMode   string                    `json:"response_mode"`
	Nonce          string                    `json:"nonce"`
	DCQLQuery      *document.QueryDescriptor `json:"dcql_query"`
	ClientMetadata ClientMetadata            `json:"client_metadata"`
	State          string                    `json:"state"`
}

type ClientMetadata struct {
	VPFormatsSupported     map[string]VPFormat `json:"vp_formats_supported"`
	LogoURI                string              `json:"logo_uri"`
	ClientName             string              `json:"client_name"`
	ResponseTypesSupported []string            `json:"response_types_supported"`
}

type VPFormat struct {
	SDJWTAlgValues []string `json:"sd-jwt_alg_values,omitempty"`
	KBJWTAlgValues []string `json:"kb-jwt_alg_values,omitempty"`
}

func CreateClientMetadata(hostname, clientName string) ClientMetadata {
	if clientName == "" {
		clientName = DefaultClientName
	}
	return ClientMetadata{
		VPFormatsSupported: map[string]VPFormat{
			document.FormatSDJWT: {
				SDJWTAlgValues: supportedAlgs,
				KBJWTAlgValues: supportedAlgs,
			},
		},
		LogoURI:                fmt.Sprintf("https://%s/logo.png", hostname),
		ClientName:             clientName,
		ResponseTypesSupported: []string{ResponseTypeVPToken},
	}
}

// RequestResourceURI is the audience of the request object: the resource the wallet dereferenced.
func RequestResourceURI(hostname, requestID string) string {
	return fmt.Sprintf("https://%s/presentation-request/%s", hostname, requestID)
}

func ResponseURI(hostname, requestID string) string {
	return fmt.Sprintf("%s/authorize?session=%s", RequestResourceURI(hostname, requestID), requestID)
}
