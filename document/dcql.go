package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/ory/go-convenience/stringslice"
)

//  https://openid.net/specs/openid-4-verifiable-presentations-1_0.html#name-digital-credentials-query-l

var ErrInvalidDescriptor = errors.New("invalid dcql query")

type DCQLQuery struct {
	Credentials    []CredentialQuery    `json:"credentials"`
	CredentialSets []CredentialSetQuery `json:"credential_sets,omitempty"`
}

type CredentialQuery struct {
	ID        string           `json:"id"`
	Format    string           `json:"format"`
	Meta      *MetaConstraints `json:"meta,omitempty"`
	Claims    []ClaimQuery     `json:"claims,omitempty"`
	ClaimSets [][]string       `json:"claim_sets,omitempty"`
}

type MetaConstraints struct {
	// For sd-jwt
	VCTValues []string `json:"vct_values,omitempty"`

	// For mdoc
	DocType string `json:"doctype_value,omitempty"`
}

type ClaimQuery struct {
	ID     string        `json:"id,omitempty"`
	Path   []interface{} `json:"path,omitempty"`
	Values []interface{} `json:"values,omitempty"`
}

type CredentialSetQuery struct {
	Options  [][]string  `json:"options"`
	Required *bool       `json:"required,omitempty"`
	Purpose  interface{} `json:"purpose,omitempty"`
}

// QueryDescriptor is a validated DCQL query that keeps the JSON it was parsed from,
// so it is echoed and embedded exactly as the caller sent it.
type QueryDescriptor struct {
	Query *DCQLQuery
	raw   json.RawMessage
}

// ParseQueryDescriptor decodes and validates a DCQL query.
func ParseQueryDescriptor(data []byte) (*QueryDescriptor, error) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	obj, ok := generic.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: query must be a JSON object", ErrInvalidDescriptor)
	}

	creds, ok := obj["credentials"]
	if !ok {
		return nil, fmt.Errorf("%w: credentials is required", ErrInvalidDescriptor)
	}
	if _, ok := creds.([]interface{}); !ok {
		return nil, fmt.Errorf("%w: credentials must be a list", ErrInvalidDescriptor)
	}

	var query DCQLQuery
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &query,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	if err := query.Validate(); err != nil {
		return nil, err
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	return &QueryDescriptor{
		Query: &query,
		raw:   compact.Bytes(),
	}, nil
}

// Validate checks the minimal shape a verifier can request with.
func (q *DCQLQuery) Validate() error {
	if q == nil || len(q.Credentials) == 0 {
		return fmt.Errorf("%w: at least one credential query is required", ErrInvalidDescriptor)
	}

	ids := make([]string, 0, len(q.Credentials))
	for i, cred := range q.Credentials {
		if cred.ID == "" {
			return fmt.Errorf("%w: credentials[%d].id is empty", ErrInvalidDescriptor, i)
		}
		if stringslice.Has(ids, cred.ID) {
			return fmt.Errorf("%w: duplicate credential id %q", ErrInvalidDescriptor, cred.ID)
		}
		ids = append(ids, cred.ID)
	}

	return nil
}

// Validate is used by stores before accepting a descriptor.
func (d *QueryDescriptor) Validate() error {
	if d == nil || len(d.raw) == 0 {
		return fmt.Errorf("%w: empty query", ErrInvalidDescriptor)
	}
	return d.Query.Validate()
}

func (d *QueryDescriptor) MarshalJSON() ([]byte, error) {
	if d == nil || len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

func (d *QueryDescriptor) UnmarshalJSON(data []byte) error {
	parsed, err := ParseQueryDescriptor(data)
	if err != nil {
		return err
	}
	*d = *parsed
	return nil
}
