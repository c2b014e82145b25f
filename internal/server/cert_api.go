package server

import (
	"net/http"
	"time"
)

type CertificateInfo struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	DNSNames     []string  `json:"dns_names,omitempty"`
	IsCA         bool      `json:"is_ca"`
}

type CertificateResponse struct {
	Info    CertificateInfo `json:"info"`
	PEMData string          `json:"pem_data"`
}

// GetCertificateHandler returns the certificate carried in the x5c header of every request object.
func (s *Server) GetCertificateHandler(w http.ResponseWriter, r *http.Request) {
	cert := s.keys.Certificate

	response := CertificateResponse{
		Info: CertificateInfo{
			Subject:      cert.Subject.String(),
			Issuer:       cert.Issuer.String(),
			SerialNumber: cert.SerialNumber.String(),
			NotBefore:    cert.NotBefore,
			NotAfter:     cert.NotAfter,
			DNSNames:     cert.DNSNames,
			IsCA:         cert.IsCA,
		},
		PEMData: string(s.keys.CertificatePEM),
	}

	jsonResponse(w, response, http.StatusOK)
}
