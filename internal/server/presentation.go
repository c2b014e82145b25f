package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kokukuma/openid4vp-verifier/document"
	"github.com/kokukuma/openid4vp-verifier/internal/log"
	"github.com/kokukuma/openid4vp-verifier/internal/qr"
	"github.com/kokukuma/openid4vp-verifier/internal/verifier"
)

const maxBodySize = 1 << 20

func (s *Server) ListCredentials(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.catalog, http.StatusOK)
}

func (s *Server) CreatePresentationRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErrorResponse(w, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		jsonErrorResponse(w, fmt.Errorf("failed to read request: %v", err), http.StatusBadRequest)
		return
	}

	descriptor, err := document.ParseQueryDescriptor(body)
	if err != nil {
		jsonErrorResponse(w, fmt.Errorf("DCQL with credentials required: %v", err), http.StatusBadRequest)
		return
	}

	submission, err := s.controller.Submit(r.Context(), descriptor)
	if err != nil {
		if errors.Is(err, verifier.ErrInvalidDescriptor) {
			jsonErrorResponse(w, err, http.StatusBadRequest)
			return
		}
		logger.Error("failed to store presentation request", log.WithError(err))
		jsonErrorResponse(w, errors.New("failed to create presentation request"), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, submission, http.StatusOK)
}

func (s *Server) GetPresentationRequest(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	debug := false
	if s.debugEnabled {
		switch r.URL.Query().Get("debug") {
		case "true", "1":
			debug = true
		}
	}

	retrieval, err := s.controller.Retrieve(r.Context(), requestID, requestHostname(r), debug)
	switch {
	case errors.Is(err, verifier.ErrNotFound):
		jsonErrorResponse(w, errors.New("Presentation request not found"), http.StatusNotFound)
		return
	case errors.Is(err, verifier.ErrExpired):
		jsonErrorResponse(w, errors.New("Presentation request expired"), http.StatusGone)
		return
	case err != nil:
		jsonErrorResponse(w, errors.New("failed to generate vp_token"), http.StatusInternalServerError)
		return
	}

	if debug {
		jsonResponse(w, retrieval, http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s", retrieval.Token)
}

type QRCodeRequest struct {
	Text string `json:"text"`
}

type QRCodeResponse struct {
	QRCode string `json:"qrCode"`
}

func (s *Server) QRCode(w http.ResponseWriter, r *http.Request) {
	req := QRCodeRequest{}
	if err := parseJSON(r, &req); err != nil {
		jsonErrorResponse(w, fmt.Errorf("failed to parse request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		jsonErrorResponse(w, qr.ErrEmptyText, http.StatusBadRequest)
		return
	}

	dataURL, err := qr.DataURL(req.Text, qr.DefaultSize)
	if err != nil {
		logger.Error("failed to render QR code", log.WithError(err))
		jsonErrorResponse(w, errors.New("failed to generate QR code"), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, QRCodeResponse{QRCode: dataURL}, http.StatusOK)
}
