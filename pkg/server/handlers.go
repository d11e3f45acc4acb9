package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Layr-Labs/proof-of-reserve-go/pkg/codec"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/merkle"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/proofService"
	"github.com/Layr-Labs/proof-of-reserve-go/pkg/types"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// handleGetRoot handles GET /api/proof/root
func (s *Server) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	root, err := s.service.GetMerkleRoot()
	if err != nil {
		if errors.Is(err, merkle.ErrEmptyInput) {
			s.writeError(w, r, http.StatusServiceUnavailable, "No balances have been committed yet.")
			return
		}
		s.logger.Sugar().Errorw("Failed to compute merkle root", "request_id", requestIDFrom(r.Context()), "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeEncoded(w, r, http.StatusOK, root)
}

// handleGetProof handles GET /api/proof/{userId}
func (s *Server) handleGetProof(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("userId")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid user ID %q.", raw))
		return
	}

	result, err := s.service.GetProofForUser(userID)
	if err != nil {
		if errors.Is(err, proofService.ErrUserNotFound) {
			s.writeError(w, r, http.StatusNotFound, fmt.Sprintf("User ID %d not found.", userID))
			return
		}
		s.logger.Sugar().Errorw("Failed to build proof",
			"request_id", requestIDFrom(r.Context()),
			"user_id", userID,
			"error", err,
		)
		s.writeError(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	s.writeEncoded(w, r, http.StatusOK, result)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.HealthCheck(); err != nil {
			s.logger.Sugar().Warnw("Health check failed", "error", err)
			s.writeJSON(w, r, http.StatusServiceUnavailable, &HealthResponse{Status: "unhealthy", Error: err.Error()})
			return
		}
	}
	s.writeJSON(w, r, http.StatusOK, &HealthResponse{Status: "ok"})
}

// writeEncoded writes v as CBOR when the client asks for it, JSON otherwise
func (s *Server) writeEncoded(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	format := codec.FormatFromAccept(r.Header.Get("Accept"))

	body, err := codec.Encode(format, v)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "format", format.String(), "error", err)
		s.writeError(w, r, http.StatusInternalServerError, "Internal error")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Add("Vary", "Accept")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	body, err := codec.Encode(codec.FormatJSON, v)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", codec.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, &types.ErrorResponse{
		Error:     message,
		RequestID: requestIDFrom(r.Context()),
	})
}
