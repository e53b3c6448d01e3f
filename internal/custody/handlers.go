package custody

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

// Handlers handles HTTP requests for the record custody service
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates new custody HTTP handlers
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers HTTP routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/records", h.CreateRecord).Methods("POST")
	router.HandleFunc("/records/{recordID}", h.GetRecord).Methods("GET")
	router.HandleFunc("/records/{recordID}/download", h.DownloadRecord).Methods("GET")
	router.HandleFunc("/records/{recordID}/verify", h.VerifyRecord).Methods("GET")
	router.HandleFunc("/records/{recordID}/share", h.ShareRecord).Methods("POST")
	router.HandleFunc("/records/{recordID}/revoke", h.RevokeAccess).Methods("POST")

	router.HandleFunc("/patients/{patientID}/records", h.GetPatientRecords).Methods("GET")
	router.HandleFunc("/patients/{patientID}/access-logs", h.GetAccessLogs).Methods("GET")

	router.HandleFunc("/admin/retry-anchoring", h.RetryAnchoring).Methods("POST")
}

// CreateRecord ingests a new medical record from a multipart upload
func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxRecordSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Expected multipart form upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "File field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxRecordSize+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read uploaded file")
		return
	}

	request := &types.CreateRecordRequest{
		PatientID:        r.FormValue("patientId"),
		PatientAddress:   r.FormValue("patientAddress"),
		DoctorID:         r.FormValue("doctorId"),
		HospitalID:       r.FormValue("hospitalId"),
		RecordType:       r.FormValue("recordType"),
		Title:            r.FormValue("title"),
		Description:      r.FormValue("description"),
		OriginalFilename: header.Filename,
		MimeType:         header.Header.Get("Content-Type"),
		Content:          content,
	}

	record, err := h.service.CreateRecord(r.Context(), request)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, record)
}

// GetRecord retrieves record metadata, subject to the on-chain access check
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	accessorID := h.getUserID(r)
	if accessorID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	vars := mux.Vars(r)
	record, err := h.service.GetRecord(r.Context(), vars["recordID"], accessorID, h.getWalletAddress(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// DownloadRecord streams the decrypted record content after verifying
// access and content integrity
func (h *Handlers) DownloadRecord(w http.ResponseWriter, r *http.Request) {
	accessorID := h.getUserID(r)
	if accessorID == "" {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "User ID not found in request")
		return
	}

	vars := mux.Vars(r)
	file, err := h.service.DownloadRecord(r.Context(), vars["recordID"], accessorID, h.getWalletAddress(r))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	if file.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	w.Write(file.Content)
}

// VerifyRecord checks the on-chain anchor against the stored content hash
func (h *Handlers) VerifyRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	verified, err := h.service.VerifyRecord(r.Context(), vars["recordID"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recordId": vars["recordID"],
		"verified": verified,
	})
}

type shareRequest struct {
	PatientID      string `json:"patientId"`
	GranteeAddress string `json:"granteeAddress"`
	// Unix timestamp in seconds at which the grant expires
	ExpirationTime int64 `json:"expirationTime"`
}

type revokeRequest struct {
	PatientID      string `json:"patientId"`
	GranteeAddress string `json:"granteeAddress"`
}

// ShareRecord grants a wallet address time-bounded access to a record
func (h *Handlers) ShareRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	if req.PatientID == "" || req.GranteeAddress == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "patientId and granteeAddress are required")
		return
	}

	record, err := h.service.ShareRecord(r.Context(), vars["recordID"], req.PatientID, req.GranteeAddress, req.ExpirationTime)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// RevokeAccess removes a wallet address's access to a record
func (h *Handlers) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}
	if req.PatientID == "" || req.GranteeAddress == "" {
		h.writeError(w, http.StatusBadRequest, "validation_error", "patientId and granteeAddress are required")
		return
	}

	record, err := h.service.RevokeRecordAccess(r.Context(), vars["recordID"], req.PatientID, req.GranteeAddress)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

// GetPatientRecords lists all records owned by a patient
func (h *Handlers) GetPatientRecords(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	records, err := h.service.GetPatientRecords(r.Context(), vars["patientID"])
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// GetAccessLogs returns the access audit trail for a patient
func (h *Handlers) GetAccessLogs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	limit := h.getLimit(r, 100)

	logs, err := h.service.GetAccessLogs(r.Context(), vars["patientID"], limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// RetryAnchoring re-submits records still pending blockchain storage
func (h *Handlers) RetryAnchoring(w http.ResponseWriter, r *http.Request) {
	anchored, err := h.service.RetryBlockchainStorage(r.Context(), h.getLimit(r, 50))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"anchored":    anchored,
		"completedAt": time.Now().UTC(),
	})
}

// Helper methods

func (h *Handlers) getUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handlers) getWalletAddress(r *http.Request) string {
	return r.Header.Get("X-Wallet-Address")
}

func (h *Handlers) getLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func (h *Handlers) handleServiceError(w http.ResponseWriter, err error) {
	var mcErr *types.MediChainError
	if errors.As(err, &mcErr) {
		h.writeErrorWithDetails(w, statusForErrorType(mcErr.Type), mcErr.Code, mcErr.Message, mcErr.Details)
		return
	}

	h.logger.WithError(err).Error("Unhandled error in custody handler")
	h.writeError(w, http.StatusInternalServerError, types.ErrCodeInternalError, "An internal error occurred")
}

func statusForErrorType(errType types.ErrorType) int {
	switch errType {
	case types.ErrorTypeValidation:
		return http.StatusBadRequest
	case types.ErrorTypeNotFound:
		return http.StatusNotFound
	case types.ErrorTypeAuthorization:
		return http.StatusForbidden
	case types.ErrorTypeIntegrity:
		return http.StatusConflict
	case types.ErrorTypeTimeout:
		return http.StatusAccepted
	case types.ErrorTypeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeErrorWithDetails(w, status, code, message, nil)
}

func (h *Handlers) writeErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	response := map[string]interface{}{
		"error":   code,
		"message": message,
	}
	if details != nil {
		response["details"] = details
	}
	h.writeJSON(w, status, response)
}
