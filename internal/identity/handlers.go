package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/region"
	"github.com/medichain/ssi-custody/pkg/types"
)

// Handlers contains HTTP handlers for credential operations
type Handlers struct {
	service *Service
	gate    *ActivationGate
	logger  *logger.Logger
}

// NewHandlers creates new identity HTTP handlers
func NewHandlers(service *Service, gate *ActivationGate, log *logger.Logger) *Handlers {
	return &Handlers{
		service: service,
		gate:    gate,
		logger:  log,
	}
}

// RegisterRoutes registers identity routes with the router
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		credentials := v1.Group("/credentials")
		{
			credentials.POST("", h.StoreCredentials)
			credentials.POST("/:id/verify", h.VerifyCredential)
			credentials.POST("/:id/revoke", h.RevokeCredential)
		}

		users := v1.Group("/users")
		{
			users.GET("/:userId/credentials", h.GetUserCredentials)
			users.GET("/:userId/eligibility", h.CheckEligibility)
			users.POST("/:userId/activate", h.ActivateAccount)
		}

		keys := v1.Group("/keys")
		{
			keys.GET("/info", h.KeyInfo)
		}

		regions := v1.Group("/regions")
		{
			regions.GET("", h.ListRegions)
			regions.GET("/:code", h.GetRegion)
		}

		v1.POST("/activations/validate", h.ValidateActivation)
	}
}

// StoreCredentials handles a batch proof submission
func (h *Handlers) StoreCredentials(c *gin.Context) {
	var req struct {
		UserID string                  `json:"userId" binding:"required"`
		Proofs []types.ProofSubmission `json:"proofs" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	created, err := h.service.StoreCredentials(c.Request.Context(), req.UserID, req.Proofs)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Credentials submitted for verification",
		"credentials": created,
	})
}

// VerifyCredential applies a reviewer decision to a credential
func (h *Handlers) VerifyCredential(c *gin.Context) {
	credentialID := c.Param("id")

	var req types.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	credential, err := h.service.VerifyCredential(c.Request.Context(), credentialID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Verification recorded",
		"credential": credential,
	})
}

// RevokeCredential revokes a credential
func (h *Handlers) RevokeCredential(c *gin.Context) {
	credentialID := c.Param("id")

	var req struct {
		RevokedBy string `json:"revokedBy" binding:"required"`
		Reason    string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	credential, err := h.service.RevokeCredential(c.Request.Context(), credentialID, req.RevokedBy, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Credential revoked",
		"credential": credential,
	})
}

// GetUserCredentials lists a user's credentials, optionally filtered by
// a status query parameter
func (h *Handlers) GetUserCredentials(c *gin.Context) {
	userID := c.Param("userId")
	status := types.CredentialStatus(c.Query("status"))

	credentials, err := h.service.GetUserCredentials(c.Request.Context(), userID, status)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credentials": credentials,
		"count":       len(credentials),
	})
}

// CheckEligibility reports whether a user's verified credentials
// satisfy the requirements of a role
func (h *Handlers) CheckEligibility(c *gin.Context) {
	userID := c.Param("userId")
	role := c.Query("role")
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "role query parameter is required",
		})
		return
	}

	check, err := h.service.HasValidCredentials(c.Request.Context(), userID, role)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, check)
}

// ActivateAccount issues an activation token once credentials are complete
func (h *Handlers) ActivateAccount(c *gin.Context) {
	userID := c.Param("userId")

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"details": err.Error(),
		})
		return
	}

	activation, err := h.gate.Activate(c.Request.Context(), userID, req.Role)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Account activated",
		"activation": activation,
	})
}

// ValidateActivation verifies an activation token and returns its claims
func (h *Handlers) ValidateActivation(c *gin.Context) {
	token := c.GetHeader("Authorization")
	if strings.HasPrefix(token, "Bearer ") {
		token = token[7:]
	}
	if token == "" {
		var req struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "activation token is required",
			})
			return
		}
		token = req.Token
	}

	claims, err := h.gate.Validate(token)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"userId": claims.Subject,
		"role":   claims.Role,
	})
}

// ListRegions returns every configured region policy
func (h *Handlers) ListRegions(c *gin.Context) {
	policies := region.AllPolicies()
	c.JSON(http.StatusOK, gin.H{
		"regions": policies,
		"count":   len(policies),
	})
}

// GetRegion returns one region policy, falling back to the global one
// for unknown codes
func (h *Handlers) GetRegion(c *gin.Context) {
	policy, matched := region.Resolve(c.Param("code"))
	c.JSON(http.StatusOK, gin.H{
		"region":  policy,
		"matched": matched,
	})
}

// KeyInfo exposes the public description of the service signing key
func (h *Handlers) KeyInfo(c *gin.Context) {
	info, err := h.service.KeyInfo(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *Handlers) handleError(c *gin.Context, err error) {
	var mcErr *types.MediChainError
	if errors.As(err, &mcErr) {
		c.JSON(statusForErrorType(mcErr.Type), gin.H{
			"error":   mcErr.Code,
			"message": mcErr.Message,
			"details": mcErr.Details,
		})
		return
	}

	h.logger.WithError(err).Error("Unhandled error in identity handler")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   types.ErrCodeInternalError,
		"message": "An internal error occurred",
	})
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
