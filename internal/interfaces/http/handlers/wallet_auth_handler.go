package handlers

import (
	"net/http"
	"strings"

	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/interfaces/http/response"
	"gatekeeper.backend/pkg/walletauth"
	"github.com/gin-gonic/gin"
)

type challengeIssuer interface {
	IssueChallenge(method, path string) (*walletauth.Challenge, error)
}

// WalletAuthHandler hands out wallet challenges ahead of a protected call
type WalletAuthHandler struct {
	issuer challengeIssuer
}

// NewWalletAuthHandler creates a new wallet auth handler
func NewWalletAuthHandler(issuer challengeIssuer) *WalletAuthHandler {
	return &WalletAuthHandler{issuer: issuer}
}

// Challenge issues a challenge bound to the request the wallet intends to make
// GET /api/v1/auth/challenge?method=GET&path=/api/v1/join/<nonce>
func (h *WalletAuthHandler) Challenge(c *gin.Context) {
	method := strings.ToUpper(c.DefaultQuery("method", http.MethodGet))
	path := c.Query("path")
	if !strings.HasPrefix(path, "/api/v1/") {
		response.Error(c, domainerrors.BadRequest("path must be an API path"))
		return
	}

	challenge, err := h.issuer.IssueChallenge(method, path)
	if err != nil {
		response.Error(c, domainerrors.InternalError(err))
		return
	}
	response.Success(c, http.StatusOK, challenge)
}
