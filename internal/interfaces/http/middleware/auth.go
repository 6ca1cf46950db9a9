package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/internal/interfaces/http/response"
	"gatekeeper.backend/pkg/logger"
	"gatekeeper.backend/pkg/walletauth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens
	BearerPrefix = "Bearer "
	// WalletAddressKey is the context key for the authenticated wallet
	WalletAddressKey = "walletAddress"
)

// WalletVerifier checks signed wallet challenges and issues new ones
type WalletVerifier interface {
	Verify(ctx context.Context, header, method, path string) (*walletauth.Identity, error)
	IssueChallenge(method, path string) (*walletauth.Challenge, error)
	WWWAuthenticate(ch *walletauth.Challenge) string
}

// WalletAuthMiddleware requires a signed challenge proving control of a wallet.
// Missing or invalid proofs are answered with a fresh challenge for the same
// request in the WWW-Authenticate header.
func WalletAuthMiddleware(verifier WalletVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		method, path := c.Request.Method, c.Request.URL.Path

		identity, err := verifier.Verify(ctx, c.GetHeader(AuthorizationHeader), method, path)
		if err == nil {
			c.Set(WalletAddressKey, identity.Address)
			c.Next()
			return
		}

		if !isChallengeFailure(err) {
			logger.Error(ctx, "Wallet auth verification failed", zap.String("path", path), zap.Error(err))
			response.Error(c, domainerrors.Network("could not verify wallet authorization, please retry", err))
			c.Abort()
			return
		}

		logger.Debug(ctx, "Wallet auth rejected", zap.String("path", path), zap.Error(err))
		challenge, issueErr := verifier.IssueChallenge(method, path)
		if issueErr != nil {
			logger.Error(ctx, "Failed to issue wallet challenge", zap.Error(issueErr))
			response.Error(c, domainerrors.InternalError(issueErr))
			c.Abort()
			return
		}

		c.Header("WWW-Authenticate", verifier.WWWAuthenticate(challenge))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":      domainerrors.CodeWalletAuthRequired,
			"message":   err.Error(),
			"challenge": challenge,
		})
	}
}

func isChallengeFailure(err error) bool {
	for _, target := range []error{
		walletauth.ErrMissingAuthorization,
		walletauth.ErrInvalidAuthorization,
		walletauth.ErrChallengeExpired,
		walletauth.ErrChallengeMismatch,
		walletauth.ErrChallengeReplayed,
		walletauth.ErrSignatureMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// GetWalletAddress gets the authenticated wallet from context
func GetWalletAddress(c *gin.Context) (string, bool) {
	wallet, exists := c.Get(WalletAddressKey)
	if !exists {
		return "", false
	}
	s, ok := wallet.(string)
	return s, ok && s != ""
}

// CronAuthMiddleware guards scheduler endpoints with a shared bearer secret.
// An empty secret disables the endpoints.
func CronAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		token, found := strings.CutPrefix(authHeader, BearerPrefix)
		if secret == "" || !found || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Warn(c.Request.Context(), "Cron request rejected", zap.String("path", c.Request.URL.Path))
			response.Error(c, domainerrors.Unauthorized("invalid cron secret"))
			c.Abort()
			return
		}
		c.Next()
	}
}
