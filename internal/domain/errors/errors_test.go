package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	err := NewAppError(http.StatusBadRequest, CodeBadRequest, "bad", ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, CodeBadRequest, err.Code)
	assert.Equal(t, "bad", err.Message)
	assert.Equal(t, ErrInvalidInput.Error(), err.Error())

	notFound := NotFound("missing")
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, CodeNotFound, notFound.Code)

	internal := InternalError(stderrors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, CodeInternalError, internal.Code)

	badReq := BadRequest("bad request")
	assert.Equal(t, http.StatusBadRequest, badReq.Status)
	assert.Equal(t, CodeInvalidInput, badReq.Code)

	unauth := Unauthorized("unauthorized")
	assert.Equal(t, http.StatusUnauthorized, unauth.Status)
	assert.Equal(t, CodeUnauthorized, unauth.Code)

	forbidden := Forbidden("nope")
	assert.Equal(t, http.StatusForbidden, forbidden.Status)
	assert.ErrorIs(t, forbidden, ErrForbidden)
}

func TestAppError_MessageFallback(t *testing.T) {
	err := &AppError{Message: "plain"}
	assert.Equal(t, "plain", err.Error())
}

func TestFromDomain_DistinguishesUserAndAdminFailures(t *testing.T) {
	funds := FromDomain(fmt.Errorf("join: %w", ErrInsufficientFunds))
	assert.Equal(t, CodeInsufficientFunds, funds.Code)
	assert.Equal(t, http.StatusForbidden, funds.Status)

	cfg := FromDomain(fmt.Errorf("join: %w", ErrAssetInvalid))
	assert.Equal(t, CodeConfiguration, cfg.Code)
	assert.Equal(t, http.StatusInternalServerError, cfg.Status)
	assert.NotEqual(t, funds.Code, cfg.Code)

	portal := FromDomain(ErrPortalNotFound)
	assert.Equal(t, CodeInvalidPortal, portal.Code)

	bound := FromDomain(ErrAlreadyBound)
	assert.Equal(t, http.StatusConflict, bound.Status)

	network := FromDomain(fmt.Errorf("ledger: %w", ErrNetwork))
	assert.Equal(t, CodeNetwork, network.Code)
	assert.ErrorIs(t, network, ErrNetwork)

	unknown := FromDomain(stderrors.New("boom"))
	assert.Equal(t, CodeInternalError, unknown.Code)
}

func TestFromDomain_PassesThroughAppError(t *testing.T) {
	original := InsufficientFunds("You do not have the required 100 tokens.")
	got := FromDomain(fmt.Errorf("wrapped: %w", original))
	assert.Same(t, original, got)
}

func TestFromDomain_PlatformAndForbidden(t *testing.T) {
	platform := FromDomain(fmt.Errorf("createChatInviteLink: %w", ErrPlatform))
	assert.Equal(t, http.StatusBadGateway, platform.Status)
	assert.Equal(t, CodePlatform, platform.Code)

	explicit := Platform("no rights", nil)
	assert.ErrorIs(t, explicit, ErrPlatform)

	forbidden := FromDomain(ErrForbidden)
	assert.Equal(t, http.StatusForbidden, forbidden.Status)
}
