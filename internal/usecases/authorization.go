package usecases

import (
	"context"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
)

const (
	msgBotNotAdmin     = "The bot must be an administrator to run this command."
	msgUserNotAdmin    = "You must be an administrator to run this command."
	msgAdminCheckError = "Could not verify admin status, please try again."
)

// ChatAuthorizer decides whether a command may run in a chat
type ChatAuthorizer interface {
	Authorize(ctx context.Context, chatID, userID int64) error
}

// ChannelAuthorizer only requires the bot to administer the chat. Posting in
// a channel already requires admin rights, so the sender is not checked.
type ChannelAuthorizer struct {
	platform ChatPlatform
}

// Authorize implements ChatAuthorizer
func (a ChannelAuthorizer) Authorize(ctx context.Context, chatID, _ int64) error {
	return requireBotAdmin(ctx, a.platform, chatID)
}

// GroupAuthorizer requires both the bot and the invoking user to administer the chat.
type GroupAuthorizer struct {
	platform ChatPlatform
}

// Authorize implements ChatAuthorizer
func (a GroupAuthorizer) Authorize(ctx context.Context, chatID, userID int64) error {
	if userID == 0 {
		return domainerrors.Forbidden(msgUserNotAdmin)
	}
	ok, err := a.platform.IsAdmin(ctx, chatID, userID)
	if err != nil {
		return domainerrors.Network(msgAdminCheckError, err)
	}
	if !ok {
		return domainerrors.Forbidden(msgUserNotAdmin)
	}
	return requireBotAdmin(ctx, a.platform, chatID)
}

// AuthorizerFor selects the strategy for a chat kind. Private chats have no
// community to configure and are rejected.
func AuthorizerFor(kind entities.ChatKind, platform ChatPlatform) (ChatAuthorizer, error) {
	switch {
	case kind == entities.ChatKindChannel:
		return ChannelAuthorizer{platform: platform}, nil
	case kind.IsGroup():
		return GroupAuthorizer{platform: platform}, nil
	}
	return nil, domainerrors.Forbidden("This command must be run in a group or channel.")
}

func requireBotAdmin(ctx context.Context, platform ChatPlatform, chatID int64) error {
	ok, err := platform.IsBotAdmin(ctx, chatID)
	if err != nil {
		return domainerrors.Network(msgAdminCheckError, err)
	}
	if !ok {
		return domainerrors.Forbidden(msgBotNotAdmin)
	}
	return nil
}
