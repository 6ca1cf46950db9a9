package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	goredis "github.com/redis/go-redis/v9"
)

func inputStateKey(chatID, userID int64) string {
	return fmt.Sprintf("input_state:%d:%d", chatID, userID)
}

// InputStateRepository keeps the awaiting-input marker of the setup flow
type InputStateRepository struct {
	client *goredis.Client
}

// NewInputStateRepository creates a new input state repository
func NewInputStateRepository(client *goredis.Client) *InputStateRepository {
	return &InputStateRepository{client: client}
}

// SetAwaiting marks the admin as about to send a value for field
func (r *InputStateRepository) SetAwaiting(ctx context.Context, chatID, userID int64, field entities.ConfigField, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, inputStateKey(chatID, userID), string(field), ttl).Err()
}

// GetAwaiting returns the field the admin is editing, if any
func (r *InputStateRepository) GetAwaiting(ctx context.Context, chatID, userID int64) (entities.ConfigField, bool, error) {
	raw, err := r.client.Get(ctx, inputStateKey(chatID, userID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	field := entities.ConfigField(raw)
	if !field.Valid() {
		return "", false, nil
	}
	return field, true, nil
}

// Clear returns the admin to idle
func (r *InputStateRepository) Clear(ctx context.Context, chatID, userID int64) error {
	return r.client.Del(ctx, inputStateKey(chatID, userID)).Err()
}
