package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	goredis "github.com/redis/go-redis/v9"
)

func membersKey(chatID int64) string {
	return fmt.Sprintf("members:%d", chatID)
}

// MemberRepository stores admitted members per chat as a user -> wallet hash
type MemberRepository struct {
	client *goredis.Client
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(client *goredis.Client) *MemberRepository {
	return &MemberRepository{client: client}
}

// Upsert records the wallet a user was admitted with
func (r *MemberRepository) Upsert(ctx context.Context, record *entities.MemberRecord) error {
	if record == nil || record.WalletAddress == "" {
		return domainerrors.ErrInvalidInput
	}
	return r.client.HSet(ctx, membersKey(record.ChatID), strconv.FormatInt(record.UserID, 10), record.WalletAddress).Err()
}

// Get gets a member record
func (r *MemberRepository) Get(ctx context.Context, chatID, userID int64) (*entities.MemberRecord, error) {
	wallet, err := r.client.HGet(ctx, membersKey(chatID), strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return &entities.MemberRecord{ChatID: chatID, UserID: userID, WalletAddress: wallet}, nil
}

// ListByChat returns the chat's members ordered by user ID
func (r *MemberRepository) ListByChat(ctx context.Context, chatID int64) ([]*entities.MemberRecord, error) {
	fields, err := r.client.HGetAll(ctx, membersKey(chatID)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*entities.MemberRecord, 0, len(fields))
	for rawUser, wallet := range fields {
		userID, err := strconv.ParseInt(rawUser, 10, 64)
		if err != nil {
			continue
		}
		records = append(records, &entities.MemberRecord{ChatID: chatID, UserID: userID, WalletAddress: wallet})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
	return records, nil
}

// Delete removes a member record. Deleting an unknown member is not an error.
func (r *MemberRepository) Delete(ctx context.Context, chatID, userID int64) error {
	return r.client.HDel(ctx, membersKey(chatID), strconv.FormatInt(userID, 10)).Err()
}
