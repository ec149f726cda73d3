package utils

import (
	"context"

	"reservation-system/pkg/contextkeys"
	apperrors "reservation-system/pkg/errors"
)

// Actor - аутентифицированный пользователь, от имени которого выполняется операция.
type Actor struct {
	ID   uint64
	Role string
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	ctx = context.WithValue(ctx, contextkeys.UserIDKey, actor.ID)
	return context.WithValue(ctx, contextkeys.UserRoleKey, actor.Role)
}

func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok {
		return 0, apperrors.ErrUserIDNotFoundInContext
	}
	if userID == 0 {
		return 0, apperrors.ErrInvalidUserID
	}
	return userID, nil
}

func GetActorFromCtx(ctx context.Context) (Actor, error) {
	userID, err := GetUserIDFromCtx(ctx)
	if err != nil {
		return Actor{}, err
	}
	role, _ := ctx.Value(contextkeys.UserRoleKey).(string)
	return Actor{ID: userID, Role: role}, nil
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextkeys.CorrelationIDKey, id)
}

func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(contextkeys.CorrelationIDKey).(string)
	return id
}
