package auth

import (
	"context"
	"fmt"
	"strconv"
)

// StaticProvider is the dev/test provider: the token is the numeric user id
// itself. Never enable in production.
type StaticProvider struct{}

func (StaticProvider) ValidateToken(_ context.Context, token string) (Identity, error) {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, fmt.Errorf("%w: not a user id", ErrInvalidToken)
	}
	return Identity{UserID: id}, nil
}
