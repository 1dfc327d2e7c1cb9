package handlers

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/thereayou/quickchat/internal/database"
	"github.com/thereayou/quickchat/internal/relay"
	"github.com/thereayou/quickchat/pkg/auth"
)

// IdentityVerifier — адаптер relay.Verifier: JWT + черный список токенов
// в Redis + существование пользователя.
type IdentityVerifier struct {
	jwtManager *auth.JWTManager
	db         *database.Database
	redis      *redis.Client
}

func NewIdentityVerifier(jwtMgr *auth.JWTManager, db *database.Database, rdb *redis.Client) *IdentityVerifier {
	return &IdentityVerifier{jwtManager: jwtMgr, db: db, redis: rdb}
}

var _ relay.Verifier = (*IdentityVerifier)(nil)

func (v *IdentityVerifier) Verify(ctx context.Context, credential string) (*relay.Identity, error) {
	exists, err := v.redis.Exists(ctx, "blacklist:"+credential).Result()
	if err == nil && exists > 0 {
		return nil, relay.ErrUnauthorized
	}

	claims, err := v.jwtManager.Verify(credential)
	if err != nil {
		return nil, relay.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, relay.ErrUnauthorized
	}

	user, err := v.db.GetUser(userID.String())
	if err != nil {
		return nil, relay.ErrUnauthorized
	}

	return &relay.Identity{UserID: user.ID, Username: user.Username}, nil
}
