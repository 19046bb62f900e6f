// Package auth 校验账号服务签发的 bearer token
package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

var errInvalid = errs.InvalidToken("Auth Token is Invalid or Expired!")

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// UserChecker 确认 token 对应的用户仍然存在
type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type TokenVerifier struct {
	secret []byte
	ttl    time.Duration
	users  UserChecker
}

func NewTokenVerifier(secret string, ttl time.Duration, users UserChecker) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), ttl: ttl, users: users}
}

// Issue 为 userID 签发 HS256 token，线上 token 由账号服务签发，这里供测试和压测使用
func (v *TokenVerifier) Issue(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Authenticate 返回 token 携带的用户 id
func (v *TokenVerifier) Authenticate(ctx context.Context, token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || claims.UserID == "" {
		return "", errInvalid
	}
	if v.users != nil {
		ok, err := v.users.Exists(ctx, claims.UserID)
		if err != nil {
			return "", errs.Internal(err)
		}
		if !ok {
			return "", errInvalid
		}
	}
	return claims.UserID, nil
}
