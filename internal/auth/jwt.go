package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
)

// TokenService issues and validates the bearer credential returned by the
// auth endpoint. The credential carries the telegram identity payload plus a
// session hash tying it to the original handshake.
type TokenService struct {
	secret string
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: secret}
}

// SessionHash binds a credential to the user row it was issued for.
func (t *TokenService) SessionHash(tgUserID string, userID uint, authDate int64) string {
	raw := fmt.Sprintf("%s%d%d%s", tgUserID, userID, authDate, t.secret)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate signs the claims with HS256.
func (t *TokenService) Generate(claims map[string]interface{}) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	signed, err := token.SignedString([]byte(t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token signature and returns its claims; any failure
// maps to an authorization error.
func (t *TokenService) Decode(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}
