package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const TokenTTL = time.Hour

// IssueToken signs a JWT carrying the caller's account id.
func IssueToken(accountID, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"exp":        time.Now().Add(TokenTTL).Unix(),
		"iat":        time.Now().Unix(),
	})
	return token.SignedString([]byte(secret))
}

// ParseToken validates the signature and expiry and returns the
// account id claim.
func ParseToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	accountID, ok := claims["account_id"].(string)
	if !ok || accountID == "" {
		return "", fmt.Errorf("missing account_id claim")
	}
	return accountID, nil
}
