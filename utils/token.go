package utils

import (
	"errors"
	"time"

	"messenger-gateway/config"

	"github.com/golang-jwt/jwt/v5"
)

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	Id   string
	Otp  bool
	Role string
	Exp  int64
}

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs an HS512 token with the key named by key. The gateway
// only verifies tokens issued by the auth service; this is used to mint
// service tokens and test fixtures.
func GenerateToken(id string, otp bool, role string, ttl time.Duration, key string) (string, error) {
	claims := jwt.MapClaims{}

	claims["id"] = id
	claims["otp"] = otp
	if role != "" {
		claims["role"] = role
	}
	claims["exp"] = time.Now().Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(config.Config(key)))
}

func CheckAndExtractTokenMetadata(token string, key string) (*TokenMetadata, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.Config(key)), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := t.Claims.(jwt.MapClaims); ok && t.Valid {
		return ExtractClaims(claims)
	}

	return nil, ErrInvalidToken
}

// ExtractClaims reads the gateway claims. A token without an id is
// rejected; otp and role are optional.
func ExtractClaims(claims jwt.MapClaims) (*TokenMetadata, error) {
	id, _ := claims["id"].(string)
	if id == "" {
		return nil, ErrInvalidToken
	}
	otp, _ := claims["otp"].(bool)
	role, _ := claims["role"].(string)
	exp, _ := claims["exp"].(float64)

	return &TokenMetadata{
		Id:   id,
		Otp:  otp,
		Role: role,
		Exp:  int64(exp),
	}, nil
}
