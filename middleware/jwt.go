package middleware

import (
	"errors"

	"messenger-gateway/config"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalsToken is where JWT stores the parsed access token.
const LocalsToken = "user"

const (
	msgMissingToken = "Missing or malformed access token"
	msgInvalidToken = "Invalid or expired access token"
)

// JWT verifies the HS512 access token a client sends as a bearer token.
// The key is JWT_ACCESS_KEY, the same one the messaging backend signs with,
// so the token can be forwarded upstream unchanged.
func JWT() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			JWTAlg: jwt.SigningMethodHS512.Alg(),
			Key:    []byte(config.Config("JWT_ACCESS_KEY")),
		},
		ContextKey: LocalsToken,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return reject(c, fiber.StatusBadRequest, msgMissingToken)
			}
			return reject(c, fiber.StatusUnauthorized, msgInvalidToken)
		},
	})
}

func reject(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}
