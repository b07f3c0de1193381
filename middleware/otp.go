package middleware

import (
	"messenger-gateway/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// LocalsIdentity is where OTP stores the verified token metadata.
const LocalsIdentity = "identity"

// OTP rejects tokens still waiting for their second factor and exposes the
// token metadata to the handlers.
func OTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(LocalsToken).(*jwt.Token)
		if !ok {
			return reject(c, fiber.StatusUnauthorized, msgInvalidToken)
		}
		claims, _ := user.Claims.(jwt.MapClaims)

		meta, err := utils.ExtractClaims(claims)
		if err != nil {
			return reject(c, fiber.StatusUnauthorized, msgInvalidToken)
		}

		if meta.Otp {
			return reject(c, fiber.StatusBadRequest, "2FA required")
		}

		c.Locals(LocalsIdentity, meta)
		return c.Next()
	}
}

// Identity returns the metadata stored by OTP.
func Identity(c *fiber.Ctx) *utils.TokenMetadata {
	meta, _ := c.Locals(LocalsIdentity).(*utils.TokenMetadata)
	return meta
}

// Token returns the raw bearer token of the request.
func Token(c *fiber.Ctx) string {
	if user, ok := c.Locals(LocalsToken).(*jwt.Token); ok {
		return user.Raw
	}
	return ""
}
