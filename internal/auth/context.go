package auth

import "github.com/gin-gonic/gin"

const (
	// ContextPartnerID is the key for the caller's partner id in gin context.
	ContextPartnerID = "partner_id"
	// ContextCoupleToken is the key for the caller's couple token in gin context.
	ContextCoupleToken = "couple_token"
	// ContextEmail is the key for the caller's email in gin context.
	ContextEmail = "partner_email"
)

// SetClaims stores validated claims on the request context.
func SetClaims(c *gin.Context, claims *Claims) {
	c.Set(ContextPartnerID, claims.PartnerID)
	c.Set(ContextCoupleToken, claims.CoupleToken)
	c.Set(ContextEmail, claims.Email)
}

// PartnerID returns the authenticated partner id, or "".
func PartnerID(c *gin.Context) string { return c.GetString(ContextPartnerID) }

// CoupleToken returns the authenticated couple token, or "".
func CoupleToken(c *gin.Context) string { return c.GetString(ContextCoupleToken) }
