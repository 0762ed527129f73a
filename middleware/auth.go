package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"aidirectory/apperr"
	"aidirectory/db"
	"aidirectory/models"
	"aidirectory/response"
	"aidirectory/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const currentUserKey = "currentUser"

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Requirement is what a route demands of its caller beyond a valid token.
type Requirement struct {
	Admin   bool
	MinTier models.Tier
}

// Auth resolves bearer tokens to users and enforces route requirements.
type Auth struct {
	tokens *services.TokenIssuer
	users  UserLookup
	logger *zap.Logger
	now    func() time.Time
}

func NewAuth(tokens *services.TokenIssuer, users UserLookup, logger *zap.Logger) *Auth {
	return &Auth{tokens: tokens, users: users, logger: logger, now: time.Now}
}

// Identify attaches the caller when a valid token is present. A missing or
// bad token leaves the request anonymous.
func (a *Auth) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if BearerToken(c) != "" {
			if u, err := a.authenticate(c); err == nil {
				c.Set(currentUserKey, u)
			}
		}
		c.Next()
	}
}

// Require authenticates the caller and then checks req. Authentication
// failures always win over role or tier failures.
func (a *Auth) Require(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			var err error
			if u, err = a.authenticate(c); err != nil {
				response.Error(c, err)
				return
			}
			c.Set(currentUserKey, u)
		}

		if req.Admin && !u.IsAdmin {
			response.Error(c, apperr.Forbidden("Admin access required"))
			return
		}
		if req.MinTier != "" && !u.EffectiveTier(a.now()).AtLeast(req.MinTier) {
			response.Error(c, apperr.SubscriptionRequired(string(req.MinTier)))
			return
		}
		c.Next()
	}
}

func (a *Auth) authenticate(c *gin.Context) (*models.User, error) {
	token := BearerToken(c)
	if token == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}

	claims, err := a.tokens.Parse(token, services.TokenAccess)
	if err != nil {
		if errors.Is(err, services.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Token has expired")
		}
		return nil, apperr.Unauthorized("Invalid token")
	}
	id, _ := claims.UserID()

	u, err := a.users.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperr.Unauthorized("User not found")
		}
		a.logger.Error("failed to load token user", zap.Int64("user_id", id), zap.Error(err))
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// CurrentUser returns the authenticated caller, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
