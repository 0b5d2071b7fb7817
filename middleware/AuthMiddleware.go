package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
	"github.com/matthewhartstonge/argon2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"git.sr.ht/~aondrejcak/chai-api/kernel"
	"git.sr.ht/~aondrejcak/chai-api/models"
)

const (
	CookieName    = "token"
	SessionLength = 7 * 24 * time.Hour
)

// NormalizeLogin lowercases email addresses the way they are stored.
// Usernames are matched as typed.
func NormalizeLogin(login string) string {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return strings.ToLower(login)
	}
	return login
}

type UserFinder interface {
	FindUserByLogin(ctx context.Context, login string) (*models.User, error)
}

type LoginDto struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// NewAuthMiddleware builds the JWT middleware. Tokens are read from the
// Authorization header first and the token cookie second.
func NewAuthMiddleware(art *kernel.AppRuntime, users UserFinder) (*jwt.GinJWTMiddleware, error) {
	identityKey := art.IdentityKey

	return jwt.New(&jwt.GinJWTMiddleware{
		Realm:       art.Realm,
		Key:         art.SecretKey,
		Timeout:     SessionLength,
		MaxRefresh:  SessionLength,
		IdentityKey: identityKey,

		TokenLookup:    "header: Authorization, cookie: " + CookieName,
		TokenHeadName:  "Bearer",
		TimeFunc:       time.Now,
		SendCookie:     true,
		CookieName:     CookieName,
		CookieMaxAge:   SessionLength,
		CookieHTTPOnly: true,
		SecureCookie:   art.Production(),
		CookieSameSite: http.SameSiteStrictMode,

		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if u, ok := data.(*models.User); ok {
				return jwt.MapClaims{
					identityKey: u.ID,
					"username":  u.Username,
				}
			}
			return jwt.MapClaims{}
		},

		IdentityHandler: func(c *gin.Context) interface{} {
			claims := jwt.ExtractClaims(c)
			return cast.ToString(claims[identityKey])
		},

		Authenticator: func(c *gin.Context) (interface{}, error) {
			var dto LoginDto
			if err := c.ShouldBindJSON(&dto); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}

			user, err := users.FindUserByLogin(c.Request.Context(), NormalizeLogin(dto.Email))
			if err != nil {
				log.Error().Err(err).Msg("could not look up user for login")
				return nil, jwt.ErrFailedAuthentication
			}
			if user == nil {
				return nil, jwt.ErrFailedAuthentication
			}

			ok, err := argon2.VerifyEncoded([]byte(dto.Password), []byte(user.PasswordHash))
			if err != nil || !ok {
				return nil, jwt.ErrFailedAuthentication
			}
			return user, nil
		},

		Authorizator: func(data interface{}, c *gin.Context) bool {
			id := cast.ToString(data)
			if id == "" {
				return false
			}
			if rt := kernel.FromContext(c); rt != nil {
				rt.Identity = id
			}
			return true
		},

		Unauthorized: func(c *gin.Context, code int, message string) {
			msg := "Not authorized, token failed"
			switch {
			case message == jwt.ErrFailedAuthentication.Error():
				msg = "Invalid credentials"
			case message == jwt.ErrMissingLoginValues.Error():
				msg = "Email and password are required"
			case message == jwt.ErrEmptyAuthHeader.Error() || message == jwt.ErrEmptyCookieToken.Error():
				msg = "Not authorized, no token"
			}

			if rt := kernel.FromContext(c); rt != nil {
				rt.E(code, msg, errors.New(message))
				return
			}
			c.AbortWithStatusJSON(code, gin.H{"success": false, "error": msg})
		},

		LoginResponse: func(c *gin.Context, code int, token string, expire time.Time) {
			c.JSON(code, gin.H{
				"success": true,
				"token":   token,
				"expire":  expire.Format(time.RFC3339),
			})
		},
	})
}

// Identity returns the authenticated user id for the request, empty when
// the route is not behind the auth middleware.
func Identity(c *gin.Context) string {
	if rt := kernel.FromContext(c); rt != nil {
		return rt.Identity
	}
	return ""
}
