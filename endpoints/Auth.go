package endpoints

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
	val "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/matthewhartstonge/argon2"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/chai-api/assert"
	"git.sr.ht/~aondrejcak/chai-api/kernel"
	"git.sr.ht/~aondrejcak/chai-api/middleware"
	"git.sr.ht/~aondrejcak/chai-api/models"
	"git.sr.ht/~aondrejcak/chai-api/store"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserConflict(ctx context.Context, email, username string) (*models.User, error)
}

type RegisterDto struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (dto RegisterDto) Validate() error {
	return val.ValidateStruct(&dto,
		val.Field(&dto.Username, val.Required, val.Length(3, 30), val.Match(usernamePattern).Error("may only contain letters, numbers and underscores")),
		val.Field(&dto.Email, val.Required, val.Length(0, 255), val.Match(emailPattern).Error("must be a valid email address")),
		val.Field(&dto.Password, val.Required, val.Length(6, 128)),
		val.Field(&dto.Name, val.Length(0, 120)),
	)
}

type AuthController struct {
	art   *kernel.AppRuntime
	users UserStore
	jwt   *jwt.GinJWTMiddleware
	argon argon2.Config
}

func NewAuthController(art *kernel.AppRuntime, users UserStore, mw *jwt.GinJWTMiddleware) *AuthController {
	return &AuthController{art: art, users: users, jwt: mw, argon: argon2.DefaultConfig()}
}

func (ac *AuthController) RegisterController(rg *gin.RouterGroup) {
	g := rg.Group("/auth")

	g.POST("/register", ac.Register)
	g.POST("/login", ac.jwt.LoginHandler)
	g.POST("/logout", ac.jwt.LogoutHandler)

	authed := g.Group("")
	authed.Use(ac.jwt.MiddlewareFunc())
	{
		authed.GET("/check", ac.Check)
		authed.GET("/refresh", ac.jwt.RefreshHandler)
	}
}

func (ac *AuthController) Register(c *gin.Context) {
	rt := kernel.FromContext(c)
	assert.NotNil(rt, "request runtime missing for %s", c.FullPath())

	var dto RegisterDto
	if !rt.BindValid(&dto) {
		return
	}
	dto.Email = middleware.NormalizeLogin(dto.Email)

	rt.StepInto("auth.register")

	existing, err := ac.users.FindUserConflict(rt.SpanContext, dto.Email, dto.Username)
	if err != nil {
		rt.E(http.StatusInternalServerError, "Could not register user", err)
		return
	}
	if existing != nil {
		if existing.Email == dto.Email {
			rt.Ef(http.StatusBadRequest, "Email already registered")
		} else {
			rt.Ef(http.StatusBadRequest, "Username already taken")
		}
		return
	}

	hash, err := ac.argon.HashEncoded([]byte(dto.Password))
	if err != nil {
		rt.E(http.StatusInternalServerError, "Could not register user", err)
		return
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     dto.Username,
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: string(hash),
	}
	if err := ac.users.CreateUser(rt.SpanContext, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			rt.Ef(http.StatusBadRequest, "User already exists")
			return
		}
		rt.E(http.StatusInternalServerError, "Could not register user", err)
		return
	}

	token, expire, err := ac.jwt.TokenGenerator(user)
	if err != nil {
		rt.E(http.StatusInternalServerError, "Could not issue token", err)
		return
	}
	rt.StepBack()

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.CookieName, token, int(middleware.SessionLength.Seconds()), "/", "", ac.art.Production(), true)

	log.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   token,
		"expire":  expire,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"name":     user.Name,
		},
	})
}

func (ac *AuthController) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Token is valid",
		"userId":  middleware.Identity(c),
	})
}
