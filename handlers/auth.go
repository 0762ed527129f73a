package handlers

import (
	"errors"

	"aidirectory/apperr"
	"aidirectory/cache"
	"aidirectory/db"
	"aidirectory/middleware"
	"aidirectory/models"
	"aidirectory/response"
	"aidirectory/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Company    string `json:"company"`
	JobTitle   string `json:"job_title"`
	IndustryID *int64 `json:"industry_id"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type authResult struct {
	User *models.User `json:"user"`
	*services.TokenPair
}

func (a *API) Register(c *gin.Context) {
	var input RegisterInput
	if err := bindJSON(c, &input); err != nil {
		response.Error(c, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Error(c, err)
		return
	}

	u := &models.User{
		Email:            input.Email,
		PasswordHash:     string(hash),
		FirstName:        input.FirstName,
		LastName:         input.LastName,
		Company:          input.Company,
		JobTitle:         input.JobTitle,
		IndustryID:       input.IndustryID,
		SubscriptionTier: models.TierFree,
	}
	if err := a.store.CreateUser(c.Request.Context(), u); err != nil {
		switch {
		case errors.Is(err, db.ErrConflict):
			err = apperr.Conflict(apperr.CodeUserExists, "Email already registered")
		case errors.Is(err, db.ErrInvalidReference):
			err = apperr.Field("industry_id", "unknown industry")
		}
		response.Error(c, err)
		return
	}

	pair, err := a.tokens.IssuePair(u.ID, u.Email, true)
	if err != nil {
		response.Error(c, err)
		return
	}

	a.invalidate(c.Request.Context(), cache.KeyDashboard)
	a.metrics.Registered()
	a.notify.UserRegistered(u)
	a.logger.Info("user registered", zap.Int64("user_id", u.ID))
	response.Created(c, authResult{User: u, TokenPair: pair}, "User registered successfully")
}

func (a *API) Login(c *gin.Context) {
	var input LoginInput
	if err := bindJSON(c, &input); err != nil {
		response.Error(c, err)
		return
	}

	invalid := apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidCredentials, "Invalid email or password")
	u, err := a.store.GetUserByEmail(c.Request.Context(), input.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			err = invalid
		}
		response.Error(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		response.Error(c, invalid)
		return
	}

	pair, err := a.tokens.IssuePair(u.ID, u.Email, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	a.logActivity(c.Request.Context(), u.ID, models.ActivityLogin, "")
	response.OK(c, authResult{User: u, TokenPair: pair}, "Login successful")
}

// Refresh exchanges a refresh token for a new access token.
func (a *API) Refresh(c *gin.Context) {
	token := middleware.BearerToken(c)
	if token == "" {
		response.Error(c, apperr.Unauthorized("Refresh token required"))
		return
	}
	claims, err := a.tokens.Parse(token, services.TokenRefresh)
	if err != nil {
		response.Error(c, apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidToken, "Invalid or expired refresh token"))
		return
	}
	id, _ := claims.UserID()

	u, err := a.store.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			err = apperr.Unauthorized("User not found")
		}
		response.Error(c, err)
		return
	}

	pair, err := a.tokens.IssuePair(u.ID, u.Email, false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, pair, "Token refreshed")
}

func (a *API) Verify(c *gin.Context) {
	response.OK(c, middleware.CurrentUser(c), "Token verified")
}

func (a *API) ChangePassword(c *gin.Context) {
	u := middleware.CurrentUser(c)
	var input ChangePasswordInput
	if err := bindJSON(c, &input); err != nil {
		response.Error(c, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		response.Error(c, apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidPassword, "Current password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := a.store.UpdatePassword(c.Request.Context(), u.ID, string(hash)); err != nil {
		response.Error(c, notFound(err, apperr.CodeUserNotFound, "User not found"))
		return
	}
	a.logActivity(c.Request.Context(), u.ID, models.ActivityChangePassword, "")
	response.OK(c, nil, "Password changed successfully")
}
