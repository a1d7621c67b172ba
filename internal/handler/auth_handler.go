package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nganiriza-api/internal/auth"
	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
	"nganiriza-api/internal/store"
)

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	FullName    string `json:"full_name" binding:"required,max=150"`
	Password    string `json:"password" binding:"required,min=8"`
	Phone       string `json:"phone_number" binding:"max=20"`
	DateOfBirth string `json:"date_of_birth"`
	Role        string `json:"role" binding:"omitempty,oneof=user specialist"`
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if !bind(c, &req) {
		return
	}

	first, last := splitName(req.FullName)
	if first == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"full_name": "This field is required."}})
		return
	}

	var dob *time.Time
	if req.DateOfBirth != "" {
		t, err := time.Parse(time.DateOnly, req.DateOfBirth)
		if err != nil || t.After(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"date_of_birth": "Use YYYY-MM-DD, not in the future."}})
			return
		}
		dob = &t
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.fail(c, err, "hash password")
		return
	}

	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		FirstName:    first,
		LastName:     last,
		Phone:        req.Phone,
		DateOfBirth:  dob,
		Role:         role,
		IsActive:     true,
	}

	if err := h.store.CreateUser(c.Request.Context(), u, uuid.New().String()); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "an account with this email already exists"})
			return
		}
		h.fail(c, err, "create user")
		return
	}

	if h.notify != nil {
		if err := h.notify.Welcome(c.Request.Context(), u.Email, u.FirstName); err != nil {
			h.log.Warn("welcome email failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created successfully",
		"user":    u,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	if email == "" {
		badRequest(c, "email and password required")
		return
	}

	ctx := c.Request.Context()
	u, err := h.store.UserByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.fail(c, err, "lookup user")
		return
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !u.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
		return
	}

	access, refresh, err := h.issueTokens(c, u)
	if err != nil {
		h.fail(c, err, "issue tokens")
		return
	}
	if err := h.store.TouchLastLogin(ctx, u.ID); err != nil {
		h.log.Warn("touch last login", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"access":  access,
		"refresh": refresh,
		"role":    u.Role,
		"user": gin.H{
			"id":         u.ID,
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
		},
	})
}

func (h *Handler) issueTokens(c *gin.Context, u *model.User) (access, refresh string, err error) {
	access, err = auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		return "", "", err
	}
	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		return "", "", err
	}
	err = h.store.CreateRefreshToken(c.Request.Context(), uuid.New().String(), u.ID, hash, time.Now().Add(auth.RefreshTTL))
	if err != nil {
		return "", "", err
	}
	return access, raw, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	rt, err := h.store.RefreshTokenByHash(ctx, auth.HashRefreshToken(req.Refresh))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		h.fail(c, err, "lookup refresh token")
		return
	}

	if rt.Revoked {
		// a rotated token came back: treat the family as stolen
		if err := h.store.RevokeAllRefreshTokens(ctx, rt.UserID); err != nil {
			h.log.Error("revoke tokens", zap.Error(err))
		}
		h.log.Warn("refresh token reuse", zap.String("user_id", rt.UserID))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if !rt.Usable(time.Now()) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token expired"})
		return
	}

	u, err := h.store.UserByID(ctx, rt.UserID)
	if err != nil {
		h.fail(c, err, "lookup user")
		return
	}
	if !u.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "account is disabled"})
		return
	}

	raw, hash, err := auth.GenerateRefreshToken()
	if err != nil {
		h.fail(c, err, "generate refresh token")
		return
	}
	err = h.store.RotateRefreshToken(ctx, rt.ID, uuid.New().String(), u.ID, hash, time.Now().Add(auth.RefreshTTL))
	if errors.Is(err, store.ErrConflict) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		h.fail(c, err, "rotate refresh token")
		return
	}

	access, err := auth.MakeToken(u.ID, u.Role, h.secret)
	if err != nil {
		h.fail(c, err, "make token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access, "refresh": raw})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.store.RevokeAllRefreshTokens(c.Request.Context(), middleware.UserID(c)); err != nil {
		h.fail(c, err, "revoke tokens")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.store.UserByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err, "lookup user")
		return
	}
	c.JSON(http.StatusOK, u)
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

const resetSent = "If an account exists for this email, a reset code has been sent."

func (h *Handler) RequestReset(c *gin.Context) {
	var req resetRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.store.UserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"message": resetSent})
		return
	}
	if err != nil {
		h.fail(c, err, "lookup user")
		return
	}

	code, err := auth.GenerateResetCode()
	if err != nil {
		h.fail(c, err, "generate reset code")
		return
	}
	if err := h.store.UpsertPasswordReset(ctx, u.Email, code, time.Now().Add(auth.ResetTTL)); err != nil {
		h.fail(c, err, "store reset code")
		return
	}
	if h.notify != nil {
		if err := h.notify.ResetCode(ctx, u.Email, u.FirstName, code); err != nil {
			h.fail(c, err, "send reset email")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": resetSent})
}

type confirmResetRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func (h *Handler) ConfirmReset(c *gin.Context) {
	var req confirmResetRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	u, err := h.store.UserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		badRequest(c, "invalid or expired code")
		return
	}
	if err != nil {
		h.fail(c, err, "lookup user")
		return
	}

	err = h.store.ConsumePasswordReset(ctx, u.Email, strings.ToUpper(req.Code), time.Now())
	if errors.Is(err, store.ErrNotFound) {
		badRequest(c, "invalid or expired code")
		return
	}
	if err != nil {
		h.fail(c, err, "consume reset code")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.fail(c, err, "hash password")
		return
	}
	if err := h.store.SetPassword(ctx, u.ID, hash); err != nil {
		h.fail(c, err, "set password")
		return
	}
	if err := h.store.RevokeAllRefreshTokens(ctx, u.ID); err != nil {
		h.log.Warn("revoke tokens after reset", zap.Error(err))
	}
	if h.notify != nil {
		if err := h.notify.ResetConfirmed(ctx, u.Email, u.FirstName); err != nil {
			h.log.Warn("reset confirmation email failed", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}
