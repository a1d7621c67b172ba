package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nganiriza-api/internal/middleware"
)

type profileResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Phone             string `json:"phone_number"`
	Role              string `json:"role"`
	PreferredLanguage string `json:"preferred_language"`
	Gender            string `json:"gender"`
	Bio               string `json:"bio"`
	ConsentData       bool   `json:"consent_data_processing"`
}

func (h *Handler) loadProfile(c *gin.Context) (*profileResponse, bool) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	u, err := h.store.UserByID(ctx, uid)
	if err != nil {
		h.fail(c, err, "lookup user")
		return nil, false
	}
	p, err := h.store.ProfileFor(ctx, uid)
	if err != nil {
		h.fail(c, err, "load profile")
		return nil, false
	}
	return &profileResponse{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Phone:             u.Phone,
		Role:              u.Role,
		PreferredLanguage: p.PreferredLanguage,
		Gender:            p.Gender,
		Bio:               p.Bio,
		ConsentData:       p.ConsentData,
	}, true
}

func (h *Handler) GetProfile(c *gin.Context) {
	resp, ok := h.loadProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Pointer fields so PATCH only touches what was sent.
type updateProfileRequest struct {
	FirstName         *string `json:"first_name" binding:"omitempty,max=150"`
	LastName          *string `json:"last_name" binding:"omitempty,max=150"`
	Phone             *string `json:"phone_number" binding:"omitempty,max=20"`
	PreferredLanguage *string `json:"preferred_language" binding:"omitempty,oneof=rw en fr"`
	Gender            *string `json:"gender" binding:"omitempty,oneof=female male other prefer_not_to_say"`
	Bio               *string `json:"bio" binding:"omitempty,max=1000"`
	ConsentData       *bool   `json:"consent_data_processing"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	u, err := h.store.UserByID(ctx, uid)
	if err != nil {
		h.fail(c, err, "lookup user")
		return
	}
	p, err := h.store.ProfileFor(ctx, uid)
	if err != nil {
		h.fail(c, err, "load profile")
		return
	}

	if req.FirstName != nil || req.LastName != nil || req.Phone != nil {
		set(&u.FirstName, req.FirstName)
		set(&u.LastName, req.LastName)
		set(&u.Phone, req.Phone)
		if err := h.store.UpdateUserNames(ctx, uid, u.FirstName, u.LastName, u.Phone); err != nil {
			h.fail(c, err, "update user")
			return
		}
	}

	set(&p.PreferredLanguage, req.PreferredLanguage)
	set(&p.Gender, req.Gender)
	set(&p.Bio, req.Bio)
	if req.ConsentData != nil {
		p.ConsentData = *req.ConsentData
	}
	if err := h.store.UpdateProfile(ctx, p); err != nil {
		h.fail(c, err, "update profile")
		return
	}

	resp, ok := h.loadProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

type languageRequest struct {
	PreferredLanguage string `json:"preferred_language" binding:"required,oneof=rw en fr"`
}

func (h *Handler) UpdateLanguage(c *gin.Context) {
	var req languageRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	p, err := h.store.ProfileFor(ctx, middleware.UserID(c))
	if err != nil {
		h.fail(c, err, "load profile")
		return
	}
	p.PreferredLanguage = req.PreferredLanguage
	if err := h.store.UpdateProfile(ctx, p); err != nil {
		h.fail(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferred_language": p.PreferredLanguage})
}

// DeleteProfile anonymizes the account rather than removing rows.
func (h *Handler) DeleteProfile(c *gin.Context) {
	if err := h.store.AnonymizeUser(c.Request.Context(), middleware.UserID(c)); err != nil {
		h.fail(c, err, "anonymize user")
		return
	}
	c.Status(http.StatusNoContent)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
