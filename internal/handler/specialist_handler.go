package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
	"nganiriza-api/internal/store"
)

// currentSpecialist loads the caller's specialist profile or writes a 403.
func (h *Handler) currentSpecialist(c *gin.Context) (*model.SpecialistProfile, bool) {
	sp, err := h.store.SpecialistByUser(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusForbidden, gin.H{"error": "specialist profile required"})
		return nil, false
	}
	if err != nil {
		h.fail(c, err, "load specialist")
		return nil, false
	}
	return sp, true
}

func (h *Handler) SpecialistProfile(c *gin.Context) {
	sp, ok := h.currentSpecialist(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sp)
}

type specialistProfileRequest struct {
	Specialty       *string  `json:"specialty" binding:"omitempty,max=100"`
	ClinicName      *string  `json:"clinic_name" binding:"omitempty,max=200"`
	Bio             *string  `json:"bio" binding:"omitempty,max=2000"`
	YearsExperience *int     `json:"years_experience" binding:"omitempty,gte=0,lte=70"`
	Languages       []string `json:"languages" binding:"omitempty,dive,max=30"`
	Phone           *string  `json:"phone" binding:"omitempty,max=20"`
	Location        *string  `json:"location" binding:"omitempty,max=200"`
}

func (h *Handler) UpdateSpecialistProfile(c *gin.Context) {
	var req specialistProfileRequest
	if !bind(c, &req) {
		return
	}
	sp, ok := h.currentSpecialist(c)
	if !ok {
		return
	}

	set(&sp.Specialty, req.Specialty)
	set(&sp.ClinicName, req.ClinicName)
	set(&sp.Bio, req.Bio)
	set(&sp.YearsExperience, req.YearsExperience)
	set(&sp.Phone, req.Phone)
	set(&sp.Location, req.Location)
	if req.Languages != nil {
		sp.Languages = req.Languages
	}
	sp.ProfileCompleted = profileComplete(sp)

	if err := h.store.UpdateSpecialist(c.Request.Context(), sp); err != nil {
		h.fail(c, err, "update specialist")
		return
	}
	c.JSON(http.StatusOK, sp)
}

func profileComplete(sp *model.SpecialistProfile) bool {
	return strings.TrimSpace(sp.Specialty) != "" &&
		strings.TrimSpace(sp.ClinicName) != "" &&
		strings.TrimSpace(sp.Bio) != ""
}

func (h *Handler) SpecialistStats(c *gin.Context) {
	sp, ok := h.currentSpecialist(c)
	if !ok {
		return
	}
	stats, err := h.store.SpecialistStats(c.Request.Context(), sp)
	if err != nil {
		h.fail(c, err, "specialist stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListSpecialists(c *gin.Context) {
	p := parsePage(c)
	f := store.SpecialistFilter{Specialty: c.Query("specialty"), Search: c.Query("search")}
	list, total, err := h.store.ListSpecialists(c.Request.Context(), f, p.store())
	if err != nil {
		h.fail(c, err, "list specialists")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(list)))
}

func (h *Handler) GetSpecialist(c *gin.Context) {
	sp, err := h.store.Specialist(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "load specialist")
		return
	}
	if !sp.IsVerified && middleware.Role(c) != model.RoleAdmin {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, sp)
}

type reviewRequest struct {
	SpecialistID string `json:"specialist_id" binding:"required,uuid"`
	Rating       int    `json:"rating" binding:"required,gte=1,lte=5"`
	Comment      string `json:"comment" binding:"max=2000"`
}

func (h *Handler) CreateReview(c *gin.Context) {
	var req reviewRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	done, err := h.store.HasCompletedAppointment(ctx, userID, req.SpecialistID)
	if err != nil {
		h.fail(c, err, "check appointments")
		return
	}
	if !done {
		badRequest(c, "you can only review specialists after a completed appointment")
		return
	}

	r := &model.Review{
		ID:           uuid.New().String(),
		SpecialistID: req.SpecialistID,
		UserID:       userID,
		Rating:       req.Rating,
		Comment:      req.Comment,
	}
	if err := h.store.CreateReview(ctx, r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "you have already reviewed this specialist"})
			return
		}
		h.fail(c, err, "create review")
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReviews(c *gin.Context) {
	p := parsePage(c)
	reviews, total, err := h.store.ListReviews(c.Request.Context(), c.Param("id"), p.store())
	if err != nil {
		h.fail(c, err, "list reviews")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(reviews)))
}

type specialistMessageRequest struct {
	SpecialistID string `json:"specialist_id" binding:"omitempty,uuid"`
	UserID       string `json:"user_id" binding:"omitempty,uuid"`
	Subject      string `json:"subject" binding:"max=200"`
	Message      string `json:"message" binding:"required,max=5000"`
}

// CreateSpecialistMessage sends a message in either direction: users name the
// specialist, specialists name the user.
func (h *Handler) CreateSpecialistMessage(c *gin.Context) {
	var req specialistMessageRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	m := &model.SpecialistMessage{
		ID:      uuid.New().String(),
		Subject: req.Subject,
		Body:    req.Message,
	}

	if middleware.Role(c) == model.RoleSpecialist {
		sp, ok := h.currentSpecialist(c)
		if !ok {
			return
		}
		if req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"user_id": "This field is required."}})
			return
		}
		m.UserID, m.SpecialistID, m.SenderRole = req.UserID, sp.ID, model.RoleSpecialist
	} else {
		if req.SpecialistID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"specialist_id": "This field is required."}})
			return
		}
		sp, err := h.store.Specialist(ctx, req.SpecialistID)
		if err != nil {
			h.fail(c, err, "load specialist")
			return
		}
		if !sp.IsVerified {
			badRequest(c, "specialist is not accepting messages")
			return
		}
		m.UserID, m.SpecialistID, m.SenderRole = middleware.UserID(c), sp.ID, model.RoleUser
	}

	if err := h.store.CreateSpecialistMessage(ctx, m); err != nil {
		h.fail(c, err, "create message")
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) listMessages(c *gin.Context, f store.MessageFilter) {
	p := parsePage(c)
	msgs, total, err := h.store.ListSpecialistMessages(c.Request.Context(), f, p.store())
	if err != nil {
		h.fail(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(msgs)))
}

func (h *Handler) UserMessages(c *gin.Context) {
	h.listMessages(c, store.MessageFilter{UserID: middleware.UserID(c)})
}

// Inbox lists the specialist's messages, optionally narrowed to one user's thread
// which is then marked read.
func (h *Handler) Inbox(c *gin.Context) {
	sp, ok := h.currentSpecialist(c)
	if !ok {
		return
	}
	f := store.MessageFilter{SpecialistID: sp.ID}
	if uid := c.Query("user_id"); uid != "" {
		if _, err := uuid.Parse(uid); err != nil {
			badRequest(c, "user_id must be a UUID")
			return
		}
		f.UserID = uid
		if err := h.store.MarkThreadRead(c.Request.Context(), uid, sp.ID, model.RoleSpecialist); err != nil {
			h.fail(c, err, "mark read")
			return
		}
	}
	h.listMessages(c, f)
}

// Thread returns the caller's conversation with one specialist and marks it read.
func (h *Handler) Thread(c *gin.Context) {
	specialistID := c.Param("id")
	if _, err := uuid.Parse(specialistID); err != nil {
		notFound(c)
		return
	}
	userID := middleware.UserID(c)
	if err := h.store.MarkThreadRead(c.Request.Context(), userID, specialistID, model.RoleUser); err != nil {
		h.fail(c, err, "mark read")
		return
	}
	h.listMessages(c, store.MessageFilter{UserID: userID, SpecialistID: specialistID})
}

func (h *Handler) Contacts(c *gin.Context) {
	contacts, err := h.store.Contacts(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err, "list contacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": orEmpty(contacts)})
}
