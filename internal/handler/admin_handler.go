package handler

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nganiriza-api/internal/model"
	"nganiriza-api/internal/store"
)

func (h *Handler) listProviders(c *gin.Context, verifiedOnly bool) {
	p := parsePage(c)
	list, total, err := h.store.ListServiceProviders(c.Request.Context(), verifiedOnly, p.store())
	if err != nil {
		h.fail(c, err, "list service providers")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(list)))
}

func (h *Handler) ListServiceProviders(c *gin.Context)       { h.listProviders(c, false) }
func (h *Handler) ListPublicServiceProviders(c *gin.Context) { h.listProviders(c, true) }

func (h *Handler) GetServiceProvider(c *gin.Context) {
	sp, err := h.store.ServiceProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "load service provider")
		return
	}
	c.JSON(http.StatusOK, sp)
}

type providerRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string  `json:"description" binding:"omitempty,max=2000"`
	Phone       *string  `json:"phone" binding:"omitempty,max=20"`
	Email       *string  `json:"email" binding:"omitempty,email"`
	Website     *string  `json:"website" binding:"omitempty,url"`
	Address     *string  `json:"address" binding:"omitempty,max=300"`
	Province    *string  `json:"province" binding:"omitempty,max=100"`
	District    *string  `json:"district" binding:"omitempty,max=100"`
	Sector      *string  `json:"sector" binding:"omitempty,max=100"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Services    []string `json:"services" binding:"omitempty,dive,max=100"`
	Verified    *bool    `json:"verified"`
}

// roundCoord keeps six decimal places, about 10cm.
func roundCoord(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*1e6) / 1e6
	return &r
}

func (r *providerRequest) apply(p *model.ServiceProvider) {
	set(&p.Name, r.Name)
	set(&p.Description, r.Description)
	set(&p.Phone, r.Phone)
	set(&p.Email, r.Email)
	set(&p.Website, r.Website)
	set(&p.Address, r.Address)
	set(&p.Province, r.Province)
	set(&p.District, r.District)
	set(&p.Sector, r.Sector)
	set(&p.Verified, r.Verified)
	if r.Latitude != nil {
		p.Latitude = roundCoord(r.Latitude)
	}
	if r.Longitude != nil {
		p.Longitude = roundCoord(r.Longitude)
	}
	if r.Services != nil {
		p.Services = r.Services
	}
}

func (h *Handler) CreateServiceProvider(c *gin.Context) {
	var req providerRequest
	if !bind(c, &req) {
		return
	}
	if req.Name == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"name": "This field is required."}})
		return
	}
	sp := &model.ServiceProvider{ID: uuid.New().String()}
	req.apply(sp)
	if err := h.store.CreateServiceProvider(c.Request.Context(), sp); err != nil {
		h.fail(c, err, "create service provider")
		return
	}
	c.JSON(http.StatusCreated, sp)
}

func (h *Handler) UpdateServiceProvider(c *gin.Context) {
	var req providerRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	sp, err := h.store.ServiceProvider(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "load service provider")
		return
	}
	req.apply(sp)
	if err := h.store.UpdateServiceProvider(ctx, sp); err != nil {
		h.fail(c, err, "update service provider")
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (h *Handler) DeleteServiceProvider(c *gin.Context) {
	if err := h.store.DeleteServiceProvider(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "delete service provider")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListUsers(c *gin.Context) {
	role := c.Query("role")
	switch role {
	case "", model.RoleUser, model.RoleSpecialist, model.RoleAdmin:
	default:
		badRequest(c, "unknown role")
		return
	}
	p := parsePage(c)
	users, total, err := h.store.ListUsers(c.Request.Context(), store.UserFilter{Search: c.Query("search"), Role: role}, p.store())
	if err != nil {
		h.fail(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(users)))
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.store.UserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "load user")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) PendingSpecialists(c *gin.Context) {
	p := parsePage(c)
	list, total, err := h.store.ListSpecialists(c.Request.Context(), store.SpecialistFilter{Pending: true}, p.store())
	if err != nil {
		h.fail(c, err, "list pending specialists")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(list)))
}

type approveRequest struct {
	// pointer so an explicit false is distinguishable from a missing field
	IsVerified      *bool  `json:"is_verified" binding:"required"`
	RejectionReason string `json:"rejection_reason" binding:"max=500"`
}

func (h *Handler) ApproveSpecialist(c *gin.Context) {
	var req approveRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	reason := req.RejectionReason
	if *req.IsVerified {
		reason = ""
	}
	if err := h.store.SetSpecialistVerification(ctx, c.Param("id"), *req.IsVerified, reason); err != nil {
		h.fail(c, err, "update verification")
		return
	}
	sp, err := h.store.Specialist(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "load specialist")
		return
	}
	c.JSON(http.StatusOK, sp)
}
