package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
	"nganiriza-api/internal/store"
)

const (
	defaultDuration = 60 * time.Minute
	bookingGrace    = 5 * time.Minute
)

type createAppointmentRequest struct {
	SpecialistID    string    `json:"specialist_id" binding:"required,uuid"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	DurationMinutes int       `json:"duration_minutes" binding:"omitempty,gte=15,lte=240"`
	Reason          string    `json:"reason" binding:"max=1000"`
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	start := req.StartTime.UTC()
	if start.Before(time.Now().Add(-bookingGrace)) {
		badRequest(c, "cannot book in the past")
		return
	}
	dur := defaultDuration
	if req.DurationMinutes > 0 {
		dur = time.Duration(req.DurationMinutes) * time.Minute
	}
	end := start.Add(dur)

	sp, err := h.store.Specialist(ctx, req.SpecialistID)
	if err != nil {
		h.fail(c, err, "load specialist")
		return
	}
	if !sp.IsVerified {
		badRequest(c, "specialist is not accepting appointments")
		return
	}
	if sp.UserID == userID {
		badRequest(c, "cannot book an appointment with yourself")
		return
	}

	// app-level overlap check
	if dup, err := h.store.HasOverlap(ctx, sp.ID, start, end, ""); err != nil {
		h.fail(c, err, "check overlap")
		return
	} else if dup {
		c.JSON(http.StatusConflict, gin.H{"error": "time conflicts with an existing appointment"})
		return
	}

	apt := &model.Appointment{
		ID:             uuid.New().String(),
		UserID:         userID,
		SpecialistID:   sp.ID,
		SpecialistName: sp.Name,
		StartTime:      start,
		EndTime:        end,
		Reason:         req.Reason,
		Status:         model.StatusPending,
	}
	if err := h.store.CreateAppointment(ctx, apt); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// db exclusion constraint caught a race
			c.JSON(http.StatusConflict, gin.H{"error": "time conflicts with an existing appointment"})
			return
		}
		h.fail(c, err, "create appointment")
		return
	}
	c.JSON(http.StatusCreated, apt)
}

func (h *Handler) listAppointments(c *gin.Context, f store.AppointmentFilter) {
	f.Status = c.Query("status")
	if f.Status != "" && !model.AppointmentStatuses[f.Status] {
		badRequest(c, "unknown status")
		return
	}
	p := parsePage(c)
	apts, total, err := h.store.ListAppointments(c.Request.Context(), f, p.store())
	if err != nil {
		h.fail(c, err, "list appointments")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(apts)))
}

func (h *Handler) MyAppointments(c *gin.Context) {
	h.listAppointments(c, store.AppointmentFilter{UserID: middleware.UserID(c)})
}

func (h *Handler) SpecialistAppointments(c *gin.Context) {
	sp, ok := h.currentSpecialist(c)
	if !ok {
		return
	}
	h.listAppointments(c, store.AppointmentFilter{SpecialistID: sp.ID})
}

type bookedSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

// BookedSlots exposes a specialist's occupied times without the other patients' details.
func (h *Handler) BookedSlots(c *gin.Context) {
	ctx := c.Request.Context()
	sp, err := h.store.Specialist(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "load specialist")
		return
	}

	var slots []bookedSlot
	for _, st := range []string{model.StatusPending, model.StatusConfirmed} {
		apts, _, err := h.store.ListAppointments(ctx,
			store.AppointmentFilter{SpecialistID: sp.ID, Status: st},
			store.Page{Limit: maxPageSize})
		if err != nil {
			h.fail(c, err, "list appointments")
			return
		}
		for _, a := range apts {
			if a.EndTime.After(time.Now()) {
				slots = append(slots, bookedSlot{StartTime: a.StartTime, EndTime: a.EndTime, Status: a.Status})
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"specialist_id": sp.ID, "results": orEmpty(slots)})
}

type appointmentStatusRequest struct {
	Status             string `json:"status" binding:"required,oneof=pending confirmed cancelled completed"`
	CancellationReason string `json:"cancellation_reason" binding:"max=500"`
}

func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	var req appointmentStatusRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	apt, err := h.store.Appointment(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "load appointment")
		return
	}

	isOwner := apt.UserID == userID
	isSpecialist := false
	if sp, err := h.store.SpecialistByUser(ctx, userID); err == nil {
		isSpecialist = sp.ID == apt.SpecialistID
	} else if !errors.Is(err, store.ErrNotFound) {
		h.fail(c, err, "load specialist")
		return
	}

	// ownership: 404 not 403 to hide existence
	if !isOwner && !isSpecialist {
		notFound(c)
		return
	}
	if !isSpecialist && req.Status != model.StatusCancelled {
		forbidden(c)
		return
	}

	reopening := req.Status == model.StatusPending || req.Status == model.StatusConfirmed
	if reopening && apt.Status != model.StatusPending && apt.Status != model.StatusConfirmed {
		if dup, err := h.store.HasOverlap(ctx, apt.SpecialistID, apt.StartTime, apt.EndTime, apt.ID); err != nil {
			h.fail(c, err, "check overlap")
			return
		} else if dup {
			c.JSON(http.StatusConflict, gin.H{"error": "time conflicts with an existing appointment"})
			return
		}
	}

	reason := ""
	if req.Status == model.StatusCancelled {
		reason = req.CancellationReason
	}
	if err := h.store.SetAppointmentStatus(ctx, apt.ID, req.Status, reason); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "time conflicts with an existing appointment"})
			return
		}
		h.fail(c, err, "update appointment")
		return
	}
	apt.Status = req.Status
	apt.CancellationReason = reason
	c.JSON(http.StatusOK, apt)
}
