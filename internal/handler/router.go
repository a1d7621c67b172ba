package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nganiriza-api/internal/logging"
	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
)

const maxBodyBytes = 1 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Origins []string
	// Limiter throttles signup and login; nil disables it.
	Limiter *middleware.RateLimiter
	DB      HealthChecker
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (h *Handler) Router(cfg RouterConfig) *gin.Engine {
	useJSONFieldNames()

	origins := cfg.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := gin.New()
	r.Use(
		logging.Gin(h.log),
		gin.Recovery(),
		limitBodySize(maxBodyBytes),
		cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if cfg.DB == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := cfg.DB.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": fmt.Sprintf("unhealthy: %v", err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	})

	authn := middleware.Authenticate(h.secret)
	throttle := func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		throttle = middleware.Limit(cfg.Limiter)
	}
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	specialistOnly := middleware.RequireRole(model.RoleSpecialist)

	a := r.Group("/api/auth")
	a.POST("/signup/", throttle, h.Signup)
	a.POST("/login/", throttle, h.Login)
	a.POST("/token/refresh/", h.Refresh)
	a.POST("/reset/", throttle, h.RequestReset)
	a.POST("/reset/confirm/", throttle, h.ConfirmReset)
	a.POST("/logout/", authn, h.Logout)
	a.GET("/me/", authn, h.Me)

	d := r.Group("/api/dashboard", authn)
	d.GET("/", h.ListConversations)
	d.GET("/profile/", h.GetProfile)
	d.PUT("/profile/update/", h.UpdateProfile)
	d.PATCH("/profile/update/", h.UpdateProfile)
	d.PATCH("/profile/language/", h.UpdateLanguage)
	d.DELETE("/profile/delete/", h.DeleteProfile)

	d.POST("/conversations/", h.CreateConversation)
	d.GET("/conversations/:id/", h.GetConversation)
	d.DELETE("/conversations/:id/delete/", h.DeleteConversation)
	d.GET("/conversations/:id/messages/", h.ListMessages)
	d.POST("/conversations/:id/messages/", h.PostMessage)
	d.POST("/conversations/:id/title/", h.RegenerateTitle)

	d.GET("/articles/", h.ListArticles)
	d.GET("/articles/:id/", h.GetArticle)
	d.GET("/articles/admin/all/", adminOnly, h.ListAllArticles)
	d.POST("/articles/create/", adminOnly, h.CreateArticle)
	d.PUT("/articles/:id/update/", adminOnly, h.UpdateArticle)
	d.PATCH("/articles/:id/update/", adminOnly, h.UpdateArticle)
	d.DELETE("/articles/:id/delete/", adminOnly, h.DeleteArticle)

	sp := r.Group("/api/specialists")
	sp.GET("/", h.ListSpecialists)
	sp.GET("/:id/", h.GetSpecialist)
	sp.GET("/:id/reviews/", h.ListReviews)

	spa := sp.Group("", authn)
	spa.GET("/profile/", specialistOnly, h.SpecialistProfile)
	spa.PUT("/profile/update/", specialistOnly, h.UpdateSpecialistProfile)
	spa.PATCH("/profile/update/", specialistOnly, h.UpdateSpecialistProfile)
	spa.GET("/dashboard/stats/", specialistOnly, h.SpecialistStats)
	spa.POST("/appointments/create/", h.CreateAppointment)
	spa.GET("/appointments/my/", h.MyAppointments)
	spa.GET("/appointments/specialist/", specialistOnly, h.SpecialistAppointments)
	spa.PATCH("/appointments/:id/status/", h.UpdateAppointmentStatus)
	spa.POST("/reviews/create/", h.CreateReview)
	spa.POST("/messages/create/", h.CreateSpecialistMessage)
	spa.GET("/messages/user/", h.UserMessages)
	spa.GET("/messages/inbox/", specialistOnly, h.Inbox)
	spa.GET("/contacts/", h.Contacts)
	spa.GET("/:id/messages/", h.Thread)
	spa.GET("/:id/appointments/", h.BookedSlots)

	r.GET("/api/admin/service-providers/public/", h.ListPublicServiceProviders)
	ad := r.Group("/api/admin", authn, adminOnly)
	ad.GET("/service-providers/", h.ListServiceProviders)
	ad.POST("/service-providers/create/", h.CreateServiceProvider)
	ad.GET("/service-providers/:id/", h.GetServiceProvider)
	ad.PUT("/service-providers/:id/update/", h.UpdateServiceProvider)
	ad.PATCH("/service-providers/:id/update/", h.UpdateServiceProvider)
	ad.DELETE("/service-providers/:id/delete/", h.DeleteServiceProvider)
	ad.GET("/users/", h.ListUsers)
	ad.GET("/users/:id/", h.GetUser)
	ad.GET("/specialists/pending/", h.PendingSpecialists)
	ad.GET("/specialists/:id/", h.GetSpecialist)
	ad.PUT("/specialists/:id/approve/", h.ApproveSpecialist)
	ad.PATCH("/specialists/:id/approve/", h.ApproveSpecialist)

	ai := r.Group("/api/ai")
	ai.GET("/health/", h.AIHealth)
	ai.POST("/query/", authn, h.Query)
	ai.POST("/chat/", authn, h.Chat)
	ai.POST("/generate-title/", authn, h.GenerateTitle)

	return r
}
