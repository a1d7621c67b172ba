package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"nganiriza-api/internal/middleware"
	"nganiriza-api/internal/model"
	"nganiriza-api/internal/store"
)

func (h *Handler) ListArticles(c *gin.Context) {
	locale, ok := normalizeLocale(c.Query("locale"))
	if !ok {
		badRequest(c, "locale must be one of eng, kny, fr")
		return
	}
	h.listArticles(c, store.ArticleFilter{Locale: locale, Tag: c.Query("tag"), PublishedOnly: true})
}

// ListAllArticles includes drafts and every locale unless one is requested.
func (h *Handler) ListAllArticles(c *gin.Context) {
	f := store.ArticleFilter{Tag: c.Query("tag")}
	if q := c.Query("locale"); q != "" {
		locale, ok := normalizeLocale(q)
		if !ok {
			badRequest(c, "locale must be one of eng, kny, fr")
			return
		}
		f.Locale = locale
	}
	h.listArticles(c, f)
}

func (h *Handler) listArticles(c *gin.Context, f store.ArticleFilter) {
	p := parsePage(c)
	articles, total, err := h.store.ListArticles(c.Request.Context(), f, p.store())
	if err != nil {
		h.fail(c, err, "list articles")
		return
	}
	c.JSON(http.StatusOK, p.wrap(c, total, orEmpty(articles)))
}

func (h *Handler) GetArticle(c *gin.Context) {
	a, err := h.store.Article(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "load article")
		return
	}
	if !a.IsPublished && middleware.Role(c) != model.RoleAdmin {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, a)
}

type articleRequest struct {
	Title       *string  `json:"title" binding:"omitempty,min=1,max=255"`
	Summary     *string  `json:"summary" binding:"omitempty,max=500"`
	Body        *string  `json:"body"`
	Locale      *string  `json:"locale"`
	Tags        []string `json:"tags" binding:"omitempty,dive,max=50"`
	IsPublished *bool    `json:"is_published"`
}

func (r *articleRequest) apply(a *model.Article) bool {
	set(&a.Title, r.Title)
	set(&a.Summary, r.Summary)
	set(&a.Body, r.Body)
	set(&a.IsPublished, r.IsPublished)
	if r.Tags != nil {
		a.Tags = r.Tags
	}
	if r.Locale != nil {
		locale, ok := normalizeLocale(*r.Locale)
		if !ok {
			return false
		}
		a.Locale = locale
	}
	return true
}

func (h *Handler) CreateArticle(c *gin.Context) {
	var req articleRequest
	if !bind(c, &req) {
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" || req.Body == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": gin.H{"title": "This field is required.", "body": "This field is required."}})
		return
	}

	uid := middleware.UserID(c)
	a := &model.Article{ID: uuid.New().String(), Locale: "eng", CreatedBy: &uid}
	if !req.apply(a) {
		badRequest(c, "locale must be one of eng, kny, fr")
		return
	}
	if err := h.store.CreateArticle(c.Request.Context(), a); err != nil {
		h.fail(c, err, "create article")
		return
	}
	a.UpdatedBy = &uid
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateArticle(c *gin.Context) {
	var req articleRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	a, err := h.store.Article(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err, "load article")
		return
	}
	if !req.apply(a) {
		badRequest(c, "locale must be one of eng, kny, fr")
		return
	}
	uid := middleware.UserID(c)
	a.UpdatedBy = &uid
	if err := h.store.UpdateArticle(ctx, a); err != nil {
		h.fail(c, err, "update article")
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteArticle(c *gin.Context) {
	if err := h.store.DeleteArticle(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "delete article")
		return
	}
	c.Status(http.StatusNoContent)
}
