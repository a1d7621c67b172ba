// Package riskapi serves the risk classifier over HTTP.
package riskapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"nganiriza-api/internal/risk"
)

const maxUploadBytes = 32 << 20

type Handler struct {
	svc        *risk.Service
	backendURL string
	validate   *validator.Validate
	log        *zap.Logger
}

// New builds the handler. backendURL prefixes the returned plot links.
func New(svc *risk.Service, backendURL string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: svc, backendURL: strings.TrimRight(backendURL, "/"), validate: v, log: log}
}

// App mounts the routes and serves staticDir under /static.
func (h *Handler) App(staticDir string, origins []string) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             maxUploadBytes,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(h.requestLog)
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	app.Static("/static", staticDir)
	app.Get("/healthz", h.Health)
	app.Post("/upload", h.Upload)
	app.Post("/retrain", h.Retrain)
	app.Post("/predict", h.Predict)
	app.Get("/visualizations/:type", h.Visualizations)
	return app
}

func (h *Handler) requestLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		status = fiber.StatusInternalServerError
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
	}
	if status >= 500 {
		h.log.Error("request", fields...)
	} else {
		h.log.Info("request", fields...)
	}
	return err
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "trained": h.svc.Trained()})
}

func (h *Handler) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	id, err := h.svc.Upload(c.UserContext(), fh.Filename, f)
	if err != nil {
		h.log.Error("upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Upload failed: " + err.Error()})
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("File %s uploaded successfully", fh.Filename),
		"file_id": id,
	})
}

func (h *Handler) Retrain(c *fiber.Ctx) error {
	res, err := h.svc.Retrain(c.UserContext())
	switch {
	case errors.Is(err, risk.ErrNoFiles):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No files uploaded"})
	case err != nil:
		h.log.Warn("retrain", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to process file: " + err.Error()})
	}
	return c.JSON(fiber.Map{
		"message": "Model retrained successfully using " + res.Filename,
		"metrics": res.Metrics,
	})
}

func (h *Handler) Predict(c *fiber.Ctx) error {
	var in risk.Input
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if err := h.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := fiber.Map{}
			for _, fe := range verrs {
				details[fe.Field()] = fmt.Sprintf("failed %q", fe.Tag())
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input", "details": details})
		}
		return err
	}

	p, err := h.svc.Predict(in)
	if errors.Is(err, risk.ErrNotTrained) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Model not trained. Please retrain the model first.",
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *Handler) Visualizations(c *fiber.Ctx) error {
	names, err := h.svc.Visualize(c.Params("type"))
	switch {
	case errors.Is(err, risk.ErrUnknownPlot):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Invalid plot type"})
	case errors.Is(err, risk.ErrNoData):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Training data not found"})
	case err != nil:
		h.log.Error("render plots", zap.Error(err))
		return err
	}
	return c.JSON(fiber.Map{
		"plot1": h.backendURL + "/static/" + names[0],
		"plot2": h.backendURL + "/static/" + names[1],
	})
}
