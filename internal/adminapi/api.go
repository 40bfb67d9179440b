package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/frozenspider/chat-history-manager-backend/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AdminAPI handles HTTP requests for merge job submission and tracking.
type AdminAPI struct {
	jobs       *JobManager
	logger     *logrus.Logger
	adminToken string
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// NewAdminAPI creates a new AdminAPI bound to a JobManager. It fails closed
// if CHMERGE_ADMIN_TOKEN isn't set, rather than starting without auth.
func NewAdminAPI(jobs *JobManager, logger *logrus.Logger) (*AdminAPI, error) {
	adminToken := os.Getenv("CHMERGE_ADMIN_TOKEN")
	if adminToken == "" {
		return nil, fmt.Errorf("CHMERGE_ADMIN_TOKEN environment variable is required")
	}

	ValidateAndWarn(adminToken, logger)

	return &AdminAPI{
		jobs:       jobs,
		logger:     logger,
		adminToken: adminToken,
	}, nil
}

// SetupRoutes configures the Fiber app with admin routes.
func (api *AdminAPI) SetupRoutes(app *fiber.App) {
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} - ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())
	app.Use(api.requestIDMiddleware)
	app.Use(api.timeoutMiddleware)
	app.Use(api.metricsMiddleware)

	app.Get("/healthz", api.healthHandler)
	app.Get("/readyz", api.readinessHandler)
	app.Get("/metrics", metrics.Handler())

	admin := app.Group("/admin", api.authMiddleware)
	admin.Post("/merges", api.createMergeHandler)
	admin.Get("/merges", api.listMergesHandler)
	admin.Get("/merges/:id", api.getMergeHandler)
	admin.Delete("/merges/:id", api.cancelMergeHandler)
}

// timeoutMiddleware adds a timeout context to each request.
func (api *AdminAPI) timeoutMiddleware(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 60*time.Second)
	defer cancel()
	c.SetUserContext(ctx)
	return c.Next()
}

// metricsMiddleware tracks API request metrics.
func (api *AdminAPI) metricsMiddleware(c *fiber.Ctx) error {
	err := c.Next()
	metrics.IncrementAPIRequest(c.Method(), c.Path(), strconv.Itoa(c.Response().StatusCode()))
	return err
}

// requestIDMiddleware adds a request ID to each request.
func (api *AdminAPI) requestIDMiddleware(c *fiber.Ctx) error {
	requestID := c.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	c.Locals("request_id", requestID)
	c.Set("X-Request-ID", requestID)
	return c.Next()
}

// authMiddleware validates bearer token authentication.
func (api *AdminAPI) authMiddleware(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	if auth == "" {
		return api.errorResponse(c, http.StatusUnauthorized, "missing_authorization", "Authorization header is required")
	}

	if !strings.HasPrefix(auth, "Bearer ") {
		return api.errorResponse(c, http.StatusUnauthorized, "invalid_authorization", "Authorization must use Bearer token")
	}

	token := strings.TrimPrefix(auth, "Bearer ")
	if token != api.adminToken {
		return api.errorResponse(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
	}

	return c.Next()
}

// createMergeHandler handles POST /admin/merges.
func (api *AdminAPI) createMergeHandler(c *fiber.Ctx) error {
	var req JobRequest
	if err := c.BodyParser(&req); err != nil {
		return api.errorResponse(c, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
	}

	if req.MasterDBPath == "" || req.SlaveDBPath == "" || req.TargetDBPath == "" {
		return api.errorResponse(c, http.StatusBadRequest, "missing_path", "master_db_path, slave_db_path and target_db_path are required")
	}

	api.logger.Infof("Submitting merge job for master=%s slave=%s", req.MasterDBPath, req.SlaveDBPath)

	job := api.jobs.Submit(req)
	metrics.IncrementMergeJob("submitted")
	return api.successResponse(c, http.StatusAccepted, job, "Merge job submitted")
}

// listMergesHandler handles GET /admin/merges.
func (api *AdminAPI) listMergesHandler(c *fiber.Ctx) error {
	return api.successResponse(c, http.StatusOK, api.jobs.List(), "Merge jobs retrieved successfully")
}

// getMergeHandler handles GET /admin/merges/:id.
func (api *AdminAPI) getMergeHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	job, ok := api.jobs.Get(id)
	if !ok {
		return api.errorResponse(c, http.StatusNotFound, "job_not_found", fmt.Sprintf("Merge job %s not found", id))
	}
	return api.successResponse(c, http.StatusOK, job, "Merge job retrieved successfully")
}

// cancelMergeHandler handles DELETE /admin/merges/:id.
func (api *AdminAPI) cancelMergeHandler(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, ok := api.jobs.Get(id); !ok {
		return api.errorResponse(c, http.StatusNotFound, "job_not_found", fmt.Sprintf("Merge job %s not found", id))
	}

	if !api.jobs.Cancel(id) {
		return api.errorResponse(c, http.StatusConflict, "job_not_cancellable", "Merge job is already in a terminal state")
	}

	return api.successResponse(c, http.StatusOK, nil, "Merge job cancellation requested")
}

// healthHandler handles GET /healthz.
func (api *AdminAPI) healthHandler(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "dev",
	}
	return c.Status(http.StatusOK).JSON(response)
}

// readinessHandler handles GET /readyz.
func (api *AdminAPI) readinessHandler(c *fiber.Ctx) error {
	return api.successResponse(c, http.StatusOK, nil, "Service is ready")
}

// errorResponse sends a standardized error response.
func (api *AdminAPI) errorResponse(c *fiber.Ctx, status int, errorCode, message string) error {
	requestID := api.getRequestID(c)

	response := ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	api.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"status":     status,
		"error_code": errorCode,
		"message":    message,
	}).Error("API error response")

	return c.Status(status).JSON(response)
}

// successResponse sends a standardized success response.
func (api *AdminAPI) successResponse(c *fiber.Ctx, status int, data interface{}, message string) error {
	response := SuccessResponse{
		Data:      data,
		Message:   message,
		RequestID: api.getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return c.Status(status).JSON(response)
}

// getRequestID retrieves the request ID from context.
func (api *AdminAPI) getRequestID(c *fiber.Ctx) string {
	if requestID, ok := c.Locals("request_id").(string); ok {
		return requestID
	}
	return "unknown"
}

// StartServer starts the admin HTTP server.
func (api *AdminAPI) StartServer(port string) error {
	app := fiber.New(fiber.Config{
		ErrorHandler: api.errorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	api.SetupRoutes(app)

	api.logger.Infof("Starting admin server on port %s", port)
	return app.Listen(":" + port)
}

// errorHandler handles uncaught errors.
func (api *AdminAPI) errorHandler(c *fiber.Ctx, err error) error {
	code := http.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	api.logger.WithFields(logrus.Fields{
		"path":   c.Path(),
		"method": c.Method(),
		"error":  err.Error(),
	}).Error("Unhandled error")

	return api.errorResponse(c, code, "internal_error", message)
}
