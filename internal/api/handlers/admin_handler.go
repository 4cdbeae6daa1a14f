package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"realtime-gateway/internal/services"
	"realtime-gateway/pkg/logger"
)

// AdminHandler exposes the administrative trigger surface: force logout,
// global notifications, the audit log, and scheduled notifications.
type AdminHandler struct {
	invalidator *services.SessionInvalidationService
	scheduler   *services.NotificationScheduler
	log         logger.Logger
}

func NewAdminHandler(invalidator *services.SessionInvalidationService,
	scheduler *services.NotificationScheduler, log logger.Logger) *AdminHandler {
	return &AdminHandler{
		invalidator: invalidator,
		scheduler:   scheduler,
		log:         log,
	}
}

type LogoutRequest struct {
	Reason string `json:"reason"`
}

type NotificationRequest struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type ScheduleNotificationRequest struct {
	Message string    `json:"message"`
	Type    string    `json:"type"`
	SendAt  time.Time `json:"send_at"`
}

func (h *AdminHandler) GlobalLogout(c echo.Context) error {
	var req LogoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Reason == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Reason is required"})
	}

	if err := h.invalidator.TriggerGlobalLogout(c.Request().Context(), req.Reason); err != nil {
		h.log.Error("Failed to trigger global logout", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to trigger logout"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Global logout triggered"})
}

func (h *AdminHandler) UserLogout(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "User id is required"})
	}

	var req LogoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Reason == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Reason is required"})
	}

	if err := h.invalidator.TriggerUserLogout(c.Request().Context(), userID, req.Reason); err != nil {
		h.log.Error("Failed to trigger user logout", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to trigger logout"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "User logout triggered", "user_id": userID})
}

func (h *AdminHandler) SendNotification(c echo.Context) error {
	var req NotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
	}

	if req.Type == "" {
		req.Type = "info"
	}

	if err := h.invalidator.SendGlobalNotification(c.Request().Context(), req.Message, req.Type); err != nil {
		h.log.Error("Failed to send notification", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to send notification"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Notification sent"})
}

func (h *AdminHandler) ListNotifications(c echo.Context) error {
	records, err := h.invalidator.ListRecent(c.Request().Context(), 50)
	if err != nil {
		h.log.Error("Failed to list notifications", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list notifications"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"notifications": records})
}

func (h *AdminHandler) ScheduleNotification(c echo.Context) error {
	var req ScheduleNotificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Message is required"})
	}

	if req.SendAt.Before(time.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "send_at must be in the future"})
	}

	if req.Type == "" {
		req.Type = "info"
	}

	scheduled, err := h.scheduler.Schedule(c.Request().Context(), req.Message, req.Type, req.SendAt)
	if err != nil {
		h.log.Error("Failed to schedule notification", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to schedule notification"})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":      scheduled.ID,
		"send_at": scheduled.SendAt,
		"status":  scheduled.Status,
	})
}
