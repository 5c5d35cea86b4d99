package transport

import (
	"net/http"
	"strconv"

	"github.com/ds124wfegd/openmic-lineup/internal/service"
	"github.com/ds124wfegd/openmic-lineup/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService service.NotificationService
}

func NewNotificationHandler(notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

func (h *NotificationHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.notificationService.ListNotifications(c.Request.Context(), middleware.IdentityFrom(c).UserID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Notifications retrieved",
		Data:    list,
		Meta:    gin.H{"total": len(list)},
	})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), middleware.IdentityFrom(c).UserID, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Notification marked as read"})
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	pref, err := h.notificationService.GetPreferences(c.Request.Context(), middleware.IdentityFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Preferences retrieved", Data: pref})
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req service.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	pref, err := h.notificationService.UpdatePreferences(c.Request.Context(), middleware.IdentityFrom(c).UserID, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Preferences updated", Data: pref})
}

func (h *NotificationHandler) DeleteEventNotifications(c *gin.Context) {
	eventID, ok := parseIDParam(c, "eventId")
	if !ok {
		return
	}

	deleted, err := h.notificationService.DeleteEventNotifications(c.Request.Context(), middleware.IdentityFrom(c), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Event notifications deleted",
		Meta:    gin.H{"deleted": deleted},
	})
}
