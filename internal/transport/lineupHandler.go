package transport

import (
	"net/http"

	"github.com/ds124wfegd/openmic-lineup/internal/service"
	"github.com/ds124wfegd/openmic-lineup/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

type LineupHandler struct {
	lineupService service.LineupService
}

func NewLineupHandler(lineupService service.LineupService) *LineupHandler {
	return &LineupHandler{lineupService: lineupService}
}

func (h *LineupHandler) ClaimSlot(c *gin.Context) {
	var req service.ClaimSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	slot, err := h.lineupService.ClaimSlot(c.Request.Context(), middleware.IdentityFrom(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "Slot claimed",
		Data:    slot,
	})
}

func (h *LineupHandler) ListSlots(c *gin.Context) {
	eventID, ok := parseIDParam(c, "eventId")
	if !ok {
		return
	}

	slots, err := h.lineupService.ListSlots(c.Request.Context(), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Lineup retrieved",
		Data:    slots,
		Meta:    gin.H{"total": len(slots)},
	})
}

func (h *LineupHandler) ReleaseSlot(c *gin.Context) {
	slotID, ok := parseIDParam(c, "slotId")
	if !ok {
		return
	}

	freed, err := h.lineupService.ReleaseSlot(c.Request.Context(), middleware.IdentityFrom(c), slotID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Slot released",
		Data:    freed,
	})
}

func (h *LineupHandler) ReorderSlots(c *gin.Context) {
	var req service.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.lineupService.ReorderSlots(c.Request.Context(), middleware.IdentityFrom(c), req.Slots); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Lineup reordered",
		Data:    req.Slots,
	})
}

// Consolidated previews the assigned-first reflow; the client saves it
// through ReorderSlots.
func (h *LineupHandler) Consolidated(c *gin.Context) {
	eventID, ok := parseIDParam(c, "eventId")
	if !ok {
		return
	}

	items, err := h.lineupService.ConsolidatePreview(c.Request.Context(), middleware.IdentityFrom(c), eventID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Consolidated lineup preview",
		Data:    items,
	})
}
