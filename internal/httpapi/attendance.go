package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"schoolregistry/internal/attendance"
)

// ScanAttendance verifies a scanned QR payload and records an attendance
// event. Rejected scans are logged as unauthorized persons.
func (h *Handler) ScanAttendance(c *gin.Context) {
	var req struct {
		QRData string `json:"qr_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt, err := h.attendance.Scan(c.Request.Context(), req.QRData)
	if err != nil {
		switch {
		case errors.Is(err, attendance.ErrBadPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, attendance.ErrNotAuthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "person not authorized for pickup"})
		default:
			log.Printf("attendance scan failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, evt)
}

// ListAttendance returns recorded scans, optionally filtered by student LRN.
func (h *Handler) ListAttendance(c *gin.Context) {
	limit, offset := parsePage(c)
	events, err := h.attendance.List(c.Request.Context(), c.Query("lrn"), limit, offset)
	if err != nil {
		log.Printf("list attendance failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if events == nil {
		events = []attendance.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"results": events})
}

// ListUnauthorized returns logged rejected scans.
func (h *Handler) ListUnauthorized(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	persons, err := h.attendance.Unauthorized(c.Request.Context(), limit)
	if err != nil {
		log.Printf("list unauthorized failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if persons == nil {
		persons = []attendance.UnauthorizedPerson{}
	}
	c.JSON(http.StatusOK, gin.H{"results": persons})
}
