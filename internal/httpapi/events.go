package httpapi

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"schoolregistry/internal/registry"
)

// ListEvents returns school events soonest first. parent_id and lrn scope the
// listing to one parent or student; scoped listings include school-wide
// events.
func (h *Handler) ListEvents(c *gin.Context) {
	parentID, _ := strconv.ParseInt(c.Query("parent_id"), 10, 64)
	limit, offset := parsePage(c)
	events, err := h.registry.Events(c.Request.Context(), parentID, c.Query("lrn"), limit, offset)
	if err != nil {
		log.Printf("list events failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if events == nil {
		events = []registry.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"results": events})
}

// CreateEvent publishes a school event. scheduled_at is optional and defaults
// to the creation time.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		ParentID    int64  `json:"parent_id"`
		StudentLRN  string `json:"student_lrn"`
		ScheduledAt string `json:"scheduled_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	evt := registry.Event{
		ParentID:    req.ParentID,
		StudentLRN:  req.StudentLRN,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.ScheduledAt != "" {
		at, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be RFC3339"})
			return
		}
		evt.ScheduledAt = at
	}

	created, err := h.registry.CreateEvent(c.Request.Context(), evt)
	if err != nil {
		log.Printf("create event failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListSchedules returns class schedule slots, optionally for one student.
func (h *Handler) ListSchedules(c *gin.Context) {
	studentID, _ := strconv.ParseInt(c.Query("student_id"), 10, 64)
	limit, offset := parsePage(c)
	schedules, err := h.registry.Schedules(c.Request.Context(), studentID, limit, offset)
	if err != nil {
		log.Printf("list schedules failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if schedules == nil {
		schedules = []registry.Schedule{}
	}
	c.JSON(http.StatusOK, gin.H{"results": schedules})
}

// CreateSchedule adds a class schedule slot for a student.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req struct {
		StudentID int64  `json:"student_id" binding:"required"`
		Subject   string `json:"subject" binding:"required"`
		Time      string `json:"time"`
		Room      string `json:"room"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.registry.CreateSchedule(c.Request.Context(), registry.Schedule{
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Time:      req.Time,
		Room:      req.Room,
	})
	if err != nil {
		log.Printf("create schedule failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, created)
}
