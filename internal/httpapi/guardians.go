package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"schoolregistry/internal/guardian"
	"schoolregistry/internal/queue"
)

// CreateGuardian registers a new guardian claim in pending state. Accepts
// JSON or multipart form-data with an optional photo file.
func (h *Handler) CreateGuardian(c *gin.Context) {
	var g guardian.Guardian

	if strings.Contains(c.ContentType(), "multipart/form-data") {
		g.Name = c.PostForm("name")
		g.StudentName = c.PostForm("student_name")
		g.Address = c.PostForm("address")
		g.Relationship = c.PostForm("relationship")
		g.Contact = c.PostForm("contact")
		g.Age, _ = strconv.Atoi(c.PostForm("age"))
		g.TeacherID, _ = strconv.ParseInt(c.PostForm("teacher_id"), 10, 64)

		if file, header, err := c.Request.FormFile("photo"); err == nil {
			defer file.Close()
			if h.media == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
				return
			}
			data, err := io.ReadAll(file)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "read photo failed"})
				return
			}
			result, err := h.media.UploadBytes(data, header.Filename)
			if err != nil {
				log.Printf("guardian photo upload failed: %v", err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "photo upload failed"})
				return
			}
			g.PhotoURL = result.SecureURL
		}
	} else {
		var req struct {
			Name         string `json:"name" binding:"required"`
			Age          int    `json:"age"`
			Address      string `json:"address"`
			Relationship string `json:"relationship"`
			Contact      string `json:"contact"`
			StudentName  string `json:"student_name" binding:"required"`
			TeacherID    int64  `json:"teacher_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		g = guardian.Guardian{
			Name: req.Name, Age: req.Age, Address: req.Address,
			Relationship: req.Relationship, Contact: req.Contact,
			StudentName: req.StudentName, TeacherID: req.TeacherID,
		}
	}

	created, err := h.guardians.Create(c.Request.Context(), g)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListGuardians returns the teacher's guardian claims, optionally filtered
// by status, paginated.
func (h *Handler) ListGuardians(c *gin.Context) {
	teacher, err := h.registry.TeacherForUser(c.Request.Context(), claimsFrom(c).UserID())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher profile not found"})
		return
	}
	limit, offset := parsePage(c)
	guardians, total, err := h.guardians.List(c.Request.Context(), teacher.ID, c.Query("status"), limit, offset)
	if err != nil {
		if errors.Is(err, guardian.ErrBadStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("list guardians failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if guardians == nil {
		guardians = []guardian.Guardian{}
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": guardians})
}

// GuardianDetail returns one guardian claim.
func (h *Handler) GuardianDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	g, err := h.guardians.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, guardian.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "guardian not found"})
			return
		}
		log.Printf("guardian detail failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, g)
}

// PostApproval records an allow/decline action for one guardian, appending
// to the audit trail.
func (h *Handler) PostApproval(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
		Reason string `json:"reason"`
		Source string `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := claimsFrom(c).UserID()
	var actedBy *int64
	if userID != 0 {
		actedBy = &userID
	}
	source := req.Source
	if source == "" {
		source = "admin"
	}

	approval, err := h.guardians.RecordApproval(c.Request.Context(), id, req.Status, actedBy, req.Reason, source)
	if err != nil {
		switch {
		case errors.Is(err, guardian.ErrBadStatus):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, guardian.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "guardian not found"})
		default:
			log.Printf("record approval failed for guardian %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "approval failed"})
		}
		return
	}

	if g, err := h.guardians.Get(c.Request.Context(), id); err == nil {
		h.publish(c.Request.Context(), queue.ApprovalEvent{
			GuardianID:   g.ID,
			GuardianName: g.Name,
			StudentName:  g.StudentName,
			Status:       approval.Status,
			Source:       approval.Source,
		}.Message())
	}

	c.JSON(http.StatusOK, approval)
}

// BulkStatus applies one status to many guardians. pending resets without
// audit rows; allowed/declined append one audit row per guardian.
func (h *Handler) BulkStatus(c *gin.Context) {
	var req struct {
		IDs    []int64 `json:"ids" binding:"required"`
		Status string  `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		updated int
		err     error
	)
	if req.Status == guardian.StatusPending {
		updated, err = h.guardians.BulkReset(c.Request.Context(), req.IDs)
	} else {
		userID := claimsFrom(c).UserID()
		var actedBy *int64
		if userID != 0 {
			actedBy = &userID
		}
		updated, err = h.guardians.BulkSetStatus(c.Request.Context(), req.IDs, req.Status, actedBy)
	}
	if err != nil {
		if errors.Is(err, guardian.ErrBadStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("bulk status failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// GuardianApprovals returns the audit trail for one guardian, newest first.
func (h *Handler) GuardianApprovals(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	trail, err := h.guardians.Trail(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, guardian.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "guardian not found"})
			return
		}
		log.Printf("approval trail failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if trail == nil {
		trail = []guardian.Approval{}
	}
	c.JSON(http.StatusOK, gin.H{"results": trail})
}
