package httpapi

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"schoolregistry/internal/registry"
)

// ListStudents returns the authenticated teacher's students, paginated.
func (h *Handler) ListStudents(c *gin.Context) {
	teacher, err := h.registry.TeacherForUser(c.Request.Context(), claimsFrom(c).UserID())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher profile not found"})
		return
	}
	limit, offset := parsePage(c)
	students, total, err := h.registry.Students(c.Request.Context(), teacher.ID, limit, offset)
	if err != nil {
		log.Printf("list students failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if students == nil {
		students = []registry.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": students})
}

// StudentDetail returns one student with its parent set.
func (h *Handler) StudentDetail(c *gin.Context) {
	teacher, err := h.registry.TeacherForUser(c.Request.Context(), claimsFrom(c).UserID())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher profile not found"})
		return
	}
	student, parents, err := h.registry.StudentDetail(c.Request.Context(), c.Param("lrn"), teacher.ID)
	if err != nil {
		if errors.Is(err, registry.ErrStudentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		log.Printf("student detail failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if parents == nil {
		parents = []registry.ParentGuardian{}
	}
	c.JSON(http.StatusOK, gin.H{"student": student, "parents_guardians": parents})
}

// ListParents returns the teacher's parent records, optionally filtered by
// LRN, paginated.
func (h *Handler) ListParents(c *gin.Context) {
	teacher, err := h.registry.TeacherForUser(c.Request.Context(), claimsFrom(c).UserID())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "teacher profile not found"})
		return
	}
	limit, offset := parsePage(c)
	parents, total, err := h.registry.Parents(c.Request.Context(), teacher.ID, c.Query("lrn"), limit, offset)
	if err != nil {
		log.Printf("list parents failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if parents == nil {
		parents = []registry.ParentGuardian{}
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": parents})
}

// ParentLogin authenticates a parent record by username and password.
func (h *Handler) ParentLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	parent, err := h.registry.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credentials"})
			return
		}
		log.Printf("parent login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"parent": parent})
}

// GetParent returns a single parent record.
func (h *Handler) GetParent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	parent, err := h.registry.Parent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrParentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Parent not found"})
			return
		}
		log.Printf("get parent failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, parent)
}

// PatchParent partially updates a parent record. A password change requires
// the matching current password. Avatar uploads arrive as multipart files.
func (h *Handler) PatchParent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var upd registry.ParentUpdate
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		upd = h.parentUpdateFromForm(c)
		if c.IsAborted() {
			return
		}
	} else {
		var req struct {
			Name            *string `json:"name"`
			Username        *string `json:"username"`
			ContactNumber   *string `json:"contact_number"`
			Address         *string `json:"address"`
			Email           *string `json:"email"`
			Password        *string `json:"password"`
			CurrentPassword string  `json:"current_password"`
			AvatarBase64    string  `json:"avatar_base64"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		upd = registry.ParentUpdate{
			Name:            req.Name,
			Username:        req.Username,
			ContactNumber:   req.ContactNumber,
			Address:         req.Address,
			Email:           req.Email,
			NewPassword:     req.Password,
			CurrentPassword: req.CurrentPassword,
		}
		// The mobile app sends avatars as base64 data URLs.
		if req.AvatarBase64 != "" {
			if h.media == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
				return
			}
			result, err := h.media.UploadBase64(req.AvatarBase64)
			if err != nil {
				log.Printf("avatar upload failed: %v", err)
				c.JSON(http.StatusBadGateway, gin.H{"error": "avatar upload failed"})
				return
			}
			upd.AvatarURL = &result.SecureURL
		}
	}

	if upd.NewPassword != nil && upd.CurrentPassword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current_password is required to change password"})
		return
	}

	parent, err := h.registry.UpdateParent(c.Request.Context(), id, upd)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrParentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Parent not found"})
		case errors.Is(err, registry.ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		default:
			log.Printf("patch parent %d failed: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, parent)
}

// parentUpdateFromForm reads a multipart patch, uploading the avatar file
// when one is supplied.
func (h *Handler) parentUpdateFromForm(c *gin.Context) registry.ParentUpdate {
	var upd registry.ParentUpdate
	form := func(key string) *string {
		if v, ok := c.GetPostForm(key); ok {
			return &v
		}
		return nil
	}
	upd.Name = form("name")
	upd.Username = form("username")
	upd.ContactNumber = form("contact_number")
	upd.Address = form("address")
	upd.Email = form("email")
	upd.NewPassword = form("password")
	if v, ok := c.GetPostForm("current_password"); ok {
		upd.CurrentPassword = v
	}

	file, header, err := c.Request.FormFile("avatar")
	if err != nil {
		return upd
	}
	defer file.Close()

	if h.media == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return upd
	}
	data, err := io.ReadAll(file)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "read avatar failed"})
		return upd
	}
	result, err := h.media.UploadBytes(data, header.Filename)
	if err != nil {
		log.Printf("avatar upload failed: %v", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "avatar upload failed"})
		return upd
	}
	upd.AvatarURL = &result.SecureURL
	return upd
}

// ListNotifications returns a parent's notifications, newest first.
func (h *Handler) ListNotifications(c *gin.Context) {
	parentID, err := strconv.ParseInt(c.Query("parent_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parent_id is required"})
		return
	}
	limit, _ := parsePage(c)
	notes, err := h.notes.ListNotifications(c.Request.Context(), parentID, limit)
	if err != nil {
		log.Printf("list notifications failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if notes == nil {
		notes = []registry.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"results": notes})
}
