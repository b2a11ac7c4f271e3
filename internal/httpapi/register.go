package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"schoolregistry/internal/queue"
	"schoolregistry/internal/registry"
)

type registrationRequest struct {
	LRN         string `json:"lrn" binding:"required"`
	StudentName string `json:"student_name" binding:"required"`
	Gender      string `json:"gender"`
	GradeLevel  string `json:"grade_level"`
	Section     string `json:"section"`
	Address     string `json:"address"`
	TeacherID   int64  `json:"teacher_id"`

	Parent1Name     string `json:"parent1_name"`
	Parent1Contact  string `json:"parent1_contact"`
	Parent1Email    string `json:"parent1_email"`
	Parent1Username string `json:"parent1_username"`
	Parent1Password string `json:"parent1_password"`

	Parent2Name     string `json:"parent2_name"`
	Parent2Contact  string `json:"parent2_contact"`
	Parent2Email    string `json:"parent2_email"`
	Parent2Username string `json:"parent2_username"`
	Parent2Password string `json:"parent2_password"`

	GuardianName     string `json:"guardian_name"`
	GuardianContact  string `json:"guardian_contact"`
	GuardianEmail    string `json:"guardian_email"`
	GuardianUsername string `json:"guardian_username"`
	GuardianPassword string `json:"guardian_password"`
}

func (r registrationRequest) toInput() registry.RegistrationInput {
	return registry.RegistrationInput{
		LRN:         r.LRN,
		StudentName: r.StudentName,
		Gender:      r.Gender,
		GradeLevel:  r.GradeLevel,
		Section:     r.Section,
		Address:     r.Address,
		TeacherID:   r.TeacherID,
		Parent1: registry.ParentInput{
			Name: r.Parent1Name, Contact: r.Parent1Contact, Email: r.Parent1Email,
			Username: r.Parent1Username, Password: r.Parent1Password,
		},
		Parent2: registry.ParentInput{
			Name: r.Parent2Name, Contact: r.Parent2Contact, Email: r.Parent2Email,
			Username: r.Parent2Username, Password: r.Parent2Password,
		},
		Guardian: registry.ParentInput{
			Name: r.GuardianName, Contact: r.GuardianContact, Email: r.GuardianEmail,
			Username: r.GuardianUsername, Password: r.GuardianPassword,
		},
	}
}

// Register handles the authenticated registration endpoint. teacher_id is
// optional; the authenticated teacher is used when it is omitted.
func (h *Handler) Register(c *gin.Context) {
	h.handleRegistration(c, claimsFrom(c).UserID())
}

// PublicRegister handles the public registration endpoint, which requires a
// teacher_id in the payload.
func (h *Handler) PublicRegister(c *gin.Context) {
	h.handleRegistration(c, 0)
}

func (h *Handler) handleRegistration(c *gin.Context, actingUserID int64) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Parent1Name == "" && req.Parent2Name == "" && req.GuardianName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one parent or guardian name is required"})
		return
	}
	if actingUserID == 0 && req.TeacherID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "teacher_id is required for public registration"})
		return
	}

	result, err := h.registry.Register(c.Request.Context(), req.toInput(), actingUserID)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrTeacherRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, registry.ErrTeacherNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			log.Printf("registration failed for lrn %s: %v", req.LRN, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	status := "updated"
	code := http.StatusOK
	if result.Created {
		status = "created"
		code = http.StatusCreated
	}

	parentIDs := make([]int64, 0, len(result.Parents))
	for _, p := range result.Parents {
		parentIDs = append(parentIDs, p.ID)
	}
	h.publish(c.Request.Context(), queue.RegistrationEvent{
		LRN:         result.Student.LRN,
		StudentName: result.Student.Name,
		Status:      status,
		ParentIDs:   parentIDs,
	}.Message())

	c.JSON(code, gin.H{
		"message":           "Registration successful!",
		"status":            status,
		"student":           result.Student,
		"parents_guardians": result.Parents,
	})
}
