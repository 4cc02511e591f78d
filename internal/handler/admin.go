package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"idcard/internal/student"
)

// ListStudents returns students (newest first) and dashboard stats.
func (h *Handler) ListStudents(c *gin.Context) {
	users, stats, err := h.students.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": views(users), "stats": stats})
}

type addStudentRequest struct {
	student.Profile
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AddStudent creates a student account without uploads.
func (h *Handler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	u, err := h.students.AddStudent(c.Request.Context(), student.Registration{
		Profile:  req.Profile,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": view(u), "message": "Student added."})
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// SetApproval approves or un-approves a student.
func (h *Handler) SetApproval(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	u, err := h.students.SetApproval(c.Request.Context(), id, *req.Approved)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": view(u), "message": "Status updated."})
}

// DeleteUser removes an account other than the caller's, along with its
// uploads.
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := h.me(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.students.Delete(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.discard(u.PassportPath, u.SignaturePath, u.ReceiptPath)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted."})
}

// ExportCSV downloads every student as CSV.
func (h *Handler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.students.ExportCSV(c.Request.Context(), &buf); err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=students.csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
