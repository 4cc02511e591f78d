package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"idcard/internal/assets"
	"idcard/internal/auth"
	"idcard/internal/student"
)

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Setup tells clients whether the first admin still has to be created.
func (h *Handler) Setup(c *gin.Context) {
	has, err := h.students.HasAdmin(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin_exists": has})
}

// StudentLogin exchanges student credentials for a token pair.
func (h *Handler) StudentLogin(c *gin.Context) { h.login(c, student.RoleStudent) }

// AdminLogin exchanges admin credentials for a token pair.
func (h *Handler) AdminLogin(c *gin.Context) { h.login(c, student.RoleAdmin) }

func (h *Handler) login(c *gin.Context, role string) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	u, err := h.students.Authenticate(c.Request.Context(), role, req.Email, req.Password)
	if err != nil {
		h.log.WithField("role", role).Info("login rejected")
		h.fail(c, err)
		return
	}
	tokens, err := h.tokens.Issue(c.Request.Context(), u.ID, u.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "user": view(u)})
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	tokens, _, err := h.tokens.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout revokes a refresh token.
func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	if err := h.tokens.Revoke(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type registerStudentRequest struct {
	student.Profile
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

// RegisterStudent creates a student from a multipart form carrying the
// identity fields, a passport photo and a signature.
func (h *Handler) RegisterStudent(c *gin.Context) {
	if err := parseForm(c); err != nil {
		h.badRequest(c, err)
		return
	}
	var req registerStudentRequest
	if err := c.ShouldBind(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	sigPath, err := h.saveUpload(c, assets.Signature, "signature_file", "signature_data")
	if err != nil {
		h.fail(c, err)
		return
	}
	passPath, err := h.saveUpload(c, assets.Passport, "passport_file", "shot_data")
	if err != nil {
		h.discard(sigPath)
		h.fail(c, err)
		return
	}

	u, err := h.students.RegisterStudent(c.Request.Context(), student.Registration{
		Profile:       req.Profile,
		Email:         req.Email,
		Password:      req.Password,
		PassportPath:  passPath,
		SignaturePath: sigPath,
	})
	if err != nil {
		h.discard(sigPath, passPath)
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": view(u), "message": "Account created. Please login."})
}

type registerAdminRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterAdmin creates an admin. Anyone may create the first one.
func (h *Handler) RegisterAdmin(c *gin.Context) {
	var req registerAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	_, role, _ := caller(c)
	u, err := h.students.RegisterAdmin(c.Request.Context(), req.FullName, req.Email, req.Password, role == auth.RoleAdmin)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": view(u)})
}
