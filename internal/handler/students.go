package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"idcard/internal/assets"
	"idcard/internal/auth"
	"idcard/internal/student"
)

// Me returns the caller's account.
func (h *Handler) Me(c *gin.Context) {
	id, ok := h.me(c)
	if !ok {
		return
	}
	u, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": view(u)})
}

// UpdateMe replaces the caller's identity fields.
func (h *Handler) UpdateMe(c *gin.Context) {
	id, ok := h.me(c)
	if !ok {
		return
	}
	var p student.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		h.badRequest(c, err)
		return
	}
	u, err := h.students.UpdateProfile(c.Request.Context(), id, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": view(u), "message": "Profile updated."})
}

// UpdateUploads replaces the passport and/or signature.
func (h *Handler) UpdateUploads(c *gin.Context) {
	id, ok := h.me(c)
	if !ok {
		return
	}
	if err := parseForm(c); err != nil {
		h.badRequest(c, err)
		return
	}
	passPath, err := h.saveUpload(c, assets.Passport, "passport_file", "shot_data")
	if err != nil {
		h.fail(c, err)
		return
	}
	sigPath, err := h.saveUpload(c, assets.Signature, "signature_file", "signature_data")
	if err != nil {
		h.discard(passPath)
		h.fail(c, err)
		return
	}

	before, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.discard(passPath, sigPath)
		h.fail(c, err)
		return
	}
	u, err := h.students.UpdateAssets(c.Request.Context(), id, passPath, sigPath)
	if err != nil {
		h.discard(passPath, sigPath)
		h.fail(c, err)
		return
	}
	if passPath != "" {
		h.discard(before.PassportPath)
	}
	if sigPath != "" {
		h.discard(before.SignaturePath)
	}
	c.JSON(http.StatusOK, gin.H{"user": view(u), "message": "Uploads updated."})
}

// UploadReceipt stores a payment receipt and resets approval.
func (h *Handler) UploadReceipt(c *gin.Context) {
	id, ok := h.me(c)
	if !ok {
		return
	}
	if err := parseForm(c); err != nil {
		h.badRequest(c, err)
		return
	}
	path, err := h.saveUpload(c, assets.Receipt, "receipt_file", "shot_data")
	if err != nil {
		h.fail(c, err)
		return
	}
	before, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.discard(path)
		h.fail(c, err)
		return
	}
	u, err := h.students.UploadReceipt(c.Request.Context(), id, path)
	if err != nil {
		h.discard(path)
		h.fail(c, err)
		return
	}
	if before.ReceiptPath != path {
		h.discard(before.ReceiptPath)
	}
	c.JSON(http.StatusOK, gin.H{"user": view(u), "message": "Receipt uploaded. Please wait for admin approval."})
}

// PassportFile serves a passport photo to its owner or an admin.
func (h *Handler) PassportFile(c *gin.Context) {
	h.serveUserFile(c, func(u student.User) string { return u.PassportPath })
}

// ReceiptFile serves a receipt to its owner or an admin.
func (h *Handler) ReceiptFile(c *gin.Context) {
	h.serveUserFile(c, func(u student.User) string { return u.ReceiptPath })
}

func (h *Handler) serveUserFile(c *gin.Context, pick func(student.User) string) {
	viewer, role, ok := caller(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if viewer != id && role != auth.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied."})
		return
	}
	u, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	path := pick(u)
	if !fileExists(path) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(path)
}

// Logo serves the institution logo.
func (h *Handler) Logo(c *gin.Context) {
	if !fileExists(h.logoPath) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.File(h.logoPath)
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
