package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"idcard/internal/assets"
	"idcard/internal/auth"
	"idcard/internal/card"
	"idcard/internal/httpmiddleware"
	"idcard/internal/metrics"
	"idcard/internal/printlog"
	"idcard/internal/student"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators a Handler needs.
type Deps struct {
	Students *student.Service
	Tokens   *auth.Manager
	Uploads  *assets.Store
	Engine   *card.Engine
	Prints   *printlog.Publisher
	Metrics  *metrics.Metrics
	LogoPath string
	Health   map[string]HealthCheck
	Log      logrus.FieldLogger
}

// Handler serves the HTTP API. One method per route.
type Handler struct {
	students *student.Service
	tokens   *auth.Manager
	uploads  *assets.Store
	engine   *card.Engine
	prints   *printlog.Publisher
	metrics  *metrics.Metrics
	logoPath string
	health   map[string]HealthCheck
	log      logrus.FieldLogger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		students: d.Students,
		tokens:   d.Tokens,
		uploads:  d.Uploads,
		engine:   d.Engine,
		prints:   d.Prints,
		metrics:  d.Metrics,
		logoPath: d.LogoPath,
		health:   d.Health,
		log:      log,
	}
}

// userView is a user as returned to clients: no hashes or server paths.
type userView struct {
	student.User
	HasPassport  bool `json:"has_passport"`
	HasSignature bool `json:"has_signature"`
	HasReceipt   bool `json:"has_receipt"`
}

func view(u student.User) userView {
	return userView{User: u, HasPassport: u.HasPassport(), HasSignature: u.HasSignature(), HasReceipt: u.HasReceipt()}
}

func views(users []student.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, view(u))
	}
	return out
}

// fail writes the HTTP response for err.
func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case httpmiddleware.IsTooLarge(err):
		status, msg = http.StatusRequestEntityTooLarge, httpmiddleware.TooLargeMessage
	case errors.Is(err, student.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, student.ErrDuplicate):
		status, msg = http.StatusConflict, student.ErrDuplicate.Error()
	case errors.Is(err, student.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		status, msg = http.StatusUnauthorized, "invalid token"
	case errors.Is(err, student.ErrNotApproved), errors.Is(err, student.ErrAdminExists):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, student.ErrSelfDelete),
		errors.Is(err, student.ErrPassportRequired),
		errors.Is(err, student.ErrSignatureRequired),
		errors.Is(err, student.ErrInvalidInput),
		errors.Is(err, assets.ErrUnsupportedType),
		errors.Is(err, assets.ErrInvalidData):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, card.ErrQREncode):
		status, msg = http.StatusUnprocessableEntity, "Card details are too long to fit the QR code."
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	if httpmiddleware.IsTooLarge(err) {
		h.fail(c, err)
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// caller returns the authenticated user id and role.
func caller(c *gin.Context) (int64, string, bool) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return 0, "", false
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, "", false
	}
	return id, claims.Role, true
}

func (h *Handler) me(c *gin.Context) (int64, bool) {
	id, _, ok := caller(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
	return id, ok
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// parseForm reads a multipart or urlencoded body so size errors surface
// before binding.
func parseForm(c *gin.Context) error {
	err := c.Request.ParseMultipartForm(8 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		return c.Request.ParseForm()
	}
	return err
}

func formFile(c *gin.Context, name string) *multipart.FileHeader {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil
	}
	return fh
}

// saveUpload stores the file field or data URL field of one kind.
func (h *Handler) saveUpload(c *gin.Context, kind assets.Kind, fileField, dataField string) (string, error) {
	return h.uploads.Save(kind, formFile(c, fileField), c.PostForm(dataField))
}

// discard removes files written for a request that then failed.
func (h *Handler) discard(paths ...string) {
	for _, p := range paths {
		if err := h.uploads.Remove(p); err != nil {
			h.log.WithError(err).WithField("path", p).Warn("remove upload failed")
		}
	}
}
