package handler

import (
	"bytes"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"idcard/internal/card"
	"idcard/internal/student"
)

// MyCardPreview returns the caller's card as a small PNG, whatever the
// approval state.
func (h *Handler) MyCardPreview(c *gin.Context) {
	id, ok := h.me(c)
	if !ok {
		return
	}
	u, err := h.students.Printable(c.Request.Context(), id, false)
	if err != nil {
		h.fail(c, err)
		return
	}

	start := time.Now()
	img, err := h.engine.Compose(u.Card())
	if err != nil {
		h.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := card.EncodePNG(&buf, card.Preview(img)); err != nil {
		h.fail(c, err)
		return
	}
	h.observe("png", start)

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// MyCardPDF prints the caller's card. Only approved students may print.
func (h *Handler) MyCardPDF(c *gin.Context) {
	id, ok := h.me(c)
	if !ok {
		return
	}
	h.printCard(c, id, true)
}

// StudentCardPDF prints any student's card for an admin.
func (h *Handler) StudentCardPDF(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	h.printCard(c, id, false)
}

func (h *Handler) printCard(c *gin.Context, id int64, requireApproval bool) {
	ctx := c.Request.Context()
	u, err := h.students.Printable(ctx, id, requireApproval)
	if err != nil {
		h.fail(c, err)
		return
	}

	start := time.Now()
	img, err := h.engine.Compose(u.Card())
	if err != nil {
		h.fail(c, err)
		return
	}
	pdf, err := renderPDF(img, u)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.observe("pdf", start)

	if err := h.prints.Printed(ctx, u.ID); err != nil {
		h.fail(c, err)
		return
	}
	h.log.WithField("user_id", u.ID).Info("card printed")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", card.PDFFilename(u.RegNo)))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func renderPDF(img image.Image, u student.User) ([]byte, error) {
	var buf bytes.Buffer
	if err := card.WritePDF(&buf, img, u.FullName+" "+u.RegNo); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (h *Handler) observe(format string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveRender(format, time.Since(start))
	}
}
