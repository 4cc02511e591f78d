package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"idcard/internal/httpmiddleware"
)

func TestSetupAndAdminRegistration(t *testing.T) {
	env := newEnv(t, 1<<20)

	w := env.json(http.MethodGet, "/api/setup", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"admin_exists":false}`, w.Body.String())

	token := env.adminToken()

	w = env.json(http.MethodGet, "/api/setup", nil, "")
	require.JSONEq(t, `{"admin_exists":true}`, w.Body.String())

	second := map[string]string{"full_name": "Deputy", "email": "deputy@example.com", "password": "pw"}
	w = env.json(http.MethodPost, "/api/admins", second, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "Only admin can create another admin.", errorOf(t, w))

	w = env.json(http.MethodPost, "/api/admins", second, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.json(http.MethodPost, "/api/admins", map[string]string{"email": "not-an-email", "password": "pw"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentJourney(t *testing.T) {
	env := newEnv(t, 1<<20)
	adminToken := env.adminToken()
	id := env.registerStudent("aop/2024/001", "Jane@Example.com")

	session := env.login("student", "jane@example.com", "student-pw")
	token := session.Tokens.AccessToken
	require.Equal(t, id, session.User.ID)
	require.True(t, session.User.HasPassport)

	w := env.json(http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"reg_no":"AOP/2024/001"`)
	require.NotContains(t, w.Body.String(), "password")
	require.NotContains(t, w.Body.String(), "uploads/")

	t.Run("preview is available before approval", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/me/card.png", nil, "", token)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		require.Equal(t, 324, img.Bounds().Dx())
		require.Equal(t, 204, img.Bounds().Dy())
	})

	t.Run("pdf requires approval", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/me/card.pdf", nil, "", token)
		require.Equal(t, http.StatusForbidden, w.Code)
		require.Equal(t, "Not approved yet.", errorOf(t, w))
	})

	w = env.json(http.MethodPost, fmt.Sprintf("/api/admin/students/%d/approval", id), map[string]bool{"approved": true}, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	t.Run("approved student prints", func(t *testing.T) {
		w := env.do(http.MethodGet, "/api/me/card.pdf", nil, "", token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		require.Equal(t, `attachment; filename="AOP-2024-001_ID.pdf"`, w.Header().Get("Content-Disposition"))
		require.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

		require.Eventually(t, func() bool {
			return testutil.ToFloat64(env.metrics.PrintsRecorded) == 1
		}, 2*time.Second, 5*time.Millisecond)
		u, err := env.svc.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, 1, u.PrintCount)
		require.Len(t, env.repo.Prints(), 1)
		require.Equal(t, 1.0, testutil.ToFloat64(env.metrics.CardsRendered.WithLabelValues("pdf")))
	})

	t.Run("new receipt resets approval", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"shot_data": pngDataURL(t)})
		w := env.do(http.MethodPost, "/api/me/receipt", body, ct, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decode[loginResponse](t, w)
		require.False(t, resp.User.Approved)

		w = env.do(http.MethodGet, "/api/me/card.pdf", nil, "", token)
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("profile edit", func(t *testing.T) {
		w := env.json(http.MethodPut, "/api/me", map[string]string{"full_name": "Jane A. Doe", "reg_no": "aop/2024/009", "level": "ND2"}, token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		require.Contains(t, w.Body.String(), `"reg_no":"AOP/2024/009"`)
		require.Contains(t, w.Body.String(), `"full_name":"Jane A. Doe"`)
	})
}

func TestAdminPrintsAnyStudent(t *testing.T) {
	env := newEnv(t, 1<<20)
	adminToken := env.adminToken()
	id := env.registerStudent("ND/1", "a@example.com")

	w := env.do(http.MethodGet, fmt.Sprintf("/api/admin/students/%d/card.pdf", id), nil, "", adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, `attachment; filename="ND-1_ID.pdf"`, w.Header().Get("Content-Disposition"))

	w = env.do(http.MethodGet, "/api/admin/students/999/card.pdf", nil, "", adminToken)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/admin/students/abc/card.pdf", nil, "", adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationErrors(t *testing.T) {
	env := newEnv(t, 1<<20)
	env.registerStudent("R1", "first@example.com")

	sig := filePart{"signature_file", "sig.png", pngBytes(t, 10, 10, color.Black)}
	tests := []struct {
		name   string
		fields map[string]string
		files  []filePart
		status int
		msg    string
	}{
		{
			name:   "missing passport",
			fields: studentFields("R2", "r2@example.com"),
			files:  []filePart{sig},
			status: http.StatusBadRequest,
			msg:    "Passport is required (upload or capture).",
		},
		{
			name:   "missing signature",
			fields: withField(studentFields("R3", "r3@example.com"), "shot_data", pngDataURL(t)),
			status: http.StatusBadRequest,
			msg:    `Signature is required (upload or draw, then click "Use This").`,
		},
		{
			name:   "unsupported file type",
			fields: withField(studentFields("R4", "r4@example.com"), "shot_data", pngDataURL(t)),
			files:  []filePart{{"signature_file", "sig.gif", []byte("GIF89a")}},
			status: http.StatusBadRequest,
			msg:    "Only PNG/JPG allowed",
		},
		{
			name:   "invalid data url",
			fields: withField(studentFields("R5", "r5@example.com"), "shot_data", "data:image/bmp;base64,AAAA"),
			files:  []filePart{sig},
			status: http.StatusBadRequest,
			msg:    "Invalid image data",
		},
		{
			name:   "duplicate reg no",
			fields: withField(studentFields("r1", "other@example.com"), "shot_data", pngDataURL(t)),
			files:  []filePart{sig},
			status: http.StatusConflict,
			msg:    "Email or Reg No already exists.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.fields, tt.files...)
			w := env.do(http.MethodPost, "/api/students/register", body, ct, "")
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.Equal(t, tt.msg, errorOf(t, w))
		})
	}

	// only the first registration's two files remain
	for _, dir := range []string{"uploads", "signatures"} {
		entries, err := os.ReadDir(filepath.Join(env.dir, dir))
		require.NoError(t, err)
		require.Len(t, entries, 1, dir)
	}
}

func withField(fields map[string]string, k, v string) map[string]string {
	fields[k] = v
	return fields
}

func TestUploadTooLarge(t *testing.T) {
	env := newEnv(t, 4<<10)
	fields := studentFields("BIG", "big@example.com")
	body, ct := multipartBody(t, fields, filePart{"passport_file", "p.png", make([]byte, 8<<10)})

	w := env.do(http.MethodPost, "/api/students/register", body, ct, "")
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, httpmiddleware.TooLargeMessage, errorOf(t, w))
}

func TestAdminDashboard(t *testing.T) {
	env := newEnv(t, 1<<20)
	adminToken := env.adminToken()
	jane := env.registerStudent("AOP/2024/001", "jane@example.com")
	env.registerStudent("AOP/2024/002", "john@example.com")

	w := env.json(http.MethodPost, "/api/admin/students", map[string]string{
		"full_name": "Ade Bello", "reg_no": "nd/2023/7", "email": "ade@example.com", "password": "pw",
	}, adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.json(http.MethodPost, fmt.Sprintf("/api/admin/students/%d/approval", jane), map[string]bool{"approved": true}, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.json(http.MethodPost, fmt.Sprintf("/api/admin/students/%d/approval", jane), map[string]string{}, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code, "approved is required")

	type listResponse struct {
		Students []struct {
			FullName string `json:"full_name"`
			RegNo    string `json:"reg_no"`
		} `json:"students"`
		Stats struct {
			Total, Approved, Pending, Prints int
		} `json:"stats"`
	}

	w = env.json(http.MethodGet, "/api/admin/students", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listResponse](t, w)
	require.Len(t, list.Students, 3)
	require.Equal(t, "Ade Bello", list.Students[0].FullName)
	require.Equal(t, 3, list.Stats.Total)
	require.Equal(t, 1, list.Stats.Approved)
	require.Equal(t, 2, list.Stats.Pending)

	w = env.json(http.MethodGet, "/api/admin/students?q=nd/2023", nil, adminToken)
	list = decode[listResponse](t, w)
	require.Len(t, list.Students, 1)
	require.Equal(t, "ND/2023/7", list.Students[0].RegNo)

	w = env.do(http.MethodGet, "/api/admin/export.csv", nil, "", adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "attachment; filename=students.csv", w.Header().Get("Content-Disposition"))
	rows, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "Full Name", rows[0][0])
	require.Equal(t, "Ade Bello", rows[1][0])
}

func TestDeleteUser(t *testing.T) {
	env := newEnv(t, 1<<20)
	adminToken := env.adminToken()
	admin := env.login("admin", "admin@example.com", "admin-pw").User.ID
	id := env.registerStudent("R1", "s@example.com")

	w := env.json(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", admin), nil, adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "You cannot delete your own account here.", errorOf(t, w))

	w = env.json(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", id), nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := os.ReadDir(filepath.Join(env.dir, "uploads"))
	require.NoError(t, err)
	require.Empty(t, entries, "uploads are removed with the account")

	w = env.json(http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", id), nil, adminToken)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthorization(t *testing.T) {
	env := newEnv(t, 1<<20)
	adminToken := env.adminToken()
	a := env.registerStudent("R1", "a@example.com")
	env.registerStudent("R2", "b@example.com")
	tokenA := env.login("student", "a@example.com", "student-pw").Tokens.AccessToken
	tokenB := env.login("student", "b@example.com", "student-pw").Tokens.AccessToken

	w := env.do(http.MethodGet, "/api/me", nil, "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(http.MethodGet, "/api/admin/students", nil, "", tokenA)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(http.MethodGet, "/api/me", nil, "", adminToken)
	require.Equal(t, http.StatusForbidden, w.Code, "admins have no student profile")

	passport := fmt.Sprintf("/api/files/passport/%d", a)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, passport, nil, "", tokenA).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, passport, nil, "", adminToken).Code)
	require.Equal(t, http.StatusForbidden, env.do(http.MethodGet, passport, nil, "", tokenB).Code)
	require.Equal(t, http.StatusNotFound, env.do(http.MethodGet, fmt.Sprintf("/api/files/receipt/%d", a), nil, "", tokenA).Code)

	w = env.json(http.MethodPost, "/api/auth/student/login", map[string]string{"email": "a@example.com", "password": "wrong"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Invalid credentials", errorOf(t, w))
	w = env.json(http.MethodPost, "/api/auth/admin/login", map[string]string{"email": "a@example.com", "password": "student-pw"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	env := newEnv(t, 1<<20)
	env.registerStudent("R1", "a@example.com")
	session := env.login("student", "a@example.com", "student-pw")

	w := env.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": session.Tokens.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := decode[loginResponse](t, w).Tokens
	require.NotEmpty(t, rotated.AccessToken)

	w = env.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": session.Tokens.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, "old refresh token is consumed")

	w = env.json(http.MethodPost, "/api/auth/logout", map[string]string{"refresh_token": rotated.RefreshToken}, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.json(http.MethodPost, "/api/auth/refresh", map[string]string{"refresh_token": rotated.RefreshToken}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateUploadsReplacesFiles(t *testing.T) {
	env := newEnv(t, 1<<20)
	env.registerStudent("R1", "a@example.com")
	token := env.login("student", "a@example.com", "student-pw").Tokens.AccessToken

	body, ct := multipartBody(t, nil, filePart{"passport_file", "new.jpg", []byte("jpeg")})
	w := env.do(http.MethodPost, "/api/me/uploads", body, ct, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries, err := os.ReadDir(filepath.Join(env.dir, "uploads"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".jpg", filepath.Ext(entries[0].Name()))

	sigs, err := os.ReadDir(filepath.Join(env.dir, "signatures"))
	require.NoError(t, err)
	require.Len(t, sigs, 1, "omitted signature is kept")

	// corrupt passport still renders: the photo box falls back to the placeholder
	w = env.do(http.MethodGet, "/api/me/card.png", nil, "", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AssetsSkipped.WithLabelValues("photo")))
}

func TestUploadReceiptReplacesFile(t *testing.T) {
	env := newEnv(t, 1<<20)
	id := env.registerStudent("R1", "a@example.com")
	token := env.login("student", "a@example.com", "student-pw").Tokens.AccessToken
	dir := filepath.Join(env.dir, "receipts")

	body, ct := multipartBody(t, nil, filePart{"receipt_file", "first.png", pngBytes(t, 4, 4, color.White)})
	w := env.do(http.MethodPost, "/api/me/receipt", body, ct, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first, err := env.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.FileExists(t, first.ReceiptPath)

	body, ct = multipartBody(t, map[string]string{"shot_data": pngDataURL(t)})
	w = env.do(http.MethodPost, "/api/me/receipt", body, ct, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	second, err := env.svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotEqual(t, first.ReceiptPath, second.ReceiptPath)
	require.NoFileExists(t, first.ReceiptPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(second.ReceiptPath), entries[0].Name())
}

func TestHealthzLogoAndMetrics(t *testing.T) {
	env := newEnv(t, 1<<20)

	w := env.do(http.MethodGet, "/healthz", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok","db":true}`, w.Body.String())

	env.healthy = false
	w = env.do(http.MethodGet, "/healthz", nil, "", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/logo", nil, "", "").Code)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "logo.png"), pngBytes(t, 4, 4, color.White), 0o644))
	w = env.do(http.MethodGet, "/logo", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = env.do(http.MethodGet, "/metrics", nil, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "idcard_prints_recorded_total")
}
