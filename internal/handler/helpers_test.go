package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"idcard/internal/assets"
	"idcard/internal/auth"
	"idcard/internal/card"
	"idcard/internal/metrics"
	"idcard/internal/printlog"
	"idcard/internal/queue"
	"idcard/internal/student"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	t       *testing.T
	router  *gin.Engine
	repo    *student.MemoryRepository
	svc     *student.Service
	metrics *metrics.Metrics
	dir     string
	healthy bool
}

func newEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := student.NewMemoryRepository()
	svc := student.NewService(repo, log)
	tokens := auth.NewManager("idcard-test", "test-key", 30*time.Minute, time.Hour, auth.NewMemoryTokenStore())
	uploads, err := assets.NewStore(filepath.Join(dir, "uploads"), filepath.Join(dir, "signatures"), filepath.Join(dir, "receipts"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	engine := card.NewEngine(card.FallbackFontSet(), card.Institution{Name: "Test Polytechnic", CardLabel: "STUDENT IDENTITY CARD"},
		card.WithLogger(log), card.WithObserver(m))

	q := queue.NewInMemory(16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go printlog.NewConsumer(q, svc, log, m.PrintRecorded).Run(ctx)

	env := &testEnv{t: t, repo: repo, svc: svc, metrics: m, dir: dir, healthy: true}
	h := New(Deps{
		Students: svc,
		Tokens:   tokens,
		Uploads:  uploads,
		Engine:   engine,
		Prints:   printlog.NewPublisher(q, svc, log, m.PrintRecorded),
		Metrics:  m,
		LogoPath: filepath.Join(dir, "logo.png"),
		Health:   map[string]HealthCheck{"db": func(context.Context) bool { return env.healthy }},
		Log:      log,
	})
	env.router = NewRouter(h, RouterConfig{
		CORSOrigins:     []string{"*"},
		RateLimitPerMin: 1000,
		MaxUploadBytes:  maxUpload,
		MetricsHandler:  metrics.Handler(reg),
	})
	return env
}

func (e *testEnv) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) json(method, path string, v any, token string) *httptest.ResponseRecorder {
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		require.NoError(e.t, err)
		body = bytes.NewReader(data)
	}
	return e.do(method, path, body, "application/json", token)
}

type loginResponse struct {
	Tokens auth.TokenPair `json:"tokens"`
	User   struct {
		ID          int64 `json:"id"`
		HasPassport bool  `json:"has_passport"`
		Approved    bool  `json:"is_approved"`
		PrintCount  int   `json:"id_print_count"`
	} `json:"user"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func (e *testEnv) login(role, email, password string) loginResponse {
	e.t.Helper()
	w := e.json(http.MethodPost, "/api/auth/"+role+"/login", map[string]string{"email": email, "password": password}, "")
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return decode[loginResponse](e.t, w)
}

// adminToken creates the first admin and logs in.
func (e *testEnv) adminToken() string {
	e.t.Helper()
	w := e.json(http.MethodPost, "/api/admins", map[string]string{
		"full_name": "Registrar", "email": "admin@example.com", "password": "admin-pw",
	}, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return e.login("admin", "admin@example.com", "admin-pw").Tokens.AccessToken
}

type filePart struct {
	field, filename string
	data            []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func pngDataURL(t *testing.T) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 30, 40, color.NRGBA{200, 10, 10, 255}))
}

func studentFields(regNo, email string) map[string]string {
	return map[string]string{
		"full_name":   "Jane Doe",
		"sex":         "F",
		"dob":         "2001-05-10",
		"blood_group": "O+",
		"course":      "Computer Science",
		"reg_no":      regNo,
		"level":       "ND1",
		"email":       email,
		"password":    "student-pw",
	}
}

// registerStudent self-registers a student with a captured passport and an
// uploaded signature and returns their id.
func (e *testEnv) registerStudent(regNo, email string) int64 {
	e.t.Helper()
	fields := studentFields(regNo, email)
	fields["shot_data"] = pngDataURL(e.t)
	body, ct := multipartBody(e.t, fields, filePart{"signature_file", "sig.png", pngBytes(e.t, 60, 20, color.Black)})
	w := e.do(http.MethodPost, "/api/students/register", body, ct, "")
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[loginResponse](e.t, w).User.ID
}
