package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"idcard/internal/card"
	"idcard/internal/printlog"
)

var _ card.Observer = (*Metrics)(nil)

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AssetSkipped("photo")
	m.AssetSkipped("photo")
	m.AssetSkipped("logo")
	m.ObserveRender("pdf", 40*time.Millisecond)
	m.PrintRecorded(printlog.Event{UserID: 1})

	require.Equal(t, 2.0, testutil.ToFloat64(m.AssetsSkipped.WithLabelValues("photo")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AssetsSkipped.WithLabelValues("logo")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CardsRendered.WithLabelValues("pdf")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PrintsRecorded))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP idcard_prints_recorded_total Card prints written to the print log.
# TYPE idcard_prints_recorded_total counter
idcard_prints_recorded_total 1
`), "idcard_prints_recorded_total")
	require.NoError(t, err)
}

func TestEngineReportsSkippedAssets(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	engine := card.NewEngine(card.FallbackFontSet(), card.Institution{Name: "X"}, card.WithObserver(m))
	_, err := engine.Compose(&card.Student{FullName: "Jane"})
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.AssetsSkipped.WithLabelValues("photo")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AssetsSkipped.WithLabelValues("signature")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AssetsSkipped.WithLabelValues("logo")))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRender("png", time.Millisecond)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `idcard_cards_rendered_total{format="png"} 1`)
}
