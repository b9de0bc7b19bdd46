package observe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if m.Detections == nil || m.ClipDecisions == nil || m.DroppedFrames == nil {
		t.Error("counter instruments not initialised")
	}
	if m.QualityScore == nil || m.DetectionConfidence == nil || m.HTTPRequestDuration == nil {
		t.Error("histogram instruments not initialised")
	}
	if m.ActiveDetectors == nil {
		t.Error("gauge instrument not initialised")
	}

	// Recording helpers must not panic.
	ctx := context.Background()
	m.RecordDetection(ctx, "basic_emotion", "laughter", 0.8)
	m.RecordClipDecision(ctx, "basic_emotion", "ok", 0.9)
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()

	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statsz", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d (middleware must pass the response through)", rec.Code, http.StatusTeapot)
	}
}

func TestAttr(t *testing.T) {
	t.Parallel()

	kv := Attr("detector", "speech")
	if string(kv.Key) != "detector" || kv.Value.AsString() != "speech" {
		t.Errorf("Attr = %v, want detector=speech", kv)
	}
}
