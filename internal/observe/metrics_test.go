package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	mp := sdkmetric.NewMeterProvider()
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	if m.STTDuration == nil || m.TTSDuration == nil || m.RoundDuration == nil {
		t.Fatalf("NewMetrics() returned nil histogram instruments")
	}
	if m.Utterances == nil || m.Rounds == nil || m.RoundTimeouts == nil ||
		m.FramesDropped == nil || m.ProviderErrors == nil {
		t.Fatalf("NewMetrics() returned nil counter instruments")
	}
}

func TestRecordSTTCountsErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordSTT(ctx, 120*time.Millisecond, nil)
	m.RecordSTT(ctx, 80*time.Millisecond, errors.New("backend down"))
	m.RecordTTS(ctx, 40*time.Millisecond, nil)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			found[met.Name] = true
		}
	}
	for _, name := range []string{"quorum.stt.duration", "quorum.tts.duration", "quorum.provider.errors"} {
		if !found[name] {
			t.Fatalf("metric %q not collected; got %v", name, found)
		}
	}
}
