package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/irfndi/sepa-screener/internal/models"
	"github.com/irfndi/sepa-screener/internal/utils"
)

func TestNormalizeOTLPEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		hostport string
		urlPath  string
		insecure bool
		resolved string
		wantErr  bool
	}{
		{"default localhost", "http://localhost:4318", "localhost:4318", "/v1/traces", true, "http://localhost:4318/v1/traces", false},
		{"trailing slash base", "http://collector:4318/", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"already traces path", "http://collector:4318/v1/traces", "collector:4318", "/v1/traces", true, "http://collector:4318/v1/traces", false},
		{"custom base path", "https://otlp.example.com:4318/otlp", "otlp.example.com:4318", "/otlp/v1/traces", false, "https://otlp.example.com:4318/otlp/v1/traces", false},
		{"invalid no scheme", "collector:4318", "", "", true, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hp, path, insecure, resolved, err := normalizeOTLPEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hostport, hp)
			assert.Equal(t, tt.urlPath, path)
			assert.Equal(t, tt.insecure, insecure)
			assert.Equal(t, tt.resolved, resolved)
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterOTLP, config.Exporter)
	assert.Equal(t, "http://localhost:4318", config.OTLPEndpoint)
	assert.Equal(t, ServiceName, config.ServiceName)
	assert.Equal(t, ServiceVersion, config.ServiceVersion)
	assert.Equal(t, 1.0, config.SampleRate)
	assert.Equal(t, 5*time.Second, config.BatchTimeout)
	assert.Equal(t, 512, config.MaxExportBatch)
	assert.Equal(t, 2048, config.MaxQueueSize)
}

func TestTracerGetters(t *testing.T) {
	assert.NotNil(t, GetTracer("test-tracer"))
	assert.NotNil(t, GetDatabaseTracer())
	assert.NotNil(t, GetAnalysisTracer())
	assert.NotNil(t, GetCacheTracer())
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := StartSpan(context.Background(), tp.Tracer("test"), "test-span")
	SetSpanAttributes(span, StringAttribute("test-key", "test-value"), Int64Attribute("test-int", 42))
	RecordError(span, nil)
	RecordError(span, assert.AnError)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "test-span", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("test-key", "test-value"))
	assert.Len(t, ended[0].Events(), 1)
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, "value", StringAttribute("key", "value").Value.AsString())
	assert.Equal(t, int64(42), Int64Attribute("key", 42).Value.AsInt64())
	assert.True(t, BoolAttribute("key", true).Value.AsBool())
}

func TestLogger(t *testing.T) {
	assert.Equal(t, slog.Default(), Logger())
}

func TestInitTelemetryDisabled(t *testing.T) {
	assert.NoError(t, InitTelemetry(TelemetryConfig{Enabled: false}))
	assert.Nil(t, GetLogger())
	assert.NoError(t, Shutdown())
}

func TestInitTelemetry_StdoutExporter(t *testing.T) {
	defer otel.SetTracerProvider(otel.GetTracerProvider())

	var buf bytes.Buffer
	err := InitTelemetry(TelemetryConfig{
		Enabled:     true,
		Exporter:    ExporterStdout,
		ServiceName: "test-service",
		Writer:      &buf,
	})
	require.NoError(t, err)
	assert.NotNil(t, GetLogger())

	_, span := GetAnalysisTracer().Start(context.Background(), "exported")
	span.End()

	require.NoError(t, Shutdown())
	assert.Contains(t, buf.String(), "exported")
	assert.NoError(t, Shutdown())
}

func TestInitTelemetryWithProviderDisabled(t *testing.T) {
	provider, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: false}, slog.Default())
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.logger)
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitTelemetryWithProviderInvalidEndpoint(t *testing.T) {
	config := &TelemetryConfig{
		Enabled:      true,
		Exporter:     ExporterOTLP,
		OTLPEndpoint: "invalid-url://[invalid",
	}

	provider, err := InitTelemetryWithProvider(context.Background(), config, slog.Default())
	assert.Error(t, err)
	assert.Nil(t, provider)
	assert.Contains(t, err.Error(), "invalid OTLPEndpoint")
}

func TestInitTelemetryWithProviderUnknownExporter(t *testing.T) {
	_, err := InitTelemetryWithProvider(context.Background(), &TelemetryConfig{Enabled: true, Exporter: "zipkin"}, nil)
	assert.ErrorContains(t, err, "unknown trace exporter")
}

func TestAnalysisTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	at := &AnalysisTracer{tracer: tp.Tracer("test")}
	require.NotNil(t, NewAnalysisTracer().tracer)

	ctx, run := at.TraceRun(context.Background(), "2024-05-01", 2)
	_, sym := at.TraceSymbol(ctx, "ACME")
	at.RecordScorecard(sym, models.Scorecard{
		Symbol:   "ACME",
		RSRating: utils.Float(91),
		Template: models.StageClassification{Stage: models.StageAdvancing, PassesMinervini: true},
		Buy:      models.BuySignal{Signal: models.SignalBuy},
		Holder:   models.HolderSignal{Signal: models.SignalHold},
	})
	sym.End()
	at.RecordRunReport(run, models.RunReport{RunID: uuid.New(), Processed: 1, Skipped: 1})
	run.End()

	_, note := at.TraceNotification(context.Background(), string(models.NotifyMetricChange), "telegram")
	at.RecordNotificationResult(note, 2, errors.New("chat not found"))
	note.End()

	ended := recorder.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, "analysis.symbol", ended[0].Name())
	assert.Contains(t, ended[0].Attributes(), attribute.Float64("rs_rating", 91))
	assert.Contains(t, ended[0].Attributes(), attribute.String("signal.buy", "BUY"))
	assert.Equal(t, "analysis.run", ended[1].Name())
	assert.Equal(t, codes.Ok, ended[1].Status().Code)
	assert.Contains(t, ended[1].Attributes(), attribute.Int("run.skipped", 1))
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, codes.Error, ended[2].Status().Code)
}
