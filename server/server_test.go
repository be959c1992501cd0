package server

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/stockwear/internal/profile"
	pluginvision "github.com/hrygo/stockwear/plugin/vision"
	teststore "github.com/hrygo/stockwear/store/test"
)

func newTestProfile(t *testing.T) *profile.Profile {
	return &profile.Profile{
		Mode:                "dev",
		Addr:                "127.0.0.1",
		Port:                0,
		Data:                t.TempDir(),
		SimilarityThreshold: 0.82,
		CatalogCacheTTL:     time.Minute,
		RunnerEnabled:       true,
		RunnerInterval:      time.Minute,
		RunnerBatchSize:     8,
	}
}

func TestNewServicesRejectsUnknownProvider(t *testing.T) {
	p := newTestProfile(t)
	p.EmbeddingProvider = "carrier-pigeon"
	_, err := NewServices(p, nil)
	assert.Error(t, err)
}

type constantModel struct{}

func (constantModel) Predict(context.Context, *pluginvision.Tensor) ([]float32, error) {
	return []float32{1, 1}, nil
}

func TestNewServicesWithModel(t *testing.T) {
	services, err := NewServices(newTestProfile(t), nil, WithModel(constantModel{}))
	require.NoError(t, err)
	assert.True(t, services.Embedder.IsEnabled())
	assert.True(t, services.References.EmbeddingEnabled())
}

func TestServerStartAndShutdown(t *testing.T) {
	ctx := context.Background()
	s, err := NewServer(ctx, newTestProfile(t), teststore.NewTestingStore(ctx, t))
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	assert.Nil(t, s.runnerCancel, "runner needs an embedding producer")

	url := "http://" + s.echoServer.Listener.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && string(body) == "Service ready."
	}, 2*time.Second, 20*time.Millisecond)

	req, err := http.NewRequest(http.MethodHead, url+"/api/v1/recognizer/embed", nil)
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.Shutdown(ctx)
	_, err = http.Get(url + "/healthz")
	assert.Error(t, err)
}

func TestServerRunsRunnerWhenEmbeddingIsConfigured(t *testing.T) {
	ctx := context.Background()
	p := newTestProfile(t)
	p.EmbeddingServiceURL = "http://127.0.0.1:1/embed"
	s, err := NewServer(ctx, p, teststore.NewTestingStore(ctx, t))
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	require.NotNil(t, s.runnerCancel)

	s.Shutdown(ctx)
	select {
	case <-s.runnerDone:
	default:
		t.Fatal("runner still running after shutdown")
	}
}
