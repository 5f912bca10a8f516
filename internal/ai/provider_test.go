package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProviderLookup(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "openai"},
		{name: " Gemini "},
		{name: "openrouter"},
		{name: "", wantErr: true},
		{name: "unknown", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.name, map[string]interface{}{"api_key": "k"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, normalizeName(tt.name), p.Name())
		})
	}
}

func TestNewEmbedProviderLookup(t *testing.T) {
	for _, name := range []string{"openai", "gemini", "openrouter"} {
		p, err := NewEmbedProvider(name, &ProviderConfig{APIKey: "k"})
		require.NoError(t, err)
		require.Equal(t, name, p.Name())
	}
	_, err := NewEmbedProvider("nope", &ProviderConfig{})
	require.Error(t, err)
}

func TestProviderWithoutKeyIsUnavailable(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"openai", "gemini", "openrouter"} {
		gen, err := NewProvider(name, &ProviderConfig{})
		require.NoError(t, err)
		_, err = gen.Generate(ctx, "m", "hi")
		require.True(t, errors.Is(err, ErrUnavailable), name)

		emb, err := NewEmbedProvider(name, &ProviderConfig{})
		require.NoError(t, err)
		_, err = emb.Embed(ctx, "m", "hi", TaskRetrievalQuery)
		require.True(t, errors.Is(err, ErrUnavailable), name)
	}
}

func TestDecodeConfigRequiresArgs(t *testing.T) {
	cfg := &ProviderConfig{}
	require.Error(t, decodeConfig(nil, cfg))
	require.NoError(t, decodeConfig(map[string]string{"api_key": "x", "base_url": "http://h"}, cfg))
	require.Equal(t, "x", cfg.APIKey)
	require.Equal(t, "http://h", cfg.BaseURL)
}

type stubEmbedProvider struct {
	gotModel string
	gotTask  string
}

func (s *stubEmbedProvider) Name() string { return "stub" }

func (s *stubEmbedProvider) Embed(_ context.Context, model string, _ string, taskType string) ([]float32, error) {
	s.gotModel = model
	s.gotTask = taskType
	return []float32{1}, nil
}

func TestEmbedderBindsModel(t *testing.T) {
	p := &stubEmbedProvider{}
	e := NewEmbedder(p, "embed-model")
	require.Equal(t, "embed-model", e.ModelName())
	_, err := e.Embed(context.Background(), "text", TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, "embed-model", p.gotModel)
	require.Equal(t, TaskRetrievalDocument, p.gotTask)
}
