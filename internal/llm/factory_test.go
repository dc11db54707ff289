package llm

import (
	"context"
	"errors"
	"testing"
)

type mockProvider struct {
	name      string
	content   string
	embedding []float32
	err       error
	calls     int
}

func (m *mockProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &Response{Content: m.content}, nil
}

func (m *mockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.embedding
	}
	return out, nil
}

func (m *mockProvider) Name() string { return m.name }

func TestFactory_CreateRegistered(t *testing.T) {
	f := NewFactory()
	f.Register("mock", func(cfg ProviderConfig) (Provider, error) {
		return &mockProvider{name: "mock-" + cfg.Model}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "mock", Model: "m1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "mock-m1" {
		t.Errorf("expected mock-m1, got %s", p.Name())
	}
}

func TestFactory_CreateNone(t *testing.T) {
	f := NewFactory()
	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err != nil {
			t.Errorf("provider %q: unexpected error: %v", name, err)
		}
		if p != nil {
			t.Errorf("provider %q: expected nil provider", name)
		}
	}
}

func TestFactory_CreateUnknown(t *testing.T) {
	f := NewFactory()
	f.Register("mock", func(cfg ProviderConfig) (Provider, error) {
		return &mockProvider{name: "mock"}, nil
	})

	_, err := f.Create(ProviderConfig{Provider: "does-not-exist"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	var unknownErr *UnknownProviderError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownProviderError, got %T", err)
	}
	if unknownErr.Name != "does-not-exist" {
		t.Errorf("expected offending name in error, got %q", unknownErr.Name)
	}
}

func TestFactory_ConstructorError(t *testing.T) {
	f := NewFactory()
	f.Register("broken", func(cfg ProviderConfig) (Provider, error) {
		return nil, errors.New("missing api key")
	})

	_, err := f.Create(ProviderConfig{Provider: "broken"})
	if err == nil {
		t.Fatal("expected constructor error to propagate")
	}
}
