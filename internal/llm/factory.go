package llm

// ProviderConfig holds all configuration needed to create any LLM provider.
type ProviderConfig struct {
	Provider   string // "anthropic", "openai", "groq", "ollama", "custom"
	APIKey     string
	Model      string
	BaseURL    string // Override for self-hosted / custom endpoints
	EmbedModel string // Embedding model (OpenAI-compatible providers only)
}

// ProviderFactory creates Provider instances from config.
type ProviderFactory struct {
	constructors map[string]ProviderConstructor
}

// ProviderConstructor builds a Provider from config.
type ProviderConstructor func(cfg ProviderConfig) (Provider, error)

// NewFactory creates an empty factory; binaries register the providers they
// ship with.
func NewFactory() *ProviderFactory {
	return &ProviderFactory{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor under the given name.
func (f *ProviderFactory) Register(name string, ctor ProviderConstructor) {
	f.constructors[name] = ctor
}

// Create builds a Provider from config. Returns nil (no error) when provider
// is empty or "none", allowing LLM-free operation.
func (f *ProviderFactory) Create(cfg ProviderConfig) (Provider, error) {
	if cfg.Provider == "" || cfg.Provider == "none" {
		return nil, nil
	}

	ctor, ok := f.constructors[cfg.Provider]
	if !ok {
		return nil, &UnknownProviderError{Name: cfg.Provider, Registered: f.names()}
	}
	return ctor(cfg)
}

func (f *ProviderFactory) names() []string {
	var out []string
	for k := range f.constructors {
		out = append(out, k)
	}
	return out
}

// UnknownProviderError is returned when no constructor is registered for the
// requested provider name.
type UnknownProviderError struct {
	Name       string
	Registered []string
}

func (e *UnknownProviderError) Error() string {
	return "unknown LLM provider " + e.Name
}

// KnownProviders documents the built-in provider presets. For
// OpenAI-compatible APIs (Groq, Ollama, Together, vLLM, etc.) use the
// "openai" wire client with a custom base_url.
var KnownProviders = map[string]string{
	"anthropic": "https://api.anthropic.com/v1",
	"openai":    "https://api.openai.com/v1",
	"groq":      "https://api.groq.com/openai/v1",
	"ollama":    "http://localhost:11434/v1",
	"together":  "https://api.together.xyz/v1",
	"deepseek":  "https://api.deepseek.com/v1",
}
