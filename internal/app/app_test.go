package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/manualqa/manualqa/internal/config"
	"github.com/manualqa/manualqa/internal/index"
	"github.com/manualqa/manualqa/internal/log"
)

// fakeMistral serves just enough of the OpenAI-compatible API for setup and
// ingestion to run against it.
func fakeMistral(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/embeddings":
			_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}],"model":"mistral-embed"}`))
		case "/chat/completions":
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"answer"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Provider:        config.ProviderMistral,
		ModelName:       config.DefaultMistralModel,
		EmbedderModel:   config.DefaultMistralEmbedder,
		MistralBaseURL:  baseURL,
		DataDir:         t.TempDir(),
		IndexPath:       filepath.Join(t.TempDir(), "index.db"),
		ChunkSize:       500,
		ChunkOverlap:    50,
		TopK:            3,
		MaxContextChars: 8000,
	}
}

func buildIndexAt(t *testing.T, path string) {
	t.Helper()
	store, err := index.Open(path, config.DefaultMistralEmbedder, log.NewNop())
	if err != nil {
		t.Fatalf("index.Open() error = %v", err)
	}
	defer func() { _ = store.Close() }()
	err = store.Build(context.Background(), []index.Entry{
		{ID: "a", Content: "content", SourcePath: "a.txt", Embedding: []float32{0.1, 0.2}},
	}, index.ModeReplace)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestSetupRequiresIndex(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	cfg := testConfig(t, fakeMistral(t).URL)

	_, err := Setup(context.Background(), cfg, log.NewNop())
	if !errors.Is(err, ErrIndexMissing) {
		t.Fatalf("Setup() error = %v, want ErrIndexMissing", err)
	}
}

func TestSetupRequiresCredentials(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	cfg := testConfig(t, "http://localhost")

	if _, err := Setup(context.Background(), cfg, log.NewNop()); err == nil {
		t.Fatal("Setup() succeeded without credentials")
	}
}

func TestSetupWithExistingIndex(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	cfg := testConfig(t, fakeMistral(t).URL)
	buildIndexAt(t, cfg.IndexPath)

	a, err := Setup(context.Background(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.Engine == nil {
		t.Error("Setup() returned no engine")
	}
	if a.Pipeline != nil {
		t.Error("Setup() built an ingestion pipeline")
	}

	answer, err := a.Engine.Answer(context.Background(), "a question?")
	if err != nil {
		t.Fatalf("Answer() through assembled app error = %v", err)
	}
	if answer.Text != "answer" {
		t.Errorf("Answer().Text = %q", answer.Text)
	}
}

func TestSetupIngestCreatesIndex(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	cfg := testConfig(t, fakeMistral(t).URL)

	a, err := SetupIngest(context.Background(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("SetupIngest() error = %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.Pipeline == nil {
		t.Error("SetupIngest() returned no pipeline")
	}
	if !index.Exists(cfg.IndexPath) {
		t.Error("SetupIngest() did not create the index file")
	}
}

func TestInitializerRunsOnce(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	cfg := testConfig(t, fakeMistral(t).URL)
	buildIndexAt(t, cfg.IndexPath)

	init := NewInitializer(cfg, log.NewNop())
	defer func() { _ = init.Close() }()

	if init.Ready() {
		t.Error("Ready() = true before first use")
	}

	const callers = 16
	apps := make([]*App, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			a, err := init.App(context.Background())
			if err != nil {
				t.Errorf("App() error = %v", err)
				return
			}
			apps[n] = a
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if apps[i] != apps[0] {
			t.Fatal("concurrent callers received different App instances")
		}
	}
	if !init.Ready() {
		t.Error("Ready() = false after successful initialization")
	}
}

func TestInitializerStickyFailure(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	cfg := testConfig(t, fakeMistral(t).URL)
	// No index on disk: initialization must fail and stay failed.

	init := NewInitializer(cfg, log.NewNop())
	if _, err := init.App(context.Background()); !errors.Is(err, ErrIndexMissing) {
		t.Fatalf("App() error = %v, want ErrIndexMissing", err)
	}
	if _, err := init.App(context.Background()); !errors.Is(err, ErrIndexMissing) {
		t.Fatalf("second App() error = %v, want the same sticky error", err)
	}
	if init.Ready() {
		t.Error("Ready() = true after failed initialization")
	}
}
