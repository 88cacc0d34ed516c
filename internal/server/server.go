package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/narrate/internal/api"
	"github.com/jackzampolin/narrate/internal/audio"
	"github.com/jackzampolin/narrate/internal/config"
	"github.com/jackzampolin/narrate/internal/home"
	"github.com/jackzampolin/narrate/internal/jobs"
	"github.com/jackzampolin/narrate/internal/jobs/book_audio"
	"github.com/jackzampolin/narrate/internal/jobs/chapter_audio"
	"github.com/jackzampolin/narrate/internal/jobs/translate_chapter"
	"github.com/jackzampolin/narrate/internal/library"
	"github.com/jackzampolin/narrate/internal/providers"
	"github.com/jackzampolin/narrate/internal/server/endpoints"
	"github.com/jackzampolin/narrate/internal/storage"
	"github.com/jackzampolin/narrate/internal/svcctx"
	"github.com/jackzampolin/narrate/internal/tasks"
)

// Server is the main narrate HTTP server.
// It owns the catalog, artifact store, worker pool and chapter job
// orchestrators, starting them on server start and stopping them on
// shutdown.
type Server struct {
	httpServer *http.Server
	registry   *providers.Registry
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	encoder     audio.Encoder
	translator  providers.Translator
	synthesizer providers.SpeechSynthesizer

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	// cleanup runs in reverse order on shutdown
	closers []func()

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: server.host from config)
	Host string
	// Port is the port to listen on (default: server.port from config)
	Port string
	// Home is the narrate home directory (catalog and default storage)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Encoder overrides the ffmpeg encoder (tests).
	Encoder audio.Encoder
	// Translator overrides the configured chat client (tests).
	Translator providers.Translator
	// Synthesizer overrides the configured speech provider (tests).
	Synthesizer providers.SpeechSynthesizer
	// CheckFFmpeg backs /ready. Defaults to audio.CheckFFmpegAvailable
	// unless Encoder is overridden.
	CheckFFmpeg func() error
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	current := cfg.ConfigManager.Get()
	if cfg.Host == "" {
		cfg.Host = current.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = current.Server.Port
	}
	if cfg.Encoder == nil {
		cfg.Encoder = audio.NewFFmpeg(cfg.Logger)
		if cfg.CheckFFmpeg == nil {
			cfg.CheckFFmpeg = audio.CheckFFmpegAvailable
		}
	}

	s := &Server{
		registry:    providers.NewRegistry(cfg.Logger),
		configMgr:   cfg.ConfigManager,
		home:        cfg.Home,
		logger:      cfg.Logger,
		encoder:     cfg.Encoder,
		translator:  cfg.Translator,
		synthesizer: cfg.Synthesizer,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = endpoints.NewRegistry(endpoints.Config{CheckFFmpeg: cfg.CheckFFmpeg})

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start initializes services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.initServices(ctx); err != nil {
		s.runClosers()
		s.setNotRunning()
		return err
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// initServices builds everything the endpoints need.
func (s *Server) initServices(ctx context.Context) error {
	cfg := s.configMgr.Get()

	if err := s.home.EnsureExists(); err != nil {
		return err
	}

	catalog, err := library.Open(s.home.LibraryPath(), s.logger)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	s.onClose(func() {
		if err := catalog.Close(); err != nil {
			s.logger.Error("library close error", "error", err)
		}
	})

	store, err := s.openStorage(cfg)
	if err != nil {
		return err
	}

	if err := s.registerProviders(cfg); err != nil {
		return err
	}
	translator, err := s.registry.Translator()
	if err != nil {
		return err
	}
	synthesizer, err := s.registry.Synthesizer("")
	if err != nil {
		return err
	}

	// Jobs run under their own root context so they outlive the request
	// that started them; shutdown cancels it.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	var bg sync.WaitGroup
	s.onClose(func() {
		cancelJobs()
		bg.Wait()
	})

	pool := jobs.NewPool(jobs.PoolConfig{
		Name:        "audio",
		WorkerCount: cfg.Pipeline.MaxWorkers,
		QueueSize:   cfg.Pipeline.QueueSize,
		Logger:      s.logger,
	})
	bg.Add(1)
	go func() {
		defer bg.Done()
		pool.Start(jobCtx)
	}()

	taskStore := tasks.NewMemoryStore(s.logger)
	janitor := jobs.NewJanitor(jobs.JanitorConfig{
		Store:    taskStore,
		Interval: cfg.CleanupInterval(),
		MaxAge:   cfg.MaxTaskAge(),
		Logger:   s.logger,
	})
	bg.Add(1)
	go func() {
		defer bg.Done()
		janitor.Run(jobCtx)
	}()

	locks := jobs.NewKeyedLocker()

	translateOrch, err := translate_chapter.New(translate_chapter.Config{
		Tasks:       taskStore,
		Source:      catalog,
		Translator:  translator,
		Storage:     store,
		Locks:       locks,
		SourceLang:  cfg.Translation.SourceLang,
		TargetLang:  cfg.Translation.TargetLang,
		ChunkSize:   cfg.Pipeline.ChunkSize,
		ChunkDelay:  cfg.ChunkDelay(),
		JobTimeout:  cfg.JobTimeout(),
		BaseContext: jobCtx,
		Logger:      s.logger,
	})
	if err != nil {
		return err
	}

	audioOrch, err := chapter_audio.New(chapter_audio.Config{
		Tasks:       taskStore,
		Storage:     store,
		Synthesizer: synthesizer,
		Encoder:     s.encoder,
		Pool:        pool,
		Locks:       locks,
		SegmentSize: cfg.Pipeline.SpeechSegmentSize,
		Voice:       cfg.TTS.Voice,
		Speed:       cfg.TTS.Speed,
		JobTimeout:  cfg.JobTimeout(),
		BaseContext: jobCtx,
		Logger:      s.logger,
	})
	if err != nil {
		return err
	}

	bookAudio, err := book_audio.New(book_audio.Config{
		Storage: store,
		Catalog: catalog,
		Encoder: s.encoder,
		Pool:    pool,
		Logger:  s.logger,
	})
	if err != nil {
		return err
	}

	// Orchestrators finish (and fail their tasks) before the pool and
	// catalog go away.
	s.onClose(func() {
		cancelJobs()
		translateOrch.Wait()
		audioOrch.Wait()
	})

	s.configMgr.OnChange(func(c *config.Config) {
		s.registry.SetRetryPolicy(c.RetryPolicy())
		translateOrch.SetPacing(c.Pipeline.ChunkSize, c.ChunkDelay())
		s.logger.Info("pipeline settings reloaded from config")
	})
	s.configMgr.WatchConfig()

	s.mu.Lock()
	s.services = &svcctx.Services{
		Config:       s.configMgr,
		Tasks:        taskStore,
		Catalog:      catalog,
		Storage:      store,
		Registry:     s.registry,
		Pool:         pool,
		Translator:   translateOrch,
		ChapterAudio: audioOrch,
		BookAudio:    bookAudio,
		Logger:       s.logger,
		Home:         s.home,
	}
	s.mu.Unlock()

	s.logger.Info("services ready",
		"library", s.home.LibraryPath(),
		"storage", store.Root(),
		"translator", translator.Name(),
		"tts", synthesizer.Name(),
		"mirror", store.Mirrored())
	return ctx.Err()
}

// openStorage opens the artifact directory and, when configured, the NATS
// object store mirror.
func (s *Server) openStorage(cfg *config.Config) (*storage.Store, error) {
	fs, err := storage.NewFS(cfg.StoragePath(s.home.Path()))
	if err != nil {
		return nil, err
	}
	if cfg.NATS.URL == "" {
		return storage.NewStore(fs, nil, s.logger), nil
	}

	mirror, drain, err := storage.ConnectNATS(cfg.NATS.URL, cfg.NATS.Bucket, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect artifact mirror: %w", err)
	}
	s.onClose(drain)
	return storage.NewStore(fs, mirror, s.logger), nil
}

// registerProviders sets up the translator and every speech synthesizer,
// selecting tts.provider as the default.
func (s *Server) registerProviders(cfg *config.Config) error {
	translator := s.translator
	if translator == nil {
		chat := cfg.ChatConfig()
		chat.Logger = s.logger
		translator = providers.NewChatClient(chat)
	}
	s.registry.SetTranslator(translator)

	if s.synthesizer != nil {
		s.registry.RegisterSynthesizer(s.synthesizer)
		return s.registry.SetDefaultSynthesizer(s.synthesizer.Name())
	}

	f5 := cfg.F5TTSConfig()
	f5.Logger = s.logger
	s.registry.RegisterSynthesizer(providers.NewF5TTSClient(f5))

	openaiCfg := cfg.OpenAITTSConfig()
	if openaiCfg.APIKey != "" {
		openaiCfg.Logger = s.logger
		s.registry.RegisterSynthesizer(providers.NewOpenAITTSClient(openaiCfg))
	} else if cfg.TTS.Provider == config.TTSProviderOpenAI {
		return errors.New("tts.provider is openai but tts.openai.api_key is empty")
	}

	return s.registry.SetDefaultSynthesizer(cfg.TTS.Provider)
}

func (s *Server) onClose(fn func()) {
	s.closers = append(s.closers, fn)
}

func (s *Server) runClosers() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// shutdown stops the HTTP server, then the jobs and the services.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.runClosers()

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Services returns the initialized services.
// Returns nil if the server hasn't started yet.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.Services(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if services aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Services() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
