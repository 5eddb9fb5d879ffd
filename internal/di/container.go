package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/application/service"
	"shopping-agent/internal/infrastructure/browser/rod"
	"shopping-agent/internal/infrastructure/classifier"
	"shopping-agent/internal/infrastructure/llm/openrouter"
	"shopping-agent/internal/infrastructure/logger"
	"shopping-agent/internal/infrastructure/metrics"
	"shopping-agent/internal/infrastructure/transport"
	"shopping-agent/internal/usecase/decision"
	"shopping-agent/internal/usecase/executor"
	"shopping-agent/internal/usecase/inspect"
	"shopping-agent/internal/usecase/orchestrator"
	"shopping-agent/internal/usecase/registry"
	"shopping-agent/internal/usecase/resolver"
	"shopping-agent/internal/usecase/safety"
	"shopping-agent/internal/usecase/session"
)

const Version = "0.3.0"

type Config struct {
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	ClassifierModel   string
	OracleRPS         float64

	Browser        rod.BrowserConfig
	MaxIterations  int
	SafetyCacheTTL time.Duration
	ProbeTimeout   time.Duration

	HTTPAddr       string
	AllowedOrigins []string

	Log logger.Config
}

// ConfigFromEnv reads every setting the agent understands. Missing keys fall
// back to defaults; the API key is only checked when a mission starts.
func ConfigFromEnv(env output.ConfigPort) Config {
	browser := rod.DefaultConfig()
	browser.Headless = env.GetBool("HEADLESS", true)
	browser.Timeout = env.GetMillis("BROWSER_TIMEOUT_MS", 30*time.Second)
	browser.ViewportWidth = env.GetInt("VIEWPORT_WIDTH", browser.ViewportWidth)
	browser.ViewportHeight = env.GetInt("VIEWPORT_HEIGHT", browser.ViewportHeight)
	browser.UserAgent = env.GetWithDefault("USER_AGENT", browser.UserAgent)
	browser.NoSandbox = env.GetBool("BROWSER_NO_SANDBOX", browser.NoSandbox)
	browser.Bin = env.Get("BROWSER_BIN")

	logCfg := logger.DefaultConfig()
	logCfg.Level = env.GetWithDefault("LOG_LEVEL", logCfg.Level)
	logCfg.Format = env.GetWithDefault("LOG_FORMAT", logCfg.Format)
	logCfg.File = env.Get("LOG_FILE")

	model := env.Get("OPENROUTER_MODEL_NAME")

	return Config{
		OpenRouterAPIKey:  env.Get("OPENROUTER_API_KEY"),
		OpenRouterModel:   model,
		OpenRouterBaseURL: env.GetWithDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ClassifierModel:   env.GetWithDefault("CLASSIFIER_MODEL_NAME", model),
		OracleRPS:         env.GetFloat("ORACLE_RPS", 0),
		Browser:           browser,
		MaxIterations:     env.GetInt("MAX_ITERATIONS", 20),
		SafetyCacheTTL:    env.GetMillis("SAFETY_CACHE_TTL_MS", 5*time.Second),
		ProbeTimeout:      env.GetMillis("PROBE_TIMEOUT_MS", 3*time.Second),
		HTTPAddr:          env.GetWithDefault("HTTP_ADDR", ":8000"),
		Log:               logCfg,
	}
}

func (c Config) OracleConfigured() bool {
	return c.OpenRouterAPIKey != "" && c.OpenRouterModel != ""
}

type Container struct {
	Config   Config
	Logger   output.LoggerPort
	Metrics  *metrics.Collector
	Oracle   output.DecisionOraclePort
	Missions *session.Manager
	Pages    *inspect.Inspector

	browsers output.BrowserFactory
	vision   output.CheckoutClassifierPort
}

type Option func(*Container)

// WithBrowserFactory replaces Chromium, mostly for tests.
func WithBrowserFactory(f output.BrowserFactory) Option {
	return func(c *Container) { c.browsers = f }
}

func WithOracle(o output.DecisionOraclePort) Option {
	return func(c *Container) { c.Oracle = o }
}

func WithLogger(l output.LoggerPort) Option {
	return func(c *Container) { c.Logger = l }
}

func NewContainer(cfg Config, opts ...Option) (*Container, error) {
	c := &Container{Config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.Logger == nil {
		log, err := logger.NewLoggerAdapter(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		c.Logger = log
	}
	c.Metrics = metrics.NewCollector("shopping_agent")

	if c.browsers == nil {
		c.browsers = rod.Factory(cfg.Browser)
	}

	if c.Oracle == nil && cfg.OracleConfigured() {
		oracleCfg := openrouter.DefaultConfig(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
		oracleCfg.BaseURL = cfg.OpenRouterBaseURL
		oracleCfg.RequestsPerSecond = cfg.OracleRPS
		oracleCfg.Logger = c.Logger.WithField("component", "oracle")
		c.Oracle = openrouter.NewDecisionOracle(oracleCfg)
	}

	if cfg.OpenRouterAPIKey != "" && cfg.ClassifierModel != "" {
		vision, err := classifier.NewVisionClassifier(classifier.VisionConfig{
			APIKey:  cfg.OpenRouterAPIKey,
			Model:   cfg.ClassifierModel,
			BaseURL: cfg.OpenRouterBaseURL,
		}, c.Logger)
		if err != nil {
			c.Logger.Warn("Vision classifier unavailable, using page heuristic only", "error", err)
		} else {
			c.vision = vision
		}
	}

	sessCfg := session.DefaultConfig()
	if cfg.MaxIterations > 0 {
		sessCfg.MaxIterations = cfg.MaxIterations
	}
	c.Missions = session.NewManager(c.RunnerFactory(), sessCfg, c.Logger, c.Metrics)

	var decider inspect.Decider
	if c.Oracle != nil {
		decider = decision.New(c.Oracle, service.DefaultRetryPolicy(), c.Logger, c.Metrics)
	}
	c.Pages = inspect.New(c.browsers, registry.New(c.Logger, registry.DefaultPacks()...), decider, c.Logger)

	c.Logger.Info("Container ready",
		"headless", cfg.Browser.Headless,
		"model", cfg.OpenRouterModel,
		"visionClassifier", c.vision != nil,
		"maxIterations", sessCfg.MaxIterations)
	return c, nil
}

// RunnerFactory builds the per-session object graph. Every session gets its
// own browser, label registry and safety cache; only the oracle and metrics
// are shared.
func (c *Container) RunnerFactory() session.RunnerFactory {
	return func(ctx context.Context, sessionID string, sink output.EventSink) (session.Runner, io.Closer, error) {
		if c.Oracle == nil {
			return nil, nil, errors.New("decision oracle is not configured: set OPENROUTER_API_KEY and OPENROUTER_MODEL_NAME")
		}

		log := c.Logger.WithField("session", sessionID)

		browser, err := c.browsers(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		classifiers := []output.CheckoutClassifierPort{}
		if c.vision != nil {
			classifiers = append(classifiers, c.vision)
		}
		classifiers = append(classifiers, classifier.NewHeuristicClassifier(browser))

		safetyCfg := safety.DefaultConfig()
		if c.Config.SafetyCacheTTL > 0 {
			safetyCfg.CacheTTL = c.Config.SafetyCacheTTL
		}
		guard := safety.New(classifier.NewChain(log, classifiers...), log, safetyCfg)

		exec := executor.New(resolver.New(log, c.Config.ProbeTimeout), guard, executor.DefaultTiming(), log, c.Metrics)
		decider := decision.New(c.Oracle, service.DefaultRetryPolicy(), log, c.Metrics)

		uc := orchestrator.New(
			browser,
			registry.New(log, registry.DefaultPacks()...),
			decider,
			exec,
			sink,
			orchestrator.DefaultConfig(),
			log,
			c.Metrics,
		)
		return uc, browser, nil
	}
}

func (c *Container) NewServer() *transport.Server {
	return transport.NewServer(c.Missions, c.Metrics.Handler(), transport.Config{
		Addr:             c.Config.HTTPAddr,
		Headless:         c.Config.Browser.Headless,
		MaxIterations:    c.Config.MaxIterations,
		OracleConfigured: c.Oracle != nil,
		AllowedOrigins:   c.Config.AllowedOrigins,
		Version:          Version,
	}, c.Logger.WithField("component", "transport"), transport.WithPageInspector(c.Pages))
}

// Close stops every running mission and flushes the logger.
func (c *Container) Close(ctx context.Context) error {
	var err error
	if c.Missions != nil {
		err = c.Missions.Shutdown(ctx)
	}
	if c.Logger != nil {
		err = errors.Join(err, c.Logger.Close())
	}
	return err
}
