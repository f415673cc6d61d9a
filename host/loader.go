package host

import (
	"log/slog"
	"time"

	"github.com/jgmdev/pragtical/go/domain/entities"
	derrors "github.com/jgmdev/pragtical/go/domain/errors"
	"github.com/jgmdev/pragtical/go/domain/ports"
	"github.com/jgmdev/pragtical/go/hostfuncs"
)

// loaderConfig holds configuration for the Loader.
type loaderConfig struct {
	logger    *slog.Logger
	observers []ports.RegistrationObserver
	now       func() time.Time
	globals   bool // Bind each module table as a global of the same name
}

func defaultLoaderConfig() loaderConfig {
	return loaderConfig{
		logger:  slog.Default(),
		now:     time.Now,
		globals: true,
	}
}

// Loader walks a descriptor set and binds every module into a runtime.
type Loader struct {
	config loaderConfig
}

// LoaderOption configures the Loader.
type LoaderOption func(*loaderConfig)

// WithLoaderLogger sets the logger used for registration outcomes.
func WithLoaderLogger(l *slog.Logger) LoaderOption {
	return func(c *loaderConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver adds an observer notified of every registration outcome.
func WithObserver(o ports.RegistrationObserver) LoaderOption {
	return func(c *loaderConfig) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithGlobals controls whether module tables are also bound as globals.
// Enabled by default.
func WithGlobals(enabled bool) LoaderOption {
	return func(c *loaderConfig) {
		c.globals = enabled
	}
}

// NewLoader creates a new Loader with defaults.
func NewLoader(opts ...LoaderOption) *Loader {
	cfg := defaultLoaderConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Loader{config: cfg}
}

// Load binds the descriptors of set into rt, front to back. A nil set
// selects hostfuncs.ActiveSet.
//
// Modules already present in the runtime are kept and their entry points are
// not invoked again. The first failing entry point stops the walk: no later
// descriptor is visited and modules bound before it stay bound. The failure
// is returned as a *errors.ModuleInitError.
func (l *Loader) Load(rt hostfuncs.Runtime, set *hostfuncs.DescriptorSet) (entities.LoadReport, error) {
	if set == nil {
		set = hostfuncs.ActiveSet()
	}

	start := l.config.now()
	report := entities.LoadReport{
		Backend:  rt.Backend(),
		Variant:  set.Variant(),
		Outcomes: make([]entities.RegistrationOutcome, 0, set.Len()),
	}

	for i, d := range set.Descriptors() {
		began := l.config.now()
		bound, err := rt.Require(d.Name, d.Entry, l.config.globals)
		outcome := entities.RegistrationOutcome{
			Module:   d.Name,
			Index:    i,
			Duration: l.config.now().Sub(began),
		}

		if err != nil {
			initErr := &derrors.ModuleInitError{Module: d.Name, Index: i, Err: err}
			outcome.Status = entities.RegistrationFailed
			outcome.Err = initErr
			outcome.Error = derrors.ToErrorDetail(initErr)
			l.notify(outcome)

			report.Outcomes = append(report.Outcomes, outcome)
			report.Error = outcome.Error
			report.Metadata = entities.NewRunMetadata(start, l.config.now()).WithHostVersion(Version)
			l.config.logger.Error("Host: native module failed to load",
				"module", d.Name, "index", i, "backend", report.Backend, "error", err)
			return report, initErr
		}

		if bound {
			outcome.Status = entities.RegistrationBound
		} else {
			outcome.Status = entities.RegistrationCached
		}
		l.notify(outcome)
		report.Outcomes = append(report.Outcomes, outcome)
		l.config.logger.Debug("Host: native module registered",
			"module", d.Name, "index", i, "status", string(outcome.Status), "duration", outcome.Duration)
	}

	report.Metadata = entities.NewRunMetadata(start, l.config.now()).WithHostVersion(Version)
	return report, nil
}

func (l *Loader) notify(o entities.RegistrationOutcome) {
	for _, obs := range l.config.observers {
		obs.Observe(o)
	}
}
