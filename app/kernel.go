package app

import (
	"go.uber.org/zap"

	"github.com/km-arc/go-forge/beans"
	"github.com/km-arc/go-forge/config"
	"github.com/km-arc/go-forge/factory"
)

// Kernel is the bootstrap surface: properties, logger, engine and bean
// registry wired together in the order the rest of the system expects.
type Kernel struct {
	Props     *config.Properties
	Log       *zap.Logger
	Finder    *factory.Finder
	Beans     *beans.Registry
	Providers *beans.ProviderSet
}

// New loads properties from the given .env files (default ".env"), builds the
// logger and the engine, and registers the core beans: "properties" and
// "logger" are available to every service provider.
func New(envFiles ...string) *Kernel {
	props := config.Load(envFiles...)
	log := newLogger(props)

	f := factory.New(factory.WithLogger(log))
	reg := beans.New(f, beans.WithLogger(log))

	k := &Kernel{
		Props:     props,
		Log:       log,
		Finder:    f,
		Beans:     reg,
		Providers: beans.NewProviderSet(reg),
	}
	_ = reg.Instance("properties", props)
	_ = reg.Instance("logger", log)
	return k
}

// Install extends the engine. The configure func receives the current Finder
// and returns the extended one, which replaces it for the kernel and the bean
// registry.
//
//	k.Install(func(f *factory.Finder) (*factory.Finder, error) {
//	    return f.WithProvider(newMailer)
//	})
func (k *Kernel) Install(configure func(*factory.Finder) (*factory.Finder, error)) error {
	f, err := configure(k.Finder)
	if err != nil {
		return err
	}
	k.Finder = f
	k.Beans.SetFinder(f)
	return nil
}

// Register adds a service provider.
func (k *Kernel) Register(p beans.ServiceProvider) {
	k.Providers.Register(p)
}

// Boot runs the boot phase on all registered providers.
func (k *Kernel) Boot() {
	k.Providers.Boot()
}

// Environment returns the APP_ENV value.
func (k *Kernel) Environment() string { return k.Props.Get("APP_ENV", "local") }

func (k *Kernel) IsLocal() bool      { return k.Environment() == "local" }
func (k *Kernel) IsProduction() bool { return k.Environment() == "production" }
func (k *Kernel) IsTesting() bool    { return k.Environment() == "testing" }

// newLogger builds the kernel logger from properties: a development logger
// when APP_DEBUG is set, a production logger otherwise, a no-op logger under
// APP_ENV=testing.
func newLogger(props *config.Properties) *zap.Logger {
	if props.Get("APP_ENV", "local") == "testing" {
		return zap.NewNop()
	}
	var log *zap.Logger
	var err error
	if props.Bool("APP_DEBUG", false) {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return log
}
