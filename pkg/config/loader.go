package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	loaded   sync.Map // type name -> loaded value
	loadMu   sync.Mutex
	dotenvMu sync.Once
)

// Load parses environment variables into v. Each configuration type is
// parsed once per process; subsequent calls return the cached copy.
// A .env file in the working directory is applied before the first parse
// when present.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvMu.Do(func() { _ = godotenv.Load() })

	key := typeName[T]()
	if cached, ok := loaded.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	loadMu.Lock()
	defer loadMu.Unlock()

	if cached, ok := loaded.Load(key); ok {
		*v = cached.(T)
		return nil
	}

	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	loaded.Store(key, cfg)
	*v = cfg
	return nil
}

// MustLoad works like Load but panics on failure.
// Use it for configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse reads environment variables into a fresh T without caching.
// Prefix is prepended to every variable name, so the same struct can be
// loaded for several instances (e.g. "LINE_" and "TELEGRAM_" credentials).
func Parse[T any](prefix string) (T, error) {
	var cfg T
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return cfg, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// LoadEnvFiles applies the given dotenv files to the process environment.
// Files listed later do not override values set by earlier ones or by the
// real environment.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String()
}
