package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// configCache stores parsed configuration structs keyed by their type name so
// each configuration type is only parsed from the environment once.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	globalCache = &configCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}

	defaultEnvLoaded sync.Once
)

// Load loads environment variables into the provided configuration struct.
// It ensures that each unique configuration type is only loaded once
// throughout the application lifecycle; subsequent calls for the same type
// return the cached value.
//
// The default .env file is loaded lazily before the first parse. Missing .env
// files are not an error.
//
// Example:
//
//	type QueueConfig struct {
//		RedisURL string `env:"REDIS_URL,required"`
//		Queue    string `env:"NOTIFICATION_QUEUE" envDefault:"notifications"`
//	}
//
//	var cfg QueueConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	typeName := getTypeName[T]()

	globalCache.mu.RLock()
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		globalCache.mu.RUnlock()
		return nil
	}
	globalCache.mu.RUnlock()

	globalCache.mu.Lock()
	once, exists := globalCache.onces[typeName]
	if !exists {
		once = new(sync.Once)
		globalCache.onces[typeName] = once
	}
	globalCache.mu.Unlock()

	var err error

	once.Do(func() {
		if parseErr := env.Parse(v); parseErr != nil {
			err = errors.Join(ErrParsingConfig, parseErr)
			return
		}

		globalCache.mu.Lock()
		globalCache.values[typeName] = *v // Store a copy to avoid external modifications
		globalCache.mu.Unlock()
	})

	if err != nil {
		return err
	}

	globalCache.mu.RLock()
	defer globalCache.mu.RUnlock()
	if cached, ok := globalCache.values[typeName]; ok {
		*v = cached.(T)
		return nil
	}

	return ErrConfigNotLoaded
}

// MustLoad works like Load but panics if configuration loading fails.
// Useful for configurations required for the application to start.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// LoadEnv loads one or more .env files into the process environment before
// any configuration structs are parsed. Later files do not override variables
// already set by earlier files or the existing environment.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// ResetCache clears all cached configuration values. Intended for tests that
// need to reload configuration after mutating the environment.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	globalCache.values = make(map[string]any)
	globalCache.onces = make(map[string]*sync.Once)
}

// getTypeName returns a string identifier for the generic type T
func getTypeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		// Handle interface types
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
