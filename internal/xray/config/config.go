package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Listen is the host:port the event ingest binds to.
	Listen string `koanf:"listen" validate:"required,listen_addr"`

	// StateBackend selects the persistence adapter: "bolt" for a local
	// database, "jsonfile" for a watchable file shared across contexts.
	StateBackend string `koanf:"state_backend" validate:"required,oneof=bolt jsonfile"`

	// StatePath is the file the selected backend stores state in.
	StatePath string `koanf:"state_path" validate:"required"`

	// CacheSize is the capacity of the allow-decision cache; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// BufferSize is the capacity of the captured-event ring buffer.
	BufferSize int `koanf:"buffer_size" validate:"required,gte=1"`

	// SeenCapacity is the expected number of distinct origins per session,
	// used to size the seen-origin filter.
	SeenCapacity uint64 `koanf:"seen_capacity" validate:"required,gte=1"`

	// SeenFPRate is the target false-positive rate of the seen-origin filter.
	SeenFPRate float64 `koanf:"seen_fp_rate" validate:"required,gt=0,lt=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration for the
// panel host.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:          "prod",
	LogLevel:     "info",
	Listen:       "127.0.0.1:8127",
	StateBackend: "bolt",
	StatePath:    "/var/lib/analytics-x-ray/state.db",
	CacheSize:    1000,
	BufferSize:   500,
	SeenCapacity: 10000,
	SeenFPRate:   0.01,
}

// validListenAddr validates a host:port listen address. The host part may
// be empty ("bind all interfaces") or a hostname/IP; the port must be a
// number between 1 and 65535.
func validListenAddr(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	_, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// envLoader loads environment variables with the prefix "XRAY_", lowercasing
// keys and trimming the prefix. Can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "XRAY_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "XRAY_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads default values using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "listen_addr" validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
