package volio

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

/*
===============================================================================
    Configuration
===============================================================================
*/

// Config represents the application configuration
type Config struct {
	Version       string `yaml:"-"`
	OpenFileLimit int    `yaml:"openFileLimit"`
	LogLevel      string `yaml:"logLevel"`

	/* By enabling `StrictMode`, the parser will reject free-format inputs
	   which contain unrecognised content after the volume filename and its
	   optional byte offset. */
	StrictMode bool `yaml:"strictMode"`

	// ConvertToByte forces volumes to be stored as unsigned bytes, rescaling
	// wider sample types into the 0..255 range
	ConvertToByte bool `yaml:"convertToByte"`

	// ReadBufferSize is the number of bytes to be buffered from disk when
	// decompressing volume payloads
	ReadBufferSize int `yaml:"readBufferSize"`

	// do not access / write `_set`. It is used internally.
	_set bool
}

// intFromEnv retrieves `key` from the OS environment.
// if the key is not found, or cannot be expressed as an integer,
// `found` will be false.
func intFromEnv(key string) (val int, found bool) {
	valStr, found := os.LookupEnv(key)
	if !found {
		return
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		found = false
	}
	return
}

func intFromEnvDefault(key string, def int) (val int) {
	val, found := intFromEnv(key)
	if !found {
		val = def
	}
	return
}

func strFromEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

func strFromEnvDefault(key string, def string) (val string) {
	val, found := strFromEnv(key)
	if !found {
		val = def
	}
	return
}

func boolFromEnv(key string) (val bool, found bool) {
	valStr, found := os.LookupEnv(key)
	if !found {
		return
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		found = false
	}
	return
}

func boolFromEnvDefault(key string, def bool) (val bool) {
	val, found := boolFromEnv(key)
	if !found {
		val = def
	}
	return
}

var config Config

// GetConfig returns the application configuration.
// Will set from environment if not already set.
func GetConfig() Config {
	if !config._set {
		config.Version = VolioVersion
		config.OpenFileLimit = intFromEnvDefault("VOLIO_OPENFILELIMIT", 64)
		config.StrictMode = boolFromEnvDefault("VOLIO_STRICTMODE", false)
		config.ConvertToByte = boolFromEnvDefault("VOLIO_CONVERTTOBYTE", false)
		config.ReadBufferSize = intFromEnvDefault("VOLIO_BUFFERSIZE", 2*1024*1024)
		config.LogLevel = strings.ToLower(strFromEnvDefault("VOLIO_LOGLEVEL", "info"))
		switch config.LogLevel {
		case "debug", "info", "warn", "error", "fatal", "none", "disabled", "0", "1", "2", "3", "4", "5":
			SetLoggingLevel(config.LogLevel)
		default:
			panic(`Invalid "VOLIO_LOGLEVEL". Choose from "debug", "info", "warn", "error", "fatal", or "none".`)
		}
		config._set = true
	}
	return config
}

// OverrideConfig overrides the configuration parsed from environment with the one provided
func OverrideConfig(newconfig Config) {
	if !newconfig._set { // to prevent being reverted with subsequent calls to `GetConfig`
		newconfig._set = true
	}
	config = newconfig
}

// LoadConfig layers a YAML configuration file at `path` over the current
// configuration and applies the result.
func LoadConfig(path string) (Config, error) {
	cfg := GetConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		return cfg, IOErrorf("read config: %v", err)
	}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, CorruptVolumeError("parse config %s: %v", path, err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "none", "disabled", "0", "1", "2", "3", "4", "5":
		SetLoggingLevel(cfg.LogLevel)
	default:
		return cfg, CorruptVolumeError("invalid logLevel %q in %s", cfg.LogLevel, path)
	}
	OverrideConfig(cfg)
	return cfg, nil
}
