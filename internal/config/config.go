package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort int
	DataDir  string
	BlobDir  string

	EncoderWasmPath string
	EncoderRuntime  string // "wazero" or "wasmtime"

	StartStagger  time.Duration
	MaxSourceSize int64 // bytes, 0 means unlimited

	PresetsPath string
}

func Load() *Config {
	return &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8700),
		DataDir:         getEnv("DATA_DIR", "./data"),
		BlobDir:         getEnv("BLOB_DIR", "./data/files"),
		EncoderWasmPath: getEnv("ENCODER_WASM", "./bin/encoder.wasm"),
		EncoderRuntime:  getEnv("ENCODER_RUNTIME", "wazero"),
		StartStagger:    time.Duration(getEnvInt("START_STAGGER_MS", 1000)) * time.Millisecond,
		MaxSourceSize:   int64(getEnvInt("MAX_SOURCE_SIZE_MB", 0)) * 1024 * 1024,
		PresetsPath:     getEnv("PRESETS_FILE", "./presets.yaml"),
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
