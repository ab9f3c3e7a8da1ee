// Package config reads runtime configuration from the environment.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 32146
)

// Config holds the agent's listen address and discovery switch.
type Config struct {
	Host string
	Port int
	MDNS bool
	// LogLevel is the minimum level kept in the in-memory log.
	LogLevel string
	// SettingsPath overrides the settings.json location when set.
	SettingsPath string
}

// Address returns host:port for the HTTP server.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil && i > 0 && i < 65536 {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// loadEnvFiles loads optional .env files. Variables already present in the
// environment are not overwritten.
func loadEnvFiles() {
	envFiles := []string{".env"}
	if configDir, err := os.UserConfigDir(); err == nil {
		envFiles = append(envFiles, filepath.Join(configDir, "nfc-tagid", ".env"))
	}
	for _, f := range envFiles {
		_ = godotenv.Load(f) // optional
	}
}

// Load builds the configuration from .env files and environment variables.
func Load() *Config {
	loadEnvFiles()
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	return &Config{
		Host:         getEnvString("NFC_TAGID_HOST", defaultHost),
		Port:         getEnvInt("NFC_TAGID_PORT", defaultPort),
		MDNS:         getEnvBool("NFC_TAGID_MDNS", false),
		LogLevel:     getEnvString("NFC_TAGID_LOG_LEVEL", "debug"),
		SettingsPath: os.Getenv("NFC_TAGID_SETTINGS"),
	}
}
