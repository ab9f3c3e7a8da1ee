package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("NFC_TAGID_HOST", "")
	t.Setenv("NFC_TAGID_PORT", "")
	t.Setenv("NFC_TAGID_MDNS", "")

	cfg := FromEnv()
	if cfg.Address() != "127.0.0.1:32146" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.MDNS {
		t.Error("mDNS should be off by default")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("NFC_TAGID_HOST", "0.0.0.0")
	t.Setenv("NFC_TAGID_PORT", "40000")
	t.Setenv("NFC_TAGID_MDNS", "yes")

	cfg := FromEnv()
	if cfg.Address() != "0.0.0.0:40000" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if !cfg.MDNS {
		t.Error("expected mDNS enabled")
	}
}

func TestFromEnvRejectsBadPort(t *testing.T) {
	for _, port := range []string{"abc", "0", "70000", "-1"} {
		t.Setenv("NFC_TAGID_PORT", port)
		if got := FromEnv().Port; got != defaultPort {
			t.Errorf("port %q gave %d, want default", port, got)
		}
	}
}

func TestIPv6Address(t *testing.T) {
	cfg := &Config{Host: "::1", Port: 32146}
	if cfg.Address() != "[::1]:32146" {
		t.Errorf("Address() = %q", cfg.Address())
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NFC_TAGID_PORT=41000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// t.Setenv registers a restore; Unsetenv lets godotenv fill the variable.
	t.Setenv("NFC_TAGID_PORT", "")
	os.Unsetenv("NFC_TAGID_PORT")

	if got := Load().Port; got != 41000 {
		t.Errorf("Port = %d, want 41000 from .env", got)
	}
}

func TestFromEnvSettingsPath(t *testing.T) {
	t.Setenv("NFC_TAGID_SETTINGS", "/tmp/nfc-tagid-settings.json")
	if got := FromEnv().SettingsPath; got != "/tmp/nfc-tagid-settings.json" {
		t.Errorf("SettingsPath = %q", got)
	}
}
