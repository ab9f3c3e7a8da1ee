//go:build linux

package service

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// XDG Autostart desktop entry, run as part of the graphical session.
// The tray is unavailable on Linux so the agent starts headless.
const desktopTemplate = `[Desktop Entry]
Type=Application
Name=NFC Tag ID
Comment=Local NFC tag UID reader service for web applications
Exec={{.ExecutablePath}} -no-tray
Terminal=false
Categories=Utility;
StartupNotify=false
X-GNOME-Autostart-enabled=true
`

type linuxService struct{}

// New creates a new platform-specific service manager
func New() Service {
	return &linuxService{}
}

func (s *linuxService) autostartPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "autostart", appName+".desktop")
}

func (s *linuxService) Install() error {
	if s.IsInstalled() {
		return ErrAlreadyInstalled
	}

	execPath, err := executablePath()
	if err != nil {
		return err
	}

	return writeTemplate(s.autostartPath(), "desktop", desktopTemplate, struct {
		ExecutablePath string
	}{execPath})
}

func (s *linuxService) Uninstall() error {
	if !s.IsInstalled() {
		return ErrNotInstalled
	}
	if err := os.Remove(s.autostartPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove autostart file: %w", err)
	}
	return nil
}

func (s *linuxService) IsInstalled() bool {
	_, err := os.Stat(s.autostartPath())
	return err == nil
}

func (s *linuxService) Status() (string, error) {
	if !s.IsInstalled() {
		return "not installed", nil
	}
	if err := exec.Command("pgrep", "-x", appName).Run(); err == nil {
		return "running (autostart)", nil
	}
	return "installed (autostart) but not running", nil
}
