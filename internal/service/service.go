// Package service installs the agent to start at login.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

const appName = "nfc-tagid"

var (
	ErrAlreadyInstalled = errors.New("auto-start is already installed")
	ErrNotInstalled     = errors.New("auto-start is not installed")
	ErrUnsupported      = errors.New("auto-start is not supported on this platform")
)

// Service manages login auto-start for the current user.
type Service interface {
	Install() error
	Uninstall() error
	IsInstalled() bool
	Status() (string, error)
}

// executablePath returns the running binary with symlinks resolved.
func executablePath() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable path: %w", err)
	}
	return execPath, nil
}

func render(w io.Writer, name, text string, data any) error {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	return tmpl.Execute(w, data)
}

// writeTemplate renders text into path, creating parent directories.
// Nothing is written if rendering fails.
func writeTemplate(path, name, text string, data any) error {
	var buf bytes.Buffer
	if err := render(&buf, name, text, data); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	// WriteFile reports the close error too
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", name, err)
	}
	return nil
}
