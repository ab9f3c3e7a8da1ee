package tray

// The agent runs headless on Linux.

type menuItems struct{}

// RunWithServer runs serverStart on the calling goroutine.
func (t *TrayApp) RunWithServer(serverStart func()) {
	t.setRunning()
	if serverStart != nil {
		serverStart()
	}
}

// Quit is a no-op without a tray.
func (t *TrayApp) Quit() {}

func (t *TrayApp) renderLocked() {}

// IsSupported returns true if the system tray is supported on this platform
func IsSupported() bool {
	return false
}
