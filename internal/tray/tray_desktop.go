//go:build !linux

package tray

import (
	"os/exec"
	"runtime"
	"time"

	"github.com/SimplyPrint/nfc-tagid/internal/api"
	"github.com/getlantern/systray"
)

type menuItems struct {
	status  *systray.MenuItem
	readers *systray.MenuItem
	lastTag *systray.MenuItem
}

// RunWithServer runs the tray on the main thread and starts the server in a goroutine.
// This function BLOCKS - it must be called from the main goroutine on macOS.
func (t *TrayApp) RunWithServer(serverStart func()) {
	stop := make(chan struct{})
	systray.Run(func() {
		t.onReady(stop)
		if serverStart != nil {
			go serverStart()
		}
		t.setRunning()
	}, func() {
		close(stop)
		if t.onQuit != nil {
			t.onQuit()
		}
	})
}

// Quit closes the tray, which makes RunWithServer return.
func (t *TrayApp) Quit() {
	systray.Quit()
}

func (t *TrayApp) onReady(stop chan struct{}) {
	systray.SetIcon(iconData)
	systray.SetTitle("") // Empty title for cleaner menu bar (macOS)
	systray.SetTooltip("NFC Tag ID")

	mVersion := systray.AddMenuItem(versionLabel(api.Version), "")
	mVersion.Disable()

	systray.AddSeparator()

	menu := &menuItems{
		status:  systray.AddMenuItem(statusLabel(false), "Server status"),
		readers: systray.AddMenuItem(readersLabel(-1), "Connected NFC readers"),
		lastTag: systray.AddMenuItem(lastTagLabel(""), "Most recent tag UID"),
	}
	menu.status.Disable()
	menu.readers.Disable()
	menu.lastTag.Disable()

	systray.AddSeparator()
	mOpenUI := systray.AddMenuItem("Open Status Page", "Open status page in browser")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit NFC Tag ID")

	t.mu.Lock()
	t.menu = menu
	t.renderLocked()
	t.mu.Unlock()

	go t.watchReaders(stop, 5*time.Second)

	go func() {
		for {
			select {
			case <-mOpenUI.ClickedCh:
				openBrowser(t.StatusURL())
			case <-mQuit.ClickedCh:
				systray.Quit()
			case <-stop:
				return
			}
		}
	}()
}

// renderLocked pushes state into the menu. Caller holds t.mu.
func (t *TrayApp) renderLocked() {
	if t.menu == nil {
		return
	}
	t.menu.status.SetTitle(statusLabel(t.running))
	t.menu.readers.SetTitle(readersLabel(t.readerCount))
	t.menu.lastTag.SetTitle(lastTagLabel(t.lastUID))
}

func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	_ = cmd.Start()
}

// IsSupported returns true if the system tray is supported on this platform
func IsSupported() bool {
	return true
}
