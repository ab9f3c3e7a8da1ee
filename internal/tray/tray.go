// Package tray shows agent status in the system tray.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/SimplyPrint/nfc-tagid/internal/core"
	"github.com/SimplyPrint/nfc-tagid/internal/logging"
)

// TrayApp manages the system tray icon and menu
type TrayApp struct {
	serverAddr string
	readers    core.ReaderOperations
	onQuit     func()

	mu          sync.Mutex
	running     bool
	readerCount int
	lastUID     string
	menu        *menuItems
}

// New creates a new TrayApp instance
func New(serverAddr string, readers core.ReaderOperations, onQuit func()) *TrayApp {
	return &TrayApp{
		serverAddr:  serverAddr,
		readers:     readers,
		onQuit:      onQuit,
		readerCount: -1,
	}
}

// StatusURL is the address opened by "Open Status Page".
func (t *TrayApp) StatusURL() string {
	return fmt.Sprintf("http://%s/", t.serverAddr)
}

// SetReaderCount updates the displayed reader count
func (t *TrayApp) SetReaderCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readerCount = count
	t.renderLocked()
}

// SetLastTag records the most recent tag read. Its signature matches
// api.SetTagListener.
func (t *TrayApp) SetLastTag(readerName string, card *core.Card) {
	if card == nil || card.UID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastUID = card.UID
	t.renderLocked()
}

func (t *TrayApp) setRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.renderLocked()
}

// watchReaders refreshes the reader count until stop is closed.
func (t *TrayApp) watchReaders(stop <-chan struct{}, every time.Duration) {
	defer logging.RecoverAndLog("tray reader watch", false)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if t.readers != nil {
			t.SetReaderCount(len(t.readers.ListReaders()))
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func versionLabel(version string) string {
	// Only add "v" prefix for proper version numbers, not for dev builds
	if len(version) > 0 && version[0] >= '0' && version[0] <= '9' {
		version = "v" + version
	}
	return "NFC Tag ID " + version
}

func statusLabel(running bool) string {
	if running {
		return "Status: Running"
	}
	return "Status: Starting..."
}

func readersLabel(count int) string {
	switch {
	case count < 0:
		return "Readers: Checking..."
	case count == 0:
		return "Readers: None connected"
	case count == 1:
		return "Readers: 1 connected"
	default:
		return fmt.Sprintf("Readers: %d connected", count)
	}
}

func lastTagLabel(uid string) string {
	if uid == "" {
		return "Last tag: none"
	}
	return "Last tag: " + uid
}
