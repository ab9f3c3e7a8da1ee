package api

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SimplyPrint/nfc-tagid/internal/core"
	"github.com/SimplyPrint/nfc-tagid/internal/logging"
	"github.com/SimplyPrint/nfc-tagid/internal/settings"
	"github.com/SimplyPrint/nfc-tagid/internal/tagid"
)

// fakeBackend implements core.ReaderOperations and core.CardOperations.
type fakeBackend struct {
	mu      sync.Mutex
	readers []core.Reader
	cards   map[string]*core.Card
	errs    map[string]error
	reads   int
	delay   time.Duration
}

func newFakeBackend(names ...string) *fakeBackend {
	f := &fakeBackend{
		cards: make(map[string]*core.Card),
		errs:  make(map[string]error),
	}
	for i, name := range names {
		f.readers = append(f.readers, core.Reader{Index: i, Name: name})
	}
	return f
}

func (f *fakeBackend) ListReaders() []core.Reader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Reader{}, f.readers...)
}

func (f *fakeBackend) ReadCard(readerName string) (*core.Card, error) {
	f.mu.Lock()
	delay := f.delay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++

	if err, ok := f.errs[readerName]; ok {
		return nil, err
	}
	card, ok := f.cards[readerName]
	if !ok {
		return nil, core.ErrNoCard
	}
	return card, nil
}

// setTag places a tag with the given UID bytes on reader.
func (f *fakeBackend) setTag(readerName string, uid ...byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, readerName)
	f.cards[readerName] = &core.Card{
		Reader: readerName,
		UID:    tagid.Format(uid),
		Family: tagid.FamilyMIFARE,
	}
}

// setDelay makes every ReadCard take d, like a slow reader.
func (f *fakeBackend) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *fakeBackend) removeTag(readerName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cards, readerName)
}

func (f *fakeBackend) setErr(readerName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[readerName] = err
}

// useBackend installs f for the duration of the test and isolates settings and logs.
func useBackend(t *testing.T, f *fakeBackend) {
	t.Helper()

	oldReaders, oldCards := readerOps, cardOps
	SetBackend(f, f)
	settings.SetPath(filepath.Join(t.TempDir(), "settings.json"))
	logging.Get().SetEcho(false)

	t.Cleanup(func() {
		SetBackend(oldReaders, oldCards)
		SetTagListener(nil)
		settings.SetPath("")
	})
}
