package core

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/SimplyPrint/nfc-tagid/internal/tagid"
)

// getUIDCmd is the PC/SC pseudo-APDU that asks the reader for the tag UID.
var getUIDCmd = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

// storageCardRID marks a PC/SC part 3 contactless storage card ATR.
var storageCardRID = []byte{0xA0, 0x00, 0x00, 0x03, 0x06}

var errNilTag = errors.New("nil tag handle")

// PCSCTag is a tag handle backed by a connected PC/SC card.
// A nil *PCSCTag behaves as a disconnected tag.
type PCSCTag struct {
	mu     sync.Mutex
	card   SmartCard
	atr    []byte
	closed bool
}

var (
	_ tagid.Tag        = (*PCSCTag)(nil)
	_ tagid.Classifier = (*PCSCTag)(nil)
)

// NewPCSCTag wraps an already connected card. The ATR is read once up front.
func NewPCSCTag(card SmartCard) *PCSCTag {
	t := &PCSCTag{card: card}
	if st, err := card.Status(); err == nil {
		t.atr = bytes.Clone(st.Atr)
	}
	return t
}

// Connected reports whether the card still answers a status query.
func (t *PCSCTag) Connected() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.card == nil {
		return false
	}
	_, err := t.card.Status()
	return err == nil
}

// Identifier sends GET UID and returns the response without its status word.
func (t *PCSCTag) Identifier() ([]byte, error) {
	if t == nil {
		return nil, errNilTag
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.card == nil {
		return nil, fmt.Errorf("tag closed")
	}

	rsp, err := t.card.Transmit(getUIDCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to transmit get UID command: %w", err)
	}
	return checkStatus(rsp)
}

// ATR returns the answer-to-reset captured when the tag was opened.
func (t *PCSCTag) ATR() []byte {
	if t == nil {
		return nil
	}
	return t.atr
}

// Family classifies the tag from its ATR.
func (t *PCSCTag) Family() tagid.Family {
	return ClassifyATR(t.ATR())
}

// Close disconnects from the card, leaving it powered. Closing twice is a no-op.
func (t *PCSCTag) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.card == nil {
		return nil
	}
	t.closed = true
	return t.card.Disconnect(leaveCard)
}

// transmit sends a raw command while holding the tag lock.
func (t *PCSCTag) transmit(cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, fmt.Errorf("tag closed")
	}
	rsp, err := t.card.Transmit(cmd)
	if err != nil {
		return nil, err
	}
	return checkStatus(rsp)
}

// checkStatus strips a trailing 90 00 and rejects any other status word.
func checkStatus(rsp []byte) ([]byte, error) {
	if len(rsp) < 2 {
		return nil, fmt.Errorf("invalid response length: %d", len(rsp))
	}
	sw1, sw2 := rsp[len(rsp)-2], rsp[len(rsp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, fmt.Errorf("command failed with status: %02X %02X", sw1, sw2)
	}
	return rsp[:len(rsp)-2], nil
}

// ClassifyATR maps a PC/SC ATR to a tag family.
//
// Storage cards carry the RID A0 00 00 03 06 followed by the standard byte
// from PC/SC part 3 supplement. Anything else that produced an ATR is treated
// as an ISO 7816-4 card.
func ClassifyATR(atr []byte) tagid.Family {
	if len(atr) == 0 {
		return tagid.FamilyUnknown
	}

	i := bytes.Index(atr, storageCardRID)
	if i < 0 {
		return tagid.FamilyISO7816
	}
	if i+len(storageCardRID) >= len(atr) {
		return tagid.FamilyUnknown
	}

	switch ss := atr[i+len(storageCardRID)]; {
	case ss >= 0x01 && ss <= 0x03: // ISO 14443 A parts 1-3
		return tagid.FamilyMIFARE
	case ss >= 0x09 && ss <= 0x0C: // ISO 15693 parts 1-4
		return tagid.FamilyISO15693
	case ss == 0x11:
		return tagid.FamilyFeliCa
	default:
		return tagid.FamilyUnknown
	}
}
