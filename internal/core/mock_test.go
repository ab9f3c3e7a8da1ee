package core

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/SimplyPrint/nfc-tagid/internal/ndef"
)

// MockSmartCardContext implements SmartCardContext for testing
type MockSmartCardContext struct {
	readers     []string
	cards       map[string]*MockSmartCard
	connectErr  error
	shouldError bool
	errorMsg    string
	released    int
}

// MockSmartCard implements SmartCard for testing
type MockSmartCard struct {
	mu           sync.Mutex
	atr          []byte
	uid          []byte
	responses    map[string][]byte // command hex -> response
	shouldError  bool
	errorMsg     string
	statusErr    error
	disconnected bool
	transmits    []string
}

// mockFactory hands out the same mock context every time.
type mockFactory struct {
	ctx *MockSmartCardContext
	err error
}

func (f *mockFactory) EstablishContext() (SmartCardContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

// NewMockContext creates a new mock context with predefined readers
func NewMockContext() *MockSmartCardContext {
	return &MockSmartCardContext{
		readers: []string{
			"ACS ACR122U PICC Interface",
			"ACS ACR1552 1S CL Reader PICC",
			"ACS ACR1252 Dual Reader PICC",
		},
		cards: make(map[string]*MockSmartCard),
	}
}

// WithReaders sets the readers for the mock context
func (m *MockSmartCardContext) WithReaders(readers []string) *MockSmartCardContext {
	m.readers = readers
	return m
}

// WithCard adds a mock card to a specific reader
func (m *MockSmartCardContext) WithCard(readerName string, card *MockSmartCard) *MockSmartCardContext {
	m.cards[readerName] = card
	return m
}

// WithError makes the context return errors
func (m *MockSmartCardContext) WithError(msg string) *MockSmartCardContext {
	m.shouldError = true
	m.errorMsg = msg
	return m
}

// WithConnectError makes Connect fail with err for readers without a card.
func (m *MockSmartCardContext) WithConnectError(err error) *MockSmartCardContext {
	m.connectErr = err
	return m
}

func (m *MockSmartCardContext) ListReaders() ([]string, error) {
	if m.shouldError {
		return nil, errors.New(m.errorMsg)
	}
	return m.readers, nil
}

func (m *MockSmartCardContext) Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error) {
	if m.shouldError {
		return nil, errors.New(m.errorMsg)
	}
	card, ok := m.cards[reader]
	if !ok {
		if m.connectErr != nil {
			return nil, m.connectErr
		}
		return nil, errors.New("no card present")
	}
	return card, nil
}

func (m *MockSmartCardContext) Release() error {
	m.released++
	return nil
}

// ATRs captured from real tags on ACS readers.
var (
	atrNTAG     = mustHex("3b8f8001804f0ca0000003060300030000000068")
	atrClassic  = mustHex("3b8f8001804f0ca000000306030001000000006a")
	atrISO15693 = mustHex("3b8f8001804f0ca0000003060b00140000000077")
	atrFeliCa   = mustHex("3b8f8001804f0ca00000030611003b0000000042")
	atrDESFire  = mustHex("3b8180018080")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// NewMockCard creates a mock card with realistic data
func NewMockCard(cardType string) *MockSmartCard {
	card := &MockSmartCard{
		responses: make(map[string][]byte),
	}

	switch cardType {
	case "MIFARE Classic":
		card.atr = atrClassic
		card.uid = mustHex("932bae0e")
	case "ISO 15693":
		card.atr = atrISO15693
		card.uid = mustHex("80391566080104e0")
	case "FeliCa":
		card.atr = atrFeliCa
		card.uid = mustHex("012e4cd7c21a3b05")
	case "DESFire":
		card.atr = atrDESFire
		card.uid = mustHex("04513c7a2b5e80")
	case "NTAG213":
		card.atr = atrNTAG
		card.uid = mustHex("0442488a837280")
		// NTAG213 CC with size 0x12, no NDEF message yet
		card.responses["ffb0000310"] = []byte{0xE1, 0x10, 0x12, 0x00, 0x03, 0x00, 0xFE, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x90, 0x00}
	case "MIFARE Ultralight":
		// plain Ultralight without an NDEF capability container
		card.atr = atrNTAG
		card.uid = mustHex("ff0f39c8d60000")
		card.responses["ffb0000310"] = append(make([]byte, 16), 0x90, 0x00)
	default:
		card.atr = atrNTAG
		card.uid = mustHex("04000000000000")
	}

	card.responses["ffca000000"] = append(append([]byte{}, card.uid...), 0x90, 0x00)
	return card
}

// WithUIDResponse replaces the raw GET UID response, status word included.
func (m *MockSmartCard) WithUIDResponse(rsp []byte) *MockSmartCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses["ffca000000"] = rsp
	return m
}

// WithNDEF lays out records as Type 2 memory starting at page 4.
func (m *MockSmartCard) WithNDEF(records ...ndef.Record) *MockSmartCard {
	m.mu.Lock()
	defer m.mu.Unlock()

	memory := type2Memory(records)
	size := (len(memory) + 15) / 16 * 16
	memory = append(memory, make([]byte, size-len(memory))...)

	cc := []byte{0xE1, 0x10, byte((size + 7) / 8), 0x00}
	m.responses["ffb0000310"] = append(append(cc, make([]byte, 12)...), 0x90, 0x00)

	for offset := 0; offset < len(memory); offset += 16 {
		cmd := hex.EncodeToString([]byte{0xFF, 0xB0, 0x00, byte(4 + offset/4), 0x10})
		m.responses[cmd] = append(append([]byte{}, memory[offset:offset+16]...), 0x90, 0x00)
	}
	return m
}

// type2Memory encodes records as an NDEF message TLV plus terminator.
func type2Memory(records []ndef.Record) []byte {
	var msg []byte
	for n, r := range records {
		header := r.TNF
		if n == 0 {
			header |= 0x80 // MB
		}
		if n == len(records)-1 {
			header |= 0x40 // ME
		}
		if len(r.Payload) <= 0xFF {
			msg = append(msg, header|0x10, byte(len(r.Type)), byte(len(r.Payload)))
		} else {
			msg = append(msg, header, byte(len(r.Type)))
			msg = binary.BigEndian.AppendUint32(msg, uint32(len(r.Payload)))
		}
		msg = append(msg, r.Type...)
		msg = append(msg, r.Payload...)
	}

	out := []byte{ndef.TLVNDEF}
	if len(msg) < 0xFF {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, 0xFF, byte(len(msg)>>8), byte(len(msg)))
	}
	out = append(out, msg...)
	return append(out, ndef.TLVTerminator)
}

func textRecord(text string) ndef.Record {
	return ndef.Record{TNF: ndef.TNFWellKnown, Type: []byte("T"), Payload: append([]byte{0x02, 'e', 'n'}, text...)}
}

// uriRecord uses the https:// abbreviation.
func uriRecord(rest string) ndef.Record {
	return ndef.Record{TNF: ndef.TNFWellKnown, Type: []byte("U"), Payload: append([]byte{0x04}, rest...)}
}

// WithError makes the card return errors
func (m *MockSmartCard) WithError(msg string) *MockSmartCard {
	m.shouldError = true
	m.errorMsg = msg
	return m
}

// WithStatusError makes Status fail, as if the tag left the field.
func (m *MockSmartCard) WithStatusError(err error) *MockSmartCard {
	m.statusErr = err
	return m
}

func (m *MockSmartCard) Transmit(cmd []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmdHex := hex.EncodeToString(cmd)
	m.transmits = append(m.transmits, cmdHex)

	if m.shouldError {
		return nil, errors.New(m.errorMsg)
	}
	if m.disconnected {
		return nil, errors.New("card disconnected")
	}

	if resp, ok := m.responses[cmdHex]; ok {
		return resp, nil
	}

	// Handle read commands - return zeros with success
	if len(cmd) >= 5 && cmd[0] == 0xFF && cmd[1] == 0xB0 {
		return append(make([]byte, int(cmd[4])), 0x90, 0x00), nil
	}

	// Default: command not supported
	return []byte{0x6A, 0x81}, nil
}

func (m *MockSmartCard) Status() (SmartCardStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return SmartCardStatus{}, m.statusErr
	}
	if m.shouldError {
		return SmartCardStatus{}, errors.New(m.errorMsg)
	}

	return SmartCardStatus{
		Reader:         "Mock Reader",
		State:          0,
		ActiveProtocol: 1,
		Atr:            m.atr,
	}, nil
}

func (m *MockSmartCard) Disconnect(disposition uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	return nil
}

func (m *MockSmartCard) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.transmits...)
}
