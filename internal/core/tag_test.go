package core

import (
	"bytes"
	"errors"
	"testing"

	"github.com/SimplyPrint/nfc-tagid/internal/tagid"
)

func TestClassifyATR(t *testing.T) {
	tests := []struct {
		name string
		atr  []byte
		want tagid.Family
	}{
		{"NTAG", atrNTAG, tagid.FamilyMIFARE},
		{"MIFARE Classic", atrClassic, tagid.FamilyMIFARE},
		{"ISO 15693", atrISO15693, tagid.FamilyISO15693},
		{"FeliCa", atrFeliCa, tagid.FamilyFeliCa},
		{"DESFire", atrDESFire, tagid.FamilyISO7816},
		{"empty", nil, tagid.FamilyUnknown},
		{"RID without standard byte", mustHex("3b8f8001804f0ca000000306"), tagid.FamilyUnknown},
		{"unknown standard", mustHex("3b8f8001804f0ca0000003067f00000000000000"), tagid.FamilyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyATR(tt.atr); got != tt.want {
				t.Errorf("ClassifyATR(%x) = %s, want %s", tt.atr, got, tt.want)
			}
		})
	}
}

func TestPCSCTagIdentifier(t *testing.T) {
	card := NewMockCard("NTAG213")
	tag := NewPCSCTag(card)

	if !tag.Connected() {
		t.Fatal("expected tag to be connected")
	}
	id, err := tag.Identifier()
	if err != nil {
		t.Fatalf("Identifier failed: %v", err)
	}
	if !bytes.Equal(id, mustHex("0442488a837280")) {
		t.Errorf("Identifier = %x", id)
	}
	if got := tagid.Format(tagid.UID(tag)); got != "04:42:48:8A:83:72:80" {
		t.Errorf("formatted UID = %q", got)
	}
	if sent := card.sent(); len(sent) == 0 || sent[len(sent)-1] != "ffca000000" {
		t.Errorf("unexpected commands: %v", sent)
	}
}

func TestPCSCTagIdentifierBadStatus(t *testing.T) {
	tests := []struct {
		name string
		rsp  []byte
	}{
		{"not supported", []byte{0x6A, 0x81}},
		{"wrong length", []byte{0x04, 0x11, 0x67, 0x00}},
		{"too short", []byte{0x90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag := NewPCSCTag(NewMockCard("NTAG213").WithUIDResponse(tt.rsp))
			if _, err := tag.Identifier(); err == nil {
				t.Error("expected an error")
			}
			if uid := tagid.UID(tag); len(uid) != 0 {
				t.Errorf("UID = %x, want empty", uid)
			}
		})
	}
}

func TestPCSCTagOnlyStatusWord(t *testing.T) {
	tag := NewPCSCTag(NewMockCard("NTAG213").WithUIDResponse([]byte{0x90, 0x00}))

	id, err := tag.Identifier()
	if err != nil {
		t.Fatalf("Identifier failed: %v", err)
	}
	if len(id) != 0 {
		t.Errorf("Identifier = %x, want empty", id)
	}
	if got := tagid.Identify(tag); !got.Empty() || got.String != "" {
		t.Errorf("Identify = %+v, want empty", got)
	}
}

func TestPCSCTagDisconnected(t *testing.T) {
	card := NewMockCard("ISO 15693")
	tag := NewPCSCTag(card)
	card.WithStatusError(errors.New("card removed"))

	if tag.Connected() {
		t.Error("expected tag to be disconnected")
	}
	if uid := tagid.UID(tag); uid != nil {
		t.Errorf("UID = %x, want nil", uid)
	}
	if sent := card.sent(); len(sent) != 0 {
		t.Errorf("no command should be sent to a disconnected tag, got %v", sent)
	}
	// the ATR was captured before removal
	if tag.Family() != tagid.FamilyISO15693 {
		t.Errorf("Family = %s", tag.Family())
	}
}

func TestPCSCTagClose(t *testing.T) {
	card := NewMockCard("FeliCa")
	tag := NewPCSCTag(card)

	if err := tag.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := tag.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if tag.Connected() {
		t.Error("closed tag reports connected")
	}
	if _, err := tag.Identifier(); err == nil {
		t.Error("expected an error from a closed tag")
	}
	if !card.disconnected {
		t.Error("card was not disconnected")
	}
}

func TestPCSCTagIdentity(t *testing.T) {
	tests := []struct {
		cardType string
		uid      string
		family   tagid.Family
	}{
		{"MIFARE Classic", "93:2B:AE:0E", tagid.FamilyMIFARE},
		{"ISO 15693", "80:39:15:66:08:01:04:E0", tagid.FamilyISO15693},
		{"FeliCa", "01:2E:4C:D7:C2:1A:3B:05", tagid.FamilyFeliCa},
		{"DESFire", "04:51:3C:7A:2B:5E:80", tagid.FamilyISO7816},
	}

	for _, tt := range tests {
		t.Run(tt.cardType, func(t *testing.T) {
			id := tagid.Identify(NewPCSCTag(NewMockCard(tt.cardType)))
			if id.String != tt.uid {
				t.Errorf("uid = %q, want %q", id.String, tt.uid)
			}
			if id.Family != tt.family {
				t.Errorf("family = %s, want %s", id.Family, tt.family)
			}
		})
	}
}

func TestNilPCSCTag(t *testing.T) {
	var tag *PCSCTag

	if tag.Connected() {
		t.Error("nil tag reported connected")
	}
	if _, err := tag.Identifier(); err == nil {
		t.Error("expected an error from a nil tag")
	}
	if got := tag.Family(); got != tagid.FamilyUnknown {
		t.Errorf("Family = %q, want Unknown", got)
	}
	if err := tag.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}

	if uid := tagid.UID(tag); len(uid) != 0 {
		t.Errorf("tagid.UID(nil tag) = %x", uid)
	}
}
