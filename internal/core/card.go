package core

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/SimplyPrint/nfc-tagid/internal/logging"
	"github.com/SimplyPrint/nfc-tagid/internal/ndef"
	"github.com/SimplyPrint/nfc-tagid/internal/tagid"
)

// Card is the result of reading the tag on a reader.
type Card struct {
	Reader  string       `json:"reader"`
	UID     string       `json:"uid"`
	UIDHex  string       `json:"uidHex"`
	ATR     string       `json:"atr,omitempty"`
	Family  tagid.Family `json:"family"`
	Records []ndef.View  `json:"records,omitempty"`
}

// Type 2 tag memory layout.
const (
	ccPage        = 3
	dataStartPage = 4
	pageSize      = 4
	readChunk     = 16
	// NTAG216 user memory, the largest Type 2 tag we expect.
	maxNDEFArea = 888
)

// ReadCard connects to readerName, identifies the tag and reads any NDEF
// message it carries. A tag that answers without a UID yields ErrNoIdentifier.
func (s *ReaderService) ReadCard(readerName string) (*Card, error) {
	tag, ctx, err := s.OpenTag(readerName)
	if err != nil {
		return nil, err
	}
	defer ctx.Release()
	defer tag.Close()

	id := tagid.Identify(tag)
	if id.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoIdentifier, readerName)
	}

	card := &Card{
		Reader: readerName,
		UID:    id.String,
		UIDHex: hex.EncodeToString(id.UID),
		ATR:    hex.EncodeToString(tag.ATR()),
		Family: id.Family,
	}

	if id.Family == tagid.FamilyMIFARE {
		records, err := readType2NDEF(tag)
		if err != nil {
			logging.Debug(logging.CatCard, "No NDEF message read", map[string]any{
				"reader": readerName,
				"uid":    card.UID,
				"error":  err.Error(),
			})
		} else {
			card.Records = ndef.Views(records)
		}
	}

	logging.Debug(logging.CatCard, "Card read", map[string]any{
		"reader":  readerName,
		"uid":     card.UID,
		"family":  string(card.Family),
		"records": len(card.Records),
	})
	return card, nil
}

// readPages reads 16 bytes starting at page.
func readPages(tag *PCSCTag, page int) ([]byte, error) {
	return tag.transmit([]byte{0xFF, 0xB0, 0x00, byte(page), readChunk})
}

// readType2NDEF reads the capability container and then user memory in
// 16 byte chunks until the NDEF TLV is complete.
func readType2NDEF(tag *PCSCTag) ([]ndef.Record, error) {
	cc, err := readPages(tag, ccPage)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability container: %w", err)
	}
	if len(cc) < 4 || cc[0] != 0xE1 {
		return nil, fmt.Errorf("tag is not NDEF formatted")
	}

	size := int(cc[2]) * 8
	if size == 0 || size > maxNDEFArea {
		size = maxNDEFArea
	}

	var data []byte
	for offset := 0; offset < size; offset += readChunk {
		chunk, err := readPages(tag, dataStartPage+offset/pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", dataStartPage+offset/pageSize, err)
		}
		data = append(data, chunk...)

		msg, err := ndef.ParseTLV(data)
		switch {
		case err == nil:
			return ndef.ParseMessage(msg)
		case errors.Is(err, ndef.ErrTruncated):
			continue
		default:
			return nil, err
		}
	}
	return nil, ndef.ErrTruncated
}
