// Package ndef decodes NDEF messages read from tags and renders records in
// the JSON shape served to clients.
package ndef

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// Type Name Format values.
const (
	TNFEmpty     byte = 0x00
	TNFWellKnown byte = 0x01
	TNFMedia     byte = 0x02
	TNFURI       byte = 0x03
	TNFExternal  byte = 0x04
	TNFUnknown   byte = 0x05
	TNFUnchanged byte = 0x06
)

// TLV block types in Type 2 tag memory.
const (
	TLVNull       byte = 0x00
	TLVNDEF       byte = 0x03
	TLVTerminator byte = 0xFE
)

const (
	flagME = 0x40
	flagCF = 0x20
	flagSR = 0x10
	flagIL = 0x08
)

var (
	// ErrNoMessage means the memory holds no NDEF message TLV.
	ErrNoMessage = errors.New("no NDEF message")
	// ErrTruncated means the data ended before a TLV or record was complete.
	ErrTruncated = errors.New("truncated NDEF data")
)

// Record is a single NDEF record.
type Record struct {
	TNF     byte
	Type    []byte
	ID      []byte
	Payload []byte
}

// ParseTLV returns the value of the first NDEF message TLV in data.
// Null TLVs are skipped and other TLVs are stepped over by length. Reaching a
// terminator gives ErrNoMessage; running out of data gives ErrTruncated.
func ParseTLV(data []byte) ([]byte, error) {
	i := 0
	for i < len(data) {
		t := data[i]
		i++
		switch t {
		case TLVNull:
			continue
		case TLVTerminator:
			return nil, ErrNoMessage
		}

		if i >= len(data) {
			return nil, ErrTruncated
		}
		length := int(data[i])
		i++
		if length == 0xFF {
			if i+2 > len(data) {
				return nil, ErrTruncated
			}
			length = int(binary.BigEndian.Uint16(data[i : i+2]))
			i += 2
		}
		if i+length > len(data) {
			return nil, ErrTruncated
		}
		if t == TLVNDEF {
			return data[i : i+length], nil
		}
		i += length
	}
	return nil, ErrTruncated
}

// ParseMessage decodes the records of an NDEF message.
// Chunked records are not supported.
func ParseMessage(b []byte) ([]Record, error) {
	var records []Record
	i := 0
	for i < len(b) {
		if i+2 > len(b) {
			return nil, ErrTruncated
		}
		header := b[i]
		typeLen := int(b[i+1])
		i += 2

		if header&flagCF != 0 {
			return nil, fmt.Errorf("chunked record at offset %d: unsupported", i-2)
		}

		var payloadLen int
		if header&flagSR != 0 {
			if i+1 > len(b) {
				return nil, ErrTruncated
			}
			payloadLen = int(b[i])
			i++
		} else {
			if i+4 > len(b) {
				return nil, ErrTruncated
			}
			payloadLen = int(binary.BigEndian.Uint32(b[i : i+4]))
			i += 4
		}

		idLen := 0
		if header&flagIL != 0 {
			if i+1 > len(b) {
				return nil, ErrTruncated
			}
			idLen = int(b[i])
			i++
		}

		if payloadLen < 0 || i+typeLen+idLen+payloadLen > len(b) {
			return nil, ErrTruncated
		}

		rec := Record{TNF: header & 0x07}
		rec.Type = b[i : i+typeLen]
		i += typeLen
		rec.ID = b[i : i+idLen]
		i += idLen
		rec.Payload = b[i : i+payloadLen]
		i += payloadLen

		records = append(records, rec)
		if header&flagME != 0 {
			break
		}
	}
	return records, nil
}

// View is the client-facing JSON rendering of a record.
type View struct {
	TNF                       byte   `json:"tnf"`
	Type                      int    `json:"type"`
	ID                        []int  `json:"id"`
	Payload                   []int  `json:"payload"`
	PayloadAsHexString        string `json:"payloadAsHexString"`
	PayloadAsStringWithPrefix string `json:"payloadAsStringWithPrefix"`
	PayloadAsString           string `json:"payloadAsString"`
}

// View renders the record. Text records lose their language prefix and URI
// records get their abbreviation expanded in PayloadAsString.
func (r Record) View() View {
	v := View{
		TNF:                       r.TNF,
		Type:                      -1,
		ID:                        toInts(r.ID),
		Payload:                   toInts(r.Payload),
		PayloadAsHexString:        hex.EncodeToString(r.Payload),
		PayloadAsStringWithPrefix: string(r.Payload),
	}
	v.PayloadAsString = v.PayloadAsStringWithPrefix
	if len(r.Type) > 0 {
		v.Type = int(r.Type[0])
	}

	if r.TNF != TNFWellKnown || len(r.Type) != 1 || len(r.Payload) == 0 {
		return v
	}

	switch r.Type[0] {
	case 'T':
		langLen := int(r.Payload[0] & 0x3F)
		if 1+langLen <= len(r.Payload) {
			v.PayloadAsString = string(r.Payload[1+langLen:])
		}
	case 'U':
		v.PayloadAsString = URIPrefix(r.Payload[0]) + string(r.Payload[1:])
	}
	return v
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, c := range b {
		out[i] = int(c)
	}
	return out
}

// Views renders a list of records.
func Views(records []Record) []View {
	out := make([]View, 0, len(records))
	for _, r := range records {
		out = append(out, r.View())
	}
	return out
}
