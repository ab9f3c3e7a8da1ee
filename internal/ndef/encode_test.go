package ndef

import (
	"encoding/binary"
	"strings"
)

// Builders for the memory layouts the decoder is tested against.

const flagMB = 0x80

func encodeTLV(msg []byte) []byte {
	out := []byte{TLVNDEF}
	if len(msg) < 0xFF {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, 0xFF, byte(len(msg)>>8), byte(len(msg)))
	}
	out = append(out, msg...)
	return append(out, TLVTerminator)
}

func encode(records []Record) []byte {
	var out []byte
	for n, r := range records {
		header := r.TNF & 0x07
		if n == 0 {
			header |= flagMB
		}
		if n == len(records)-1 {
			header |= flagME
		}
		short := len(r.Payload) <= 0xFF
		if short {
			header |= flagSR
		}
		if len(r.ID) > 0 {
			header |= flagIL
		}

		out = append(out, header, byte(len(r.Type)))
		if short {
			out = append(out, byte(len(r.Payload)))
		} else {
			out = binary.BigEndian.AppendUint32(out, uint32(len(r.Payload)))
		}
		if len(r.ID) > 0 {
			out = append(out, byte(len(r.ID)))
		}
		out = append(out, r.Type...)
		out = append(out, r.ID...)
		out = append(out, r.Payload...)
	}
	return out
}

func textRecord(text, lang string) Record {
	if lang == "" {
		lang = "en"
	}
	payload := append([]byte{byte(len(lang))}, lang...)
	return Record{TNF: TNFWellKnown, Type: []byte("T"), Payload: append(payload, text...)}
}

// uriRecord abbreviates uri with the longest matching prefix.
func uriRecord(uri string) Record {
	best := 0
	for code := 1; code < len(uriPrefixes); code++ {
		p := uriPrefixes[code]
		if strings.HasPrefix(uri, p) && len(p) > len(uriPrefixes[best]) {
			best = code
		}
	}
	payload := append([]byte{byte(best)}, uri[len(uriPrefixes[best]):]...)
	return Record{TNF: TNFWellKnown, Type: []byte("U"), Payload: payload}
}
