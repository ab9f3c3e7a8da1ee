package api

import (
	"errors"
	"fmt"

	"github.com/SimplyPrint/nfc-tagid/internal/tagid"
)

// formatRequest carries a UID either as a byte array or as hex text.
type formatRequest struct {
	Bytes []int  `json:"bytes"`
	Hex   string `json:"hex"`
}

type formatResponse struct {
	UID    string `json:"uid"`
	Length int    `json:"length"`
}

type parseRequest struct {
	UID string `json:"uid"`
}

type parseResponse struct {
	Bytes []int  `json:"bytes"`
	UID   string `json:"uid"`
}

var errEmptyFormatRequest = errors.New("bytes or hex is required")

func (r formatRequest) format() (formatResponse, error) {
	var uid []byte
	switch {
	case r.Bytes != nil:
		uid = make([]byte, len(r.Bytes))
		for i, v := range r.Bytes {
			if v < 0 || v > 0xFF {
				return formatResponse{}, fmt.Errorf("byte %d out of range: %d", i, v)
			}
			uid[i] = byte(v)
		}
	case r.Hex != "":
		var err error
		if uid, err = tagid.Parse(r.Hex); err != nil {
			return formatResponse{}, err
		}
	default:
		return formatResponse{}, errEmptyFormatRequest
	}
	return formatResponse{UID: tagid.Format(uid), Length: len(uid)}, nil
}

func (r parseRequest) parse() (parseResponse, error) {
	uid, err := tagid.Parse(r.UID)
	if err != nil {
		return parseResponse{}, err
	}
	out := make([]int, len(uid))
	for i, b := range uid {
		out[i] = int(b)
	}
	return parseResponse{Bytes: out, UID: tagid.Format(uid)}, nil
}
