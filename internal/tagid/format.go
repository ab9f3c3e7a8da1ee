package tagid

import (
	"errors"
	"strings"
)

const hexChars = "0123456789ABCDEF"

// Separator joins the hex pairs of a formatted UID.
const Separator = ':'

// ErrInvalidUID is returned by Parse for text that is not a hex UID.
var ErrInvalidUID = errors.New("invalid tag UID")

// Format renders uid as colon-separated uppercase hex (e.g. "04:A1:3F").
// An empty uid renders as an empty string.
func Format(uid []byte) string {
	if len(uid) == 0 {
		return ""
	}

	buf := make([]byte, len(uid)*3-1)
	for i, b := range uid {
		if i > 0 {
			buf[i*3-1] = Separator
		}
		buf[i*3] = hexChars[b>>4]
		buf[i*3+1] = hexChars[b&0x0F]
	}

	return string(buf)
}

// Parse decodes a UID string back into bytes.
//
// Besides the Format output it accepts lowercase digits and pairs separated by
// '-' or ' ', or not separated at all. A string must stick to one separator.
func Parse(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []byte{}, nil
	}

	sep := byte(0)
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == ':' || c == '-' || c == ' ' {
			sep = c
			break
		}
	}

	var digits string
	if sep == 0 {
		digits = s
	} else {
		parts := strings.Split(s, string(sep))
		for _, p := range parts {
			if len(p) != 2 {
				return nil, ErrInvalidUID
			}
		}
		digits = strings.Join(parts, "")
	}

	if len(digits)%2 != 0 {
		return nil, ErrInvalidUID
	}

	out := make([]byte, len(digits)/2)
	for i := range out {
		hi, ok1 := fromHexChar(digits[i*2])
		lo, ok2 := fromHexChar(digits[i*2+1])
		if !ok1 || !ok2 {
			return nil, ErrInvalidUID
		}
		out[i] = hi<<4 | lo
	}

	return out, nil
}

func fromHexChar(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
