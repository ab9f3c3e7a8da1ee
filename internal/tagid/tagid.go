// Package tagid extracts the unique identifier (UID) of an NFC tag and renders
// it as text.
//
// A tag is anything that can report whether it is still in the field and hand
// back its identity bytes. Extraction never fails loudly: a tag that cannot
// produce an identifier yields an empty UID, and callers treat that as "read
// failed, try again".
package tagid

import (
	"bytes"
	"reflect"

	"github.com/SimplyPrint/nfc-tagid/internal/logging"
)

// Tag is the capability set the helper needs from a hardware tag handle.
type Tag interface {
	// Connected reports whether the tag is currently reachable.
	Connected() bool
	// Identifier returns the identity bytes reported by the tag.
	Identifier() ([]byte, error)
}

// UID returns a copy of the identifier bytes reported by tag.
// The result is empty if tag is nil, disconnected, or its accessor fails.
func UID(tag Tag) []byte {
	if isNil(tag) || !tag.Connected() {
		return nil
	}

	id, err := tag.Identifier()
	if err != nil {
		logging.Debug(logging.CatCard, "Tag identifier unavailable", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if len(id) == 0 {
		return nil
	}

	return bytes.Clone(id)
}

// Identity is a tag UID together with its rendering and family.
type Identity struct {
	UID    []byte `json:"-"`
	String string `json:"uid"`
	Family Family `json:"family"`
}

// Empty reports whether no identifier was available.
func (i Identity) Empty() bool {
	return len(i.UID) == 0
}

// Identify reads the UID from tag and classifies it.
func Identify(tag Tag) Identity {
	uid := UID(tag)
	id := Identity{
		UID:    uid,
		String: Format(uid),
		Family: FamilyOf(tag),
	}

	logging.Debug(logging.CatCard, "Tag identified", map[string]any{
		"uid":    id.String,
		"family": string(id.Family),
	})

	return id
}

// isNil also catches an interface holding a nil pointer, such as a
// (*core.PCSCTag)(nil) passed through as a Tag.
func isNil(tag Tag) bool {
	if tag == nil {
		return true
	}
	v := reflect.ValueOf(tag)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
