package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SimplyPrint/nfc-tagid/internal/logging"
	"github.com/ebfe/scard"
)

// Reader is a PC/SC reader as exposed over the API.
type Reader struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

var (
	// ErrNoCard is returned when the reader has no tag in its field.
	ErrNoCard = errors.New("no card present")
	// ErrNoIdentifier is returned when a tag is present but yielded no UID.
	ErrNoIdentifier = errors.New("no identifier available")
)

// ReaderService talks to PC/SC through a ContextFactory.
type ReaderService struct {
	factory ContextFactory
}

var (
	_ ReaderOperations = (*ReaderService)(nil)
	_ CardOperations   = (*ReaderService)(nil)
)

// NewReaderService creates a service. A nil factory uses the real PC/SC stack.
func NewReaderService(factory ContextFactory) *ReaderService {
	if factory == nil {
		factory = DefaultContextFactory{}
	}
	return &ReaderService{factory: factory}
}

// ListReaders returns the attached readers, or an empty list if PC/SC is unavailable.
func (s *ReaderService) ListReaders() []Reader {
	ctx, err := s.factory.EstablishContext()
	if err != nil {
		logging.Debug(logging.CatCard, "Failed to establish PC/SC context", map[string]any{
			"error": err.Error(),
		})
		return []Reader{}
	}
	defer ctx.Release()

	names, err := ctx.ListReaders()
	if err != nil {
		logging.Debug(logging.CatCard, "Failed to list readers", map[string]any{
			"error": err.Error(),
		})
		return []Reader{}
	}

	readers := make([]Reader, 0, len(names))
	for i, name := range names {
		readers = append(readers, Reader{Index: i, Name: name})
	}
	return readers
}

// OpenTag connects to the tag on readerName. The caller must Close the tag
// and then release the returned context.
func (s *ReaderService) OpenTag(readerName string) (*PCSCTag, SmartCardContext, error) {
	ctx, err := s.factory.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to establish context: %w", err)
	}

	card, err := ctx.Connect(readerName, shareShared, protocolAny)
	if err != nil {
		ctx.Release()
		if isNoCardError(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoCard, readerName)
		}
		return nil, nil, fmt.Errorf("failed to connect to reader: %w", err)
	}
	return NewPCSCTag(card), ctx, nil
}

// isNoCardError reports whether err means the reader field is empty.
func isNoCardError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoCard) ||
		errors.Is(err, scard.ErrNoSmartcard) ||
		errors.Is(err, scard.ErrRemovedCard) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no card") ||
		strings.Contains(msg, "no smart card") ||
		strings.Contains(msg, "card is not present")
}
