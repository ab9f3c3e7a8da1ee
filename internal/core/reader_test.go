package core

import (
	"errors"
	"testing"

	"github.com/ebfe/scard"
)

func TestListReaders(t *testing.T) {
	svc := NewReaderService(&mockFactory{ctx: NewMockContext()})

	readers := svc.ListReaders()
	if len(readers) != 3 {
		t.Fatalf("expected 3 readers, got %d", len(readers))
	}
	for i, r := range readers {
		if r.Index != i {
			t.Errorf("reader %d has index %d", i, r.Index)
		}
	}
	if readers[0].Name != "ACS ACR122U PICC Interface" {
		t.Errorf("unexpected first reader %q", readers[0].Name)
	}
}

func TestListReadersUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		factory *mockFactory
	}{
		{"no context", &mockFactory{err: errors.New("service not available")}},
		{"list fails", &mockFactory{ctx: NewMockContext().WithError("no readers available")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readers := NewReaderService(tt.factory).ListReaders()
			if readers == nil || len(readers) != 0 {
				t.Errorf("expected empty non-nil list, got %#v", readers)
			}
		})
	}
}

func TestOpenTagNoCard(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"scard no smartcard", scard.ErrNoSmartcard},
		{"scard removed", scard.ErrRemovedCard},
		{"message", errors.New("No smart card inserted")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewMockContext().WithConnectError(tt.err)
			svc := NewReaderService(&mockFactory{ctx: ctx})

			_, _, err := svc.OpenTag("ACS ACR122U PICC Interface")
			if !errors.Is(err, ErrNoCard) {
				t.Errorf("expected ErrNoCard, got %v", err)
			}
			if ctx.released != 1 {
				t.Errorf("context released %d times", ctx.released)
			}
		})
	}
}

func TestOpenTagConnectError(t *testing.T) {
	ctx := NewMockContext().WithConnectError(errors.New("sharing violation"))
	_, _, err := NewReaderService(&mockFactory{ctx: ctx}).OpenTag("reader")
	if err == nil || errors.Is(err, ErrNoCard) {
		t.Errorf("expected a plain connect error, got %v", err)
	}
}
