package core

// SmartCardContext is the slice of a PC/SC context the agent uses.
type SmartCardContext interface {
	ListReaders() ([]string, error)
	Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error)
	Release() error
}

// SmartCard is a connected tag that accepts APDUs.
type SmartCard interface {
	Transmit(cmd []byte) ([]byte, error)
	Status() (SmartCardStatus, error)
	Disconnect(disposition uint32) error
}

// SmartCardStatus mirrors scard.CardStatus.
type SmartCardStatus struct {
	Reader         string
	State          uint32
	ActiveProtocol uint32
	Atr            []byte
}

// ContextFactory opens PC/SC contexts. Tests substitute a mock.
type ContextFactory interface {
	EstablishContext() (SmartCardContext, error)
}

// CardOperations reads the tag currently on a reader.
type CardOperations interface {
	ReadCard(readerName string) (*Card, error)
}

// ReaderOperations lists attached readers.
type ReaderOperations interface {
	ListReaders() []Reader
}
