package interfaces

import "context"

// -----------------------------------------------------------------------------
// ISymbolLocker serialises work on one symbol so a metrics read never races an
// in-flight price write for the same symbol.
// -----------------------------------------------------------------------------

type ISymbolLocker interface {

	// Lock blocks until the symbol is held or ctx is done. The returned
	// function releases the lock and is safe to call once.
	Lock(ctx context.Context, symbol string) (func(), error)
}
