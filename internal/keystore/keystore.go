// Package keystore manages the 32-byte data encryption key that gives the
// sync agent its zero-knowledge property: the key is held in memory only
// while sync is active and is never persisted in the clear.
package keystore

import "errors"

// ErrLocked is returned by Key when the store has not been unlocked.
var ErrLocked = errors.New("keystore: locked")

// Keystore is the narrow interface the core consumes: unlock
// derives/decrypts the key from a master password, lock discards it from
// memory, export/import move the encrypted key material between machines
// (e.g. to bootstrap a second client onto the same encrypted sync root).
// Consumer-defined per the "accept interfaces, return structs" convention —
// the concrete implementation lives in this same package only because there
// is exactly one realistic local implementation; callers
// outside keystore should still depend on this interface, not *LocalStore.
type Keystore interface {
	Unlock(masterPassword string) ([]byte, error)
	Lock()
	Export() (string, error)
	Import(encoded, masterPassword string) error
}
