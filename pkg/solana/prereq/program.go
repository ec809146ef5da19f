// Package prereq builds and decodes instructions for the prerequisite
// enrollment program.
package prereq

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrInvalidInstructionData = errors.New("unexpected instruction data")
	ErrArgsMismatch           = errors.New("instruction args do not match instruction type")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("Trb3aEx85DW1cEEvoqEaBkMn1tfmNEEEPaKzLSu4YAv")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

var (
	SYSTEM_PROGRAM_ID = ed25519.PublicKey(mustBase58Decode("11111111111111111111111111111111"))
)

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
