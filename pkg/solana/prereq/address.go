package prereq

import (
	"crypto/ed25519"

	"github.com/code-payments/solana-prereq/pkg/solana"
)

var (
	PrereqPrefix = []byte("prereq")
)

type GetPrereqAddressArgs struct {
	Owner ed25519.PublicKey
}

// GetPrereqAddress derives the account that records an owner's enrollment.
func GetPrereqAddress(args *GetPrereqAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		PROGRAM_ID,
		PrereqPrefix,
		args.Owner,
	)
}
