package prereq

import (
	"github.com/code-payments/solana-prereq/pkg/solana"
	bin "github.com/code-payments/solana-prereq/pkg/solana/binary"
)

type CompleteInstructionArgs struct {
	Github []byte
}

func (a *CompleteInstructionArgs) Type() InstructionType {
	return InstructionTypeComplete
}

func (a *CompleteInstructionArgs) size() int {
	return bin.BytesSize(a.Github)
}

func (a *CompleteInstructionArgs) marshal(dst []byte, offset *int) {
	bin.PutBytes(dst[*offset:], a.Github, offset)
}

type CompleteInstructionAccounts = InstructionAccounts

// NewCompleteInstruction enrolls the signer, creating its prereq account.
func NewCompleteInstruction(
	accounts *CompleteInstructionAccounts,
	args *CompleteInstructionArgs,
) (solana.Instruction, error) {
	return NewInstruction(InstructionTypeComplete, accounts.keys(), args)
}

type DecompiledComplete struct {
	Accounts *CompleteInstructionAccounts
	Args     *CompleteInstructionArgs
}

func DecompileComplete(m solana.Message, index int) (*DecompiledComplete, error) {
	accounts, args, err := decompile(m, index, InstructionTypeComplete)
	if err != nil {
		return nil, err
	}

	return &DecompiledComplete{
		Accounts: accounts,
		Args:     args.(*CompleteInstructionArgs),
	}, nil
}
