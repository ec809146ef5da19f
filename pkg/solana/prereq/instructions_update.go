package prereq

import (
	"github.com/code-payments/solana-prereq/pkg/solana"
	bin "github.com/code-payments/solana-prereq/pkg/solana/binary"
)

type UpdateInstructionArgs struct {
	Github []byte
}

func (a *UpdateInstructionArgs) Type() InstructionType {
	return InstructionTypeUpdate
}

func (a *UpdateInstructionArgs) size() int {
	return bin.BytesSize(a.Github)
}

func (a *UpdateInstructionArgs) marshal(dst []byte, offset *int) {
	bin.PutBytes(dst[*offset:], a.Github, offset)
}

type UpdateInstructionAccounts = InstructionAccounts

// NewUpdateInstruction replaces the github handle recorded in an existing
// prereq account.
func NewUpdateInstruction(
	accounts *UpdateInstructionAccounts,
	args *UpdateInstructionArgs,
) (solana.Instruction, error) {
	return NewInstruction(InstructionTypeUpdate, accounts.keys(), args)
}

type DecompiledUpdate struct {
	Accounts *UpdateInstructionAccounts
	Args     *UpdateInstructionArgs
}

func DecompileUpdate(m solana.Message, index int) (*DecompiledUpdate, error) {
	accounts, args, err := decompile(m, index, InstructionTypeUpdate)
	if err != nil {
		return nil, err
	}

	return &DecompiledUpdate{
		Accounts: accounts,
		Args:     args.(*UpdateInstructionArgs),
	}, nil
}
