package prereq

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/solana"
	bin "github.com/code-payments/solana-prereq/pkg/solana/binary"
)

type InstructionType uint8

const (
	InstructionTypeComplete InstructionType = iota
	InstructionTypeUpdate
)

// sha256("global:<name>")[:8]
var (
	completeInstructionDiscriminator = []byte{
		0, 77, 224, 147, 136, 25, 88, 76,
	}
	updateInstructionDiscriminator = []byte{
		219, 200, 88, 176, 158, 63, 253, 127,
	}
)

const discriminatorSize = 8

// Both operations take the same accounts:
//
//  0. [WRITE, SIGNER] Enrolling wallet
//  1. [WRITE] Prereq account, see GetPrereqAddress
//  2. [] System program
var instructionLayout = solana.InstructionLayout{
	Program: PROGRAM_ID,
	Accounts: []solana.AccountLayout{
		{Name: "signer", IsSigner: true, IsWritable: true},
		{Name: "prereq", IsWritable: true},
		{Name: "system_program"},
	},
}

func (t InstructionType) Discriminator() []byte {
	switch t {
	case InstructionTypeComplete:
		return completeInstructionDiscriminator
	case InstructionTypeUpdate:
		return updateInstructionDiscriminator
	default:
		return nil
	}
}

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeComplete:
		return "complete"
	case InstructionTypeUpdate:
		return "update"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func instructionTypeFromDiscriminator(discriminator []byte) (InstructionType, bool) {
	for _, t := range []InstructionType{InstructionTypeComplete, InstructionTypeUpdate} {
		if bytes.Equal(discriminator, t.Discriminator()) {
			return t, true
		}
	}
	return 0, false
}

// InstructionArgs is the set of argument payloads accepted by the program.
// It is implemented by *CompleteInstructionArgs and *UpdateInstructionArgs.
type InstructionArgs interface {
	Type() InstructionType

	size() int
	marshal(dst []byte, offset *int)
}

// InstructionAccounts are the caller supplied accounts of an instruction.
// The system program slot is always SYSTEM_PROGRAM_ID.
type InstructionAccounts struct {
	Signer ed25519.PublicKey
	Prereq ed25519.PublicKey
}

func (a *InstructionAccounts) keys() []ed25519.PublicKey {
	if a == nil {
		return nil
	}
	return []ed25519.PublicKey{a.Signer, a.Prereq, SYSTEM_PROGRAM_ID}
}

func isNilArgs(args InstructionArgs) bool {
	switch a := args.(type) {
	case nil:
		return true
	case *CompleteInstructionArgs:
		return a == nil
	case *UpdateInstructionArgs:
		return a == nil
	default:
		return false
	}
}

// NewInstruction builds an instruction of the given type. keys are matched
// to the account list by position and args must be the payload for t.
func NewInstruction(t InstructionType, keys []ed25519.PublicKey, args InstructionArgs) (solana.Instruction, error) {
	if isNilArgs(args) {
		return solana.Instruction{}, errors.Wrap(ErrArgsMismatch, "nil args")
	}
	if t.Discriminator() == nil {
		return solana.Instruction{}, errors.Errorf("unknown instruction type: %d", t)
	}
	if args.Type() != t {
		return solana.Instruction{}, errors.Wrapf(ErrArgsMismatch, "%s args for %s instruction", args.Type(), t)
	}

	var offset int
	data := make([]byte, discriminatorSize+args.size())

	putDiscriminator(data, t.Discriminator(), &offset)
	args.marshal(data, &offset)

	return instructionLayout.Build(keys, data)
}

// UnmarshalInstructionArgs decodes the instruction data of either program
// operation.
func UnmarshalInstructionArgs(data []byte) (InstructionArgs, error) {
	if len(data) < discriminatorSize {
		return nil, ErrInvalidInstructionData
	}

	t, ok := instructionTypeFromDiscriminator(data[:discriminatorSize])
	if !ok {
		return nil, ErrInvalidInstructionData
	}

	var github []byte
	offset := discriminatorSize
	if err := bin.GetBytes(data[offset:], &github, &offset); err != nil {
		return nil, errors.Wrap(ErrInvalidInstructionData, err.Error())
	}
	if offset != len(data) {
		return nil, errors.Wrapf(ErrInvalidInstructionData, "%d trailing bytes", len(data)-offset)
	}

	switch t {
	case InstructionTypeComplete:
		return &CompleteInstructionArgs{Github: github}, nil
	default:
		return &UpdateInstructionArgs{Github: github}, nil
	}
}

func decompile(m solana.Message, index int, t InstructionType) (*InstructionAccounts, InstructionArgs, error) {
	i, program, err := m.CompiledInstruction(index)
	if err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(program, PROGRAM_ID) {
		return nil, nil, solana.ErrIncorrectProgram
	}
	if !bytes.HasPrefix(i.Data, t.Discriminator()) {
		return nil, nil, solana.ErrIncorrectInstruction
	}

	keys, err := instructionLayout.Match(m, index)
	if err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(keys[2], SYSTEM_PROGRAM_ID) {
		return nil, nil, errors.New("invalid system program account")
	}

	args, err := UnmarshalInstructionArgs(i.Data)
	if err != nil {
		return nil, nil, err
	}

	return &InstructionAccounts{Signer: keys[0], Prereq: keys[1]}, args, nil
}

func putDiscriminator(dst []byte, v []byte, offset *int) {
	copy(dst[*offset:], v)
	*offset += discriminatorSize
}
