package system

import (
	"bytes"
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/solana"
	bin "github.com/code-payments/solana-prereq/pkg/solana/binary"
)

// ProgramKey is the address of the system program.
//
// Current key: 11111111111111111111111111111111
var ProgramKey [32]byte

type Command uint32

const (
	CommandCreateAccount Command = iota
	CommandAssign
	CommandTransfer
)

const (
	createAccountDataSize = 4 + 2*8 + ed25519.PublicKeySize
	transferDataSize      = 4 + 8
)

var (
	createAccountLayout = solana.InstructionLayout{
		Program: ProgramKey[:],
		Accounts: []solana.AccountLayout{
			{Name: "funder", IsSigner: true, IsWritable: true},
			{Name: "address", IsSigner: true, IsWritable: true},
		},
	}

	transferLayout = solana.InstructionLayout{
		Program: ProgramKey[:],
		Accounts: []solana.AccountLayout{
			{Name: "from", IsSigner: true, IsWritable: true},
			{Name: "to", IsWritable: true},
		},
	}
)

// CreateAccount returns an instruction that funds and allocates a new
// account owned by owner.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L58-L72
func CreateAccount(funder, address, owner ed25519.PublicKey, lamports, size uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE, SIGNER] New account
	//
	// CreateAccount {
	//   lamports: u64,
	//   space: u64,
	//   owner: Pubkey,
	// }
	data := make([]byte, createAccountDataSize)

	var offset int
	bin.PutUint32(data[offset:], uint32(CommandCreateAccount), &offset)
	bin.PutUint64(data[offset:], lamports, &offset)
	bin.PutUint64(data[offset:], size, &offset)
	bin.PutKey32(data[offset:], owner, &offset)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(funder, true),
		solana.NewAccountMeta(address, true),
	)
}

type DecompiledCreateAccount struct {
	Funder  ed25519.PublicKey
	Address ed25519.PublicKey

	Lamports uint64
	Size     uint64
	Owner    ed25519.PublicKey
}

func DecompileCreateAccount(m solana.Message, index int) (*DecompiledCreateAccount, error) {
	data, keys, err := decompile(m, index, CommandCreateAccount, createAccountLayout)
	if err != nil {
		return nil, err
	}
	if len(data) != createAccountDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(data))
	}

	v := &DecompiledCreateAccount{
		Funder:  keys[0],
		Address: keys[1],
	}

	offset := 4
	bin.GetUint64(data[offset:], &v.Lamports, &offset)
	bin.GetUint64(data[offset:], &v.Size, &offset)
	bin.GetKey32(data[offset:], &v.Owner, &offset)

	return v, nil
}

// Transfer returns an instruction that moves lamports from one system
// account to another.
//
// Reference: https://github.com/solana-labs/solana/blob/f02a78d8fff2dd7297dc6ce6eb5a68a3002f5359/sdk/src/system_instruction.rs#L92-L98
func Transfer(from, to ed25519.PublicKey, lamports uint64) solana.Instruction {
	// # Account references
	//   0. [WRITE, SIGNER] Funding account
	//   1. [WRITE] Recipient account
	data := make([]byte, transferDataSize)

	var offset int
	bin.PutUint32(data[offset:], uint32(CommandTransfer), &offset)
	bin.PutUint64(data[offset:], lamports, &offset)

	return solana.NewInstruction(
		ProgramKey[:],
		data,
		solana.NewAccountMeta(from, true),
		solana.NewAccountMeta(to, false),
	)
}

type DecompiledTransfer struct {
	From     ed25519.PublicKey
	To       ed25519.PublicKey
	Lamports uint64
}

func DecompileTransfer(m solana.Message, index int) (*DecompiledTransfer, error) {
	data, keys, err := decompile(m, index, CommandTransfer, transferLayout)
	if err != nil {
		return nil, err
	}
	if len(data) != transferDataSize {
		return nil, errors.Errorf("invalid instruction data size: %d", len(data))
	}

	v := &DecompiledTransfer{
		From: keys[0],
		To:   keys[1],
	}

	offset := 4
	bin.GetUint64(data[offset:], &v.Lamports, &offset)

	return v, nil
}

func decompile(m solana.Message, index int, command Command, layout solana.InstructionLayout) ([]byte, []ed25519.PublicKey, error) {
	i, program, err := m.CompiledInstruction(index)
	if err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(program, ProgramKey[:]) {
		return nil, nil, solana.ErrIncorrectProgram
	}

	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(command))
	if !bytes.HasPrefix(i.Data, prefix[:]) {
		return nil, nil, solana.ErrIncorrectInstruction
	}

	keys, err := layout.Match(m, index)
	if err != nil {
		return nil, nil, err
	}

	return i.Data, keys, nil
}
