package solana

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var (
	ErrIncorrectProgram     = errors.New("incorrect program")
	ErrIncorrectInstruction = errors.New("incorrect instruction")
)

// AccountMeta is a single account reference made by an instruction, along
// with the permissions the instruction requires of it.
type AccountMeta struct {
	PublicKey  ed25519.PublicKey
	IsSigner   bool
	IsWritable bool
}

// NewAccountMeta references a writable account.
func NewAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta references an account the instruction only reads.
func NewReadonlyAccountMeta(pub ed25519.PublicKey, isSigner bool) AccountMeta {
	return AccountMeta{PublicKey: pub, IsSigner: isSigner}
}

// Instruction is a single program invocation: the program to run, the
// accounts it touches in the order the program expects, and opaque data.
type Instruction struct {
	Program  ed25519.PublicKey
	Accounts []AccountMeta
	Data     []byte
}

func NewInstruction(program ed25519.PublicKey, data []byte, accounts ...AccountMeta) Instruction {
	return Instruction{
		Program:  program,
		Accounts: accounts,
		Data:     data,
	}
}

// CompiledInstruction is an Instruction whose program and accounts have been
// replaced by indexes into the message account table.
type CompiledInstruction struct {
	ProgramIndex byte
	Accounts     []byte
	Data         []byte
}

// CompiledInstruction returns the instruction at index along with the key
// of the program it invokes. All of the instruction's indexes are checked
// against the account table, so hand built messages are safe to inspect.
func (m Message) CompiledInstruction(index int) (CompiledInstruction, ed25519.PublicKey, error) {
	if index < 0 || index >= len(m.Instructions) {
		return CompiledInstruction{}, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]
	if int(i.ProgramIndex) >= len(m.Accounts) {
		return CompiledInstruction{}, nil, errors.Errorf("program index %d out of range", i.ProgramIndex)
	}
	for _, account := range i.Accounts {
		if int(account) >= len(m.Accounts) {
			return CompiledInstruction{}, nil, errors.Errorf("account index %d out of range", account)
		}
	}

	return i, m.Accounts[i.ProgramIndex], nil
}
