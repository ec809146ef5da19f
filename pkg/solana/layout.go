package solana

import (
	"crypto/ed25519"

	"github.com/pkg/errors"
)

var ErrInvalidAccountArity = errors.New("invalid account arity")

// AccountLayout describes one slot of an instruction's fixed account list.
type AccountLayout struct {
	Name       string
	IsSigner   bool
	IsWritable bool
}

// InstructionLayout is the fixed account list of a program operation. Keys
// supplied to Build are matched to the layout by position.
type InstructionLayout struct {
	Program  ed25519.PublicKey
	Accounts []AccountLayout
}

// Build creates an instruction for the layout. The number of keys must
// match the number of accounts in the layout exactly.
func (l InstructionLayout) Build(keys []ed25519.PublicKey, data []byte) (Instruction, error) {
	if len(keys) != len(l.Accounts) {
		return Instruction{}, errors.Wrapf(ErrInvalidAccountArity, "expected %d accounts, got %d", len(l.Accounts), len(keys))
	}

	accounts := make([]AccountMeta, len(keys))
	for i, slot := range l.Accounts {
		if len(keys[i]) != ed25519.PublicKeySize {
			return Instruction{}, errors.Errorf("invalid %s account size: %d", slot.Name, len(keys[i]))
		}

		accounts[i] = AccountMeta{
			PublicKey:  keys[i],
			IsSigner:   slot.IsSigner,
			IsWritable: slot.IsWritable,
		}
	}

	return NewInstruction(l.Program, data, accounts...), nil
}

// Match resolves the keys of a compiled instruction back into layout order,
// after checking the instruction targets the layout's program with the
// expected number of accounts.
func (l InstructionLayout) Match(m Message, index int) ([]ed25519.PublicKey, error) {
	i, program, err := m.CompiledInstruction(index)
	if err != nil {
		return nil, err
	}
	if !l.Program.Equal(program) {
		return nil, ErrIncorrectProgram
	}
	if len(i.Accounts) != len(l.Accounts) {
		return nil, errors.Wrapf(ErrInvalidAccountArity, "expected %d accounts, got %d", len(l.Accounts), len(i.Accounts))
	}

	keys := make([]ed25519.PublicKey, len(i.Accounts))
	for j, accountIndex := range i.Accounts {
		keys[j] = m.Accounts[accountIndex]
	}
	return keys, nil
}
