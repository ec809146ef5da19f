// Package memo builds and inspects instructions for the SPL memo program.
package memo

import (
	"bytes"
	"crypto/ed25519"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/solana"
)

// ProgramKey is Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo.
var ProgramKey = ed25519.PublicKey{5, 74, 83, 80, 248, 93, 200, 130, 214, 20, 165, 86, 114, 120, 138, 41, 109, 223, 30, 171, 171, 208, 166, 6, 120, 136, 73, 50, 244, 238, 246, 160}

var ErrInvalidMemo = errors.New("memo must be valid utf-8")

// Instruction attaches text to a transaction. No accounts are required to
// sign it.
//
// Reference: https://github.com/solana-labs/solana-program-library/blob/master/memo/program/src/entrypoint.rs
func Instruction(text string) solana.Instruction {
	return solana.NewInstruction(ProgramKey, []byte(text))
}

type Memo struct {
	Data []byte
}

func (m Memo) String() string {
	return string(m.Data)
}

// Decompile returns the memo carried by the instruction at index.
func Decompile(m solana.Message, index int) (*Memo, error) {
	compiled, program, err := m.CompiledInstruction(index)
	if err != nil {
		return nil, err
	}

	switch {
	case !bytes.Equal(program, ProgramKey):
		return nil, solana.ErrIncorrectProgram
	case !utf8.Valid(compiled.Data):
		return nil, ErrInvalidMemo
	}

	return &Memo{Data: compiled.Data}, nil
}

// Find returns the first memo in the message, if any.
func Find(m solana.Message) (*Memo, bool) {
	for i := range m.Instructions {
		if found, err := Decompile(m, i); err == nil {
			return found, true
		}
	}
	return nil, false
}
