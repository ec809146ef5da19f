package memory

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/solana"
	bin "github.com/code-payments/solana-prereq/pkg/solana/binary"
	"github.com/code-payments/solana-prereq/pkg/solana/memo"
	"github.com/code-payments/solana-prereq/pkg/solana/prereq"
	"github.com/code-payments/solana-prereq/pkg/solana/system"
)

// Program errors, as reported by the network.
const (
	// system program
	errAccountAlreadyInUse        = solana.CustomError(0)
	errResultWithNegativeLamports = solana.CustomError(1)

	// anchor framework
	errConstraintSeeds        = solana.CustomError(2006)
	errAccountNotInitialized  = solana.CustomError(3012)
	errInstructionDidNotParse = solana.CustomError(102)
)

var (
	errMissingRequiredSignature = errors.New(string(solana.InstructionErrorMissingRequiredSignature))
	errInvalidInstructionData   = errors.New(string(solana.InstructionErrorInvalidInstructionData))
	errInvalidAccountData       = errors.New(string(solana.InstructionErrorInvalidAccountData))
)

// programHandler executes the instruction at index against l, returning the
// instruction error on failure.
type programHandler func(l ledger, m solana.Message, index int) error

var programs = map[string]programHandler{
	string(system.ProgramKey[:]): executeSystem,
	string(memo.ProgramKey):      executeMemo,
	string(prereq.PROGRAM_ID):    executePrereq,
}

func executeSystem(l ledger, m solana.Message, index int) error {
	if transfer, err := system.DecompileTransfer(m, index); err == nil {
		if !isSigner(m, transfer.From) {
			return errMissingRequiredSignature
		}
		return debit(l, transfer.From, transfer.To, transfer.Lamports)
	}

	if create, err := system.DecompileCreateAccount(m, index); err == nil {
		if !isSigner(m, create.Funder) || !isSigner(m, create.Address) {
			return errMissingRequiredSignature
		}
		if exists(l, create.Address) {
			return errAccountAlreadyInUse
		}
		if err := debit(l, create.Funder, create.Address, create.Lamports); err != nil {
			return err
		}

		a := l.get(create.Address)
		a.owner = create.Owner
		a.data = make([]byte, create.Size)
		l.put(create.Address, a)
		return nil
	}

	return errInvalidInstructionData
}

func executeMemo(_ ledger, m solana.Message, index int) error {
	if _, err := memo.Decompile(m, index); err != nil {
		return errInvalidInstructionData
	}
	return nil
}

// Prereq accounts hold the owner followed by the github handle as a borsh
// Vec<u8>.
func executePrereq(l ledger, m solana.Message, index int) error {
	var accounts *prereq.InstructionAccounts
	var github []byte
	var isComplete bool

	if complete, err := prereq.DecompileComplete(m, index); err == nil {
		accounts, github, isComplete = complete.Accounts, complete.Args.Github, true
	} else if update, err := prereq.DecompileUpdate(m, index); err == nil {
		accounts, github = update.Accounts, update.Args.Github
	} else {
		return errInstructionDidNotParse
	}

	if !isSigner(m, accounts.Signer) {
		return errMissingRequiredSignature
	}

	expected, _, err := prereq.GetPrereqAddress(&prereq.GetPrereqAddressArgs{Owner: accounts.Signer})
	if err != nil || !bytes.Equal(expected, accounts.Prereq) {
		return errConstraintSeeds
	}

	data := make([]byte, ed25519.PublicKeySize+bin.BytesSize(github))
	var offset int
	bin.PutKey32(data[offset:], accounts.Signer, &offset)
	bin.PutBytes(data[offset:], github, &offset)

	existing := l.get(accounts.Prereq)
	if isComplete {
		if exists(l, accounts.Prereq) {
			return errAccountAlreadyInUse
		}

		rent := (accountStorageOverhead + uint64(len(data))) * rentLamportsPerByteYear * rentExemptionYears
		if err := debit(l, accounts.Signer, accounts.Prereq, rent); err != nil {
			return err
		}

		created := l.get(accounts.Prereq)
		created.owner = prereq.PROGRAM_ID
		created.data = data
		l.put(accounts.Prereq, created)
		return nil
	}

	if !exists(l, accounts.Prereq) {
		return errAccountNotInitialized
	}
	if !bytes.Equal(existing.owner, prereq.PROGRAM_ID) {
		return errInvalidAccountData
	}

	existing.data = data
	l.put(accounts.Prereq, existing)
	return nil
}

func exists(l ledger, key ed25519.PublicKey) bool {
	a := l.get(key)
	return a.lamports > 0 || len(a.data) > 0
}

func debit(l ledger, from, to ed25519.PublicKey, lamports uint64) error {
	source := l.get(from)
	if len(source.data) > 0 || !bytes.Equal(source.owner, system.ProgramKey[:]) {
		return errInvalidAccountData
	}
	if source.lamports < lamports {
		return errResultWithNegativeLamports
	}

	source.lamports -= lamports
	l.put(from, source)

	destination := l.get(to)
	destination.lamports += lamports
	l.put(to, destination)
	return nil
}

// PrereqAccount decodes the data of a prereq account created by the fake.
func PrereqAccount(data []byte) (owner ed25519.PublicKey, github []byte, err error) {
	if len(data) < ed25519.PublicKeySize {
		return nil, nil, errors.New("prereq account data too short")
	}

	var offset int
	bin.GetKey32(data, &owner, &offset)
	if err := bin.GetBytes(data[offset:], &github, &offset); err != nil {
		return nil, nil, err
	}
	return owner, github, nil
}
