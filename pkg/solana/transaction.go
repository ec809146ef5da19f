package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// MaxTransactionSize is the largest serialized transaction the network
// accepts (IPv6 MTU less headers).
//
// Reference: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
const MaxTransactionSize = 1232

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

func (s Signature) String() string {
	return base58.Encode(s[:])
}

func (b Blockhash) String() string {
	return base58.Encode(b[:])
}

// Header describes how the message account table is partitioned. The first
// NumSignatures accounts must sign, the last NumReadonlySigned of those are
// readonly, and the last NumReadOnly accounts of the table are readonly
// non-signers.
type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// Message is the signed portion of a legacy transaction.
type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into an unsigned transaction
// paid for by payer. The blockhash is left empty.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	table := compileAccounts(payer, instructions)

	// Instructions are compiled against the keys as referenced, so an empty
	// key still resolves to its zero filled table entry.
	referenced := make([]ed25519.PublicKey, len(table))

	var m Message
	m.Accounts = make([]ed25519.PublicKey, len(table))
	for i, entry := range table {
		referenced[i] = entry.PublicKey
		m.Accounts[i] = entry.key()

		switch {
		case entry.IsSigner && entry.IsWritable:
			m.Header.NumSignatures++
		case entry.IsSigner:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case !entry.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	m.Instructions = make([]CompiledInstruction, len(instructions))
	for i, instruction := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: byte(indexOf(referenced, instruction.Program)),
			Accounts:     make([]byte, len(instruction.Accounts)),
			Data:         instruction.Data,
		}
		for j, account := range instruction.Accounts {
			compiled.Accounts[j] = byte(indexOf(referenced, account.PublicKey))
		}
		m.Instructions[i] = compiled
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// tableEntry is an account in a message under construction.
type tableEntry struct {
	AccountMeta

	payer   bool
	program bool
}

func (e tableEntry) key() ed25519.PublicKey {
	if len(e.PublicKey) == 0 {
		return make(ed25519.PublicKey, ed25519.PublicKeySize)
	}
	return e.PublicKey
}

// compileAccounts merges every account referenced by the instructions into
// the message account table. A key referenced more than once keeps the
// union of its permissions. The table is ordered:
//
//  1. The fee payer
//  2. Signers, writable before readonly
//  3. Non-signers, writable before readonly
//
// Invoked programs go after the other accounts of their group, and ties are
// broken by the byte order of the key.
//
// Reference: https://docs.solana.com/transaction#account-addresses-format
func compileAccounts(payer ed25519.PublicKey, instructions []Instruction) []tableEntry {
	var table []tableEntry
	positions := make(map[string]int)

	add := func(entry tableEntry) {
		pos, ok := positions[string(entry.PublicKey)]
		if !ok {
			positions[string(entry.PublicKey)] = len(table)
			table = append(table, entry)
			return
		}

		merged := &table[pos]
		merged.IsSigner = merged.IsSigner || entry.IsSigner
		merged.IsWritable = merged.IsWritable || entry.IsWritable
		merged.payer = merged.payer || entry.payer
		merged.program = merged.program || entry.program
	}

	add(tableEntry{AccountMeta: NewAccountMeta(payer, true), payer: true})
	for _, instruction := range instructions {
		add(tableEntry{AccountMeta: NewReadonlyAccountMeta(instruction.Program, false), program: true})
		for _, account := range instruction.Accounts {
			add(tableEntry{AccountMeta: account})
		}
	}

	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]

		switch {
		case a.payer != b.payer:
			return a.payer
		case a.IsSigner != b.IsSigner:
			return a.IsSigner
		case a.IsWritable != b.IsWritable:
			return a.IsWritable
		case a.program != b.program:
			return b.program
		default:
			return bytes.Compare(a.PublicKey, b.PublicKey) < 0
		}
	})

	return table
}

// Signature returns the fee payer's signature, which identifies the
// transaction on the network.
func (t *Transaction) Signature() []byte {
	return t.Signatures[0][:]
}

// Signers returns the accounts whose signatures the transaction requires,
// in signature slot order.
func (t *Transaction) Signers() []ed25519.PublicKey {
	return t.Message.Accounts[:t.Message.Header.NumSignatures]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the current message with each of the signers. Signers may be
// supplied in any order. Any previously computed signatures are kept, so
// the blockhash must be set before signing.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		slot := indexOf(t.Message.Accounts, pub)
		switch {
		case slot < 0:
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		case slot >= len(t.Signatures):
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[slot][:], ed25519.Sign(signer, message))
	}

	return nil
}

func indexOf(keys []ed25519.PublicKey, key ed25519.PublicKey) int {
	for i, k := range keys {
		if bytes.Equal(k, key) {
			return i
		}
	}
	return -1
}
