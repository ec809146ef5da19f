package solana

import (
	"bytes"
	"crypto/ed25519"
	"io"

	"github.com/pkg/errors"

	"github.com/code-payments/solana-prereq/pkg/solana/shortvec"
)

// Marshal encodes the transaction: a compact array of signatures followed
// by the message.
func (t Transaction) Marshal() []byte {
	var b bytes.Buffer

	_, _ = shortvec.EncodeLen(&b, len(t.Signatures))
	for _, s := range t.Signatures {
		b.Write(s[:])
	}
	b.Write(t.Message.Marshal())

	return b.Bytes()
}

func (t *Transaction) Unmarshal(b []byte) error {
	r := newWireReader(b)

	count := r.length("signatures")
	signatures := make([]Signature, count)
	for i := range signatures {
		r.fill(signatures[i][:], "signature")
	}
	if r.err != nil {
		return r.err
	}

	var m Message
	if err := m.Unmarshal(r.rest()); err != nil {
		return err
	}

	if int(m.Header.NumSignatures) != len(signatures) {
		return errors.Errorf("signature count mismatch: header=%d, actual=%d", m.Header.NumSignatures, len(signatures))
	}

	t.Signatures = signatures
	t.Message = m
	return nil
}

// Marshal encodes the message in the legacy wire format. These are the
// bytes that are signed.
//
//	header (3 bytes) | accounts | recent blockhash (32 bytes) | instructions
func (m Message) Marshal() []byte {
	var b bytes.Buffer

	b.Write([]byte{
		m.Header.NumSignatures,
		m.Header.NumReadonlySigned,
		m.Header.NumReadOnly,
	})

	_, _ = shortvec.EncodeLen(&b, len(m.Accounts))
	for _, a := range m.Accounts {
		b.Write(a)
	}

	b.Write(m.RecentBlockhash[:])

	_, _ = shortvec.EncodeLen(&b, len(m.Instructions))
	for _, i := range m.Instructions {
		b.WriteByte(i.ProgramIndex)
		writeCompact(&b, i.Accounts)
		writeCompact(&b, i.Data)
	}

	return b.Bytes()
}

func (m *Message) Unmarshal(b []byte) error {
	if len(b) == 0 {
		return errors.New("empty message")
	}

	// The high bit of the first byte is set for versioned messages.
	if b[0]&0x80 != 0 {
		return errors.New("versioned messages not supported")
	}

	r := newWireReader(b)

	var decoded Message
	decoded.Header = Header{
		NumSignatures:     r.byte("num signatures"),
		NumReadonlySigned: r.byte("num readonly signed"),
		NumReadOnly:       r.byte("num readonly"),
	}

	count := r.length("accounts")
	if r.err == nil {
		referenced := int(decoded.Header.NumSignatures) + int(decoded.Header.NumReadOnly)
		if referenced > count {
			return errors.Errorf("header references %d accounts, only %d present", referenced, count)
		}
	}

	decoded.Accounts = make([]ed25519.PublicKey, count)
	for i := range decoded.Accounts {
		decoded.Accounts[i] = make(ed25519.PublicKey, ed25519.PublicKeySize)
		r.fill(decoded.Accounts[i], "account")
	}

	r.fill(decoded.RecentBlockhash[:], "recent blockhash")

	decoded.Instructions = make([]CompiledInstruction, r.length("instructions"))
	for i := range decoded.Instructions {
		c := CompiledInstruction{
			ProgramIndex: r.byte("program index"),
			Accounts:     r.compact("instruction accounts"),
			Data:         r.compact("instruction data"),
		}
		if r.err != nil {
			return errors.Wrapf(r.err, "instruction %d", i)
		}

		if int(c.ProgramIndex) >= count {
			return errors.Errorf("program index out of range: %d:%d", i, c.ProgramIndex)
		}
		for _, index := range c.Accounts {
			if int(index) >= count {
				return errors.Errorf("account index out of range: %d:%d", i, index)
			}
		}

		decoded.Instructions[i] = c
	}

	if r.err != nil {
		return r.err
	}

	*m = decoded
	return nil
}

func writeCompact(b *bytes.Buffer, v []byte) {
	_, _ = shortvec.EncodeLen(b, len(v))
	b.Write(v)
}

// wireReader reads sequential fields, keeping the first error. Reads after
// an error are no-ops returning zero values.
type wireReader struct {
	buf *bytes.Buffer
	err error
}

func newWireReader(b []byte) *wireReader {
	return &wireReader{buf: bytes.NewBuffer(b)}
}

func (r *wireReader) byte(field string) byte {
	if r.err != nil {
		return 0
	}

	v, err := r.buf.ReadByte()
	if err != nil {
		r.err = errors.Wrapf(err, "failed to read %s", field)
	}
	return v
}

func (r *wireReader) length(field string) int {
	if r.err != nil {
		return 0
	}

	n, err := shortvec.DecodeLen(r.buf)
	if err != nil {
		r.err = errors.Wrapf(err, "failed to read %s length", field)
		return 0
	}
	return n
}

func (r *wireReader) fill(dst []byte, field string) {
	if r.err != nil {
		return
	}

	if _, err := io.ReadFull(r.buf, dst); err != nil {
		r.err = errors.Wrapf(err, "failed to read %s", field)
	}
}

func (r *wireReader) compact(field string) []byte {
	v := make([]byte, r.length(field))
	r.fill(v, field)
	return v
}

func (r *wireReader) rest() []byte {
	return r.buf.Bytes()
}
