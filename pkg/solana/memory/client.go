// Package memory provides an in memory solana.Client. It keeps lamport
// balances, charges a fee per signature, verifies signatures and executes
// the system, memo and prereq programs well enough to test workflows end to
// end.
package memory

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/solana-prereq/pkg/solana"
	"github.com/code-payments/solana-prereq/pkg/solana/system"
)

const (
	// DefaultFeePerSignature matches the network's base fee.
	DefaultFeePerSignature = 5000

	// maxBlockhashAge is the number of blockhashes a transaction may
	// reference before it is rejected with BlockhashNotFound.
	maxBlockhashAge = 150

	rentLamportsPerByteYear = 3480
	rentExemptionYears      = 2
	accountStorageOverhead  = 128
)

var errDeveloperInduced = errors.New("memory client: developer induced error")

type account struct {
	lamports uint64
	owner    ed25519.PublicKey
	data     []byte
}

func (a account) clone() account {
	return account{
		lamports: a.lamports,
		owner:    a.owner,
		data:     append([]byte(nil), a.data...),
	}
}

// ledger is the account state a transaction executes against. It is cloned
// per transaction so failed instructions leave no partial effects.
type ledger map[string]account

func (l ledger) clone() ledger {
	cloned := make(ledger, len(l))
	for k, v := range l {
		cloned[k] = v.clone()
	}
	return cloned
}

func (l ledger) get(key ed25519.PublicKey) account {
	a, ok := l[string(key)]
	if !ok {
		return account{owner: system.ProgramKey[:]}
	}
	return a
}

func (l ledger) put(key ed25519.PublicKey, a account) {
	l[string(key)] = a
}

// Client is an in memory solana.Client.
type Client struct {
	log *logrus.Entry

	mu                sync.Mutex
	ledger            ledger
	feePerSignature   uint64
	slot              uint64
	blockhashes       []solana.Blockhash
	statuses          map[solana.Signature]*solana.SignatureStatus
	submitted         []solana.Transaction
	submitErr         error
	transactionErr    *solana.TransactionError
	feeUnavailable    bool
	unconfirmedStatus bool
}

// NewClient returns an empty ledger with the default fee and a fresh
// blockhash.
func NewClient() *Client {
	c := &Client{
		log:             logrus.StandardLogger().WithField("type", "solana/memory"),
		ledger:          make(ledger),
		feePerSignature: DefaultFeePerSignature,
		statuses:        make(map[solana.Signature]*solana.SignatureStatus),
	}
	c.advanceLocked()
	return c
}

// SetBalance sets the lamport balance of a system account.
func (c *Client) SetBalance(key ed25519.PublicKey, lamports uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.ledger.get(key)
	a.lamports = lamports
	c.ledger.put(key, a)
}

// Balance returns the current lamport balance of key.
func (c *Client) Balance(key ed25519.PublicKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ledger.get(key).lamports
}

// AccountData returns the data and owner stored at key, if the account
// exists.
func (c *Client) AccountData(key ed25519.PublicKey) (data []byte, owner ed25519.PublicKey, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.ledger[string(key)]
	if !ok {
		return nil, nil, false
	}
	return append([]byte(nil), a.data...), a.owner, true
}

func (c *Client) SetFeePerSignature(lamports uint64) {
	c.mu.Lock()
	c.feePerSignature = lamports
	c.mu.Unlock()
}

// AdvanceBlockhash moves the ledger forward one slot with a new blockhash.
// Blockhashes older than maxBlockhashAge slots expire.
func (c *Client) AdvanceBlockhash() solana.Blockhash {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.advanceLocked()
}

// ExpireBlockhashes invalidates every blockhash except a newly created one.
func (c *Client) ExpireBlockhashes() solana.Blockhash {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockhashes = nil
	return c.advanceLocked()
}

// Submitted returns every transaction accepted for processing, failed
// ones included.
func (c *Client) Submitted() []solana.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]solana.Transaction(nil), c.submitted...)
}

// InduceErrors makes every call fail with a transport error until
// StopInducingErrors is called.
func (c *Client) InduceErrors() {
	c.mu.Lock()
	c.submitErr = errDeveloperInduced
	c.mu.Unlock()
}

func (c *Client) StopInducingErrors() {
	c.mu.Lock()
	c.submitErr = nil
	c.mu.Unlock()
}

// FailNextTransaction makes the next processed transaction fail on chain
// with err after fees are charged.
func (c *Client) FailNextTransaction(err *solana.TransactionError) {
	c.mu.Lock()
	c.transactionErr = err
	c.mu.Unlock()
}

// SetFeeUnavailable controls whether GetFeeForMessage can price messages.
func (c *Client) SetFeeUnavailable(unavailable bool) {
	c.mu.Lock()
	c.feeUnavailable = unavailable
	c.mu.Unlock()
}

// SetUnconfirmed leaves processed transactions at the processed commitment
// level, so confirmation never completes.
func (c *Client) SetUnconfirmed(unconfirmed bool) {
	c.mu.Lock()
	c.unconfirmedStatus = unconfirmed
	c.mu.Unlock()
}

func (c *Client) advanceLocked() solana.Blockhash {
	c.slot++

	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], c.slot)
	blockhash := solana.Blockhash(sha256.Sum256(slot[:]))

	c.blockhashes = append(c.blockhashes, blockhash)
	if len(c.blockhashes) > maxBlockhashAge {
		c.blockhashes = c.blockhashes[len(c.blockhashes)-maxBlockhashAge:]
	}
	return blockhash
}

func (c *Client) isValidBlockhashLocked(blockhash solana.Blockhash) bool {
	for _, valid := range c.blockhashes {
		if valid == blockhash {
			return true
		}
	}
	return false
}

// GetAccountInfo implements solana.Client.GetAccountInfo.
func (c *Client) GetAccountInfo(key ed25519.PublicKey, _ solana.Commitment) (solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return solana.AccountInfo{}, c.submitErr
	}

	a, ok := c.ledger[string(key)]
	if !ok || (a.lamports == 0 && len(a.data) == 0) {
		return solana.AccountInfo{}, solana.ErrNoAccountInfo
	}

	return solana.AccountInfo{
		Data:     append([]byte(nil), a.data...),
		Owner:    a.owner,
		Lamports: a.lamports,
	}, nil
}

// GetBalance implements solana.Client.GetBalance.
func (c *Client) GetBalance(key ed25519.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return 0, c.submitErr
	}
	return c.ledger.get(key).lamports, nil
}

// GetFeeForMessage implements solana.Client.GetFeeForMessage.
func (c *Client) GetFeeForMessage(m solana.Message) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return 0, c.submitErr
	}
	if c.feeUnavailable || !c.isValidBlockhashLocked(m.RecentBlockhash) {
		return 0, solana.ErrFeeUnavailable
	}
	return c.feeLocked(m), nil
}

func (c *Client) feeLocked(m solana.Message) uint64 {
	return c.feePerSignature * uint64(m.Header.NumSignatures)
}

// GetLatestBlockhash implements solana.Client.GetLatestBlockhash.
func (c *Client) GetLatestBlockhash() (solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return solana.Blockhash{}, c.submitErr
	}
	return c.blockhashes[len(c.blockhashes)-1], nil
}

// GetMinimumBalanceForRentExemption implements
// solana.Client.GetMinimumBalanceForRentExemption.
func (c *Client) GetMinimumBalanceForRentExemption(size uint64) (uint64, error) {
	return (accountStorageOverhead + size) * rentLamportsPerByteYear * rentExemptionYears, nil
}

// GetSignatureStatus implements solana.Client.GetSignatureStatus.
func (c *Client) GetSignatureStatus(sig solana.Signature, commitment solana.Commitment) (*solana.SignatureStatus, error) {
	statuses, err := c.GetSignatureStatuses([]solana.Signature{sig})
	if err != nil {
		return nil, err
	}

	status := statuses[0]
	if status == nil {
		return nil, solana.ErrSignatureNotFound
	}
	if status.ErrorResult != nil {
		return status, nil
	}

	switch commitment {
	case solana.CommitmentConfirmed:
		if !status.Confirmed() {
			return status, errors.New("confirmations not reached")
		}
	case solana.CommitmentFinalized:
		if !status.Finalized() {
			return status, errors.New("confirmations not reached")
		}
	}
	return status, nil
}

// GetSignatureStatuses implements solana.Client.GetSignatureStatuses.
func (c *Client) GetSignatureStatuses(sigs []solana.Signature) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return nil, c.submitErr
	}

	statuses := make([]*solana.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if status, ok := c.statuses[sig]; ok {
			cloned := *status
			statuses[i] = &cloned
		}
	}
	return statuses, nil
}

// GetSlot implements solana.Client.GetSlot.
func (c *Client) GetSlot(_ solana.Commitment) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return 0, c.submitErr
	}
	return c.slot, nil
}

// RequestAirdrop implements solana.Client.RequestAirdrop. The lamports are
// credited immediately.
func (c *Client) RequestAirdrop(key ed25519.PublicKey, lamports uint64, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitErr != nil {
		return solana.Signature{}, c.submitErr
	}
	if len(key) != ed25519.PublicKeySize {
		return solana.Signature{}, errors.Errorf("invalid account: %d bytes", len(key))
	}

	a := c.ledger.get(key)
	a.lamports += lamports
	c.ledger.put(key, a)

	var preimage [ed25519.PublicKeySize + 16]byte
	copy(preimage[:], key)
	binary.LittleEndian.PutUint64(preimage[ed25519.PublicKeySize:], lamports)
	binary.LittleEndian.PutUint64(preimage[ed25519.PublicKeySize+8:], c.slot)
	digest := sha512.Sum512(preimage[:])

	var sig solana.Signature
	copy(sig[:], digest[:])
	c.statuses[sig] = c.statusLocked(nil)
	c.advanceLocked()

	return sig, nil
}

// SubmitTransaction implements solana.Client.SubmitTransaction.
func (c *Client) SubmitTransaction(tx solana.Transaction, _ solana.Commitment) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sig solana.Signature
	if len(tx.Signatures) > 0 {
		sig = tx.Signatures[0]
	}

	if c.submitErr != nil {
		return sig, c.submitErr
	}

	log := c.log.WithField("signature", sig.String())

	if txErr := c.sanitizeLocked(tx); txErr != nil {
		log.WithError(txErr).Debug("transaction rejected")
		return sig, txErr
	}

	payer := tx.Message.Accounts[0]
	fee := c.feeLocked(tx.Message)
	payerAccount := c.ledger.get(payer)
	if payerAccount.lamports < fee {
		log.Debug("payer cannot cover fee")
		return sig, solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForFee)
	}

	payerAccount.lamports -= fee
	c.ledger.put(payer, payerAccount)
	c.submitted = append(c.submitted, tx)

	txErr := c.transactionErr
	c.transactionErr = nil
	if txErr == nil {
		txErr = c.executeLocked(tx.Message)
	}

	c.statuses[sig] = c.statusLocked(txErr)
	c.advanceLocked()

	if txErr != nil {
		log.WithError(txErr).Debug("transaction failed")
	} else {
		log.Debug("transaction processed")
	}

	return sig, nil
}

// SendAndConfirmTransaction implements solana.Client.SendAndConfirmTransaction.
func (c *Client) SendAndConfirmTransaction(tx solana.Transaction, commitment solana.Commitment) (solana.Signature, error) {
	sig, err := c.SubmitTransaction(tx, commitment)
	if err != nil {
		return sig, &solana.SubmissionError{Signature: sig, Err: err}
	}

	status, err := c.GetSignatureStatus(sig, commitment)
	if err != nil {
		return sig, &solana.SubmissionError{Signature: sig, Err: err}
	}
	if status.ErrorResult != nil {
		return sig, &solana.SubmissionError{Signature: sig, Err: status.ErrorResult}
	}

	return sig, nil
}

func (c *Client) statusLocked(txErr *solana.TransactionError) *solana.SignatureStatus {
	if c.unconfirmedStatus {
		confirmations := 0
		return &solana.SignatureStatus{
			Slot:               c.slot,
			ErrorResult:        txErr,
			Confirmations:      &confirmations,
			ConfirmationStatus: "processed",
		}
	}

	return &solana.SignatureStatus{
		Slot:               c.slot,
		ErrorResult:        txErr,
		ConfirmationStatus: "finalized",
	}
}

// sanitizeLocked applies the checks made before a transaction is charged a
// fee.
func (c *Client) sanitizeLocked(tx solana.Transaction) *solana.TransactionError {
	m := tx.Message

	if len(m.Accounts) == 0 || int(m.Header.NumSignatures) == 0 {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}
	if len(tx.Signatures) != int(m.Header.NumSignatures) {
		return solana.NewTransactionError(solana.TransactionErrorSanitizeFailure)
	}

	message := m.Marshal()
	for i, sig := range tx.Signatures {
		if sig == (solana.Signature{}) {
			return solana.NewTransactionError(solana.TransactionErrorMissingSignatureForFee)
		}
		if !ed25519.Verify(m.Accounts[i], message, sig[:]) {
			return solana.NewTransactionError(solana.TransactionErrorSignatureFailure)
		}
	}

	if _, ok := c.statuses[tx.Signatures[0]]; ok {
		return solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}
	if !c.isValidBlockhashLocked(m.RecentBlockhash) {
		return solana.NewTransactionError(solana.TransactionErrorBlockhashNotFound)
	}

	for _, instruction := range m.Instructions {
		if int(instruction.ProgramIndex) >= len(m.Accounts) {
			return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
		}
		for _, index := range instruction.Accounts {
			if int(index) >= len(m.Accounts) {
				return solana.NewTransactionError(solana.TransactionErrorInvalidAccountIndex)
			}
		}
	}

	return nil
}

func (c *Client) executeLocked(m solana.Message) *solana.TransactionError {
	working := c.ledger.clone()

	for i, instruction := range m.Instructions {
		program := m.Accounts[instruction.ProgramIndex]

		handler, ok := programs[string(program)]
		if !ok {
			return solana.NewTransactionError(solana.TransactionErrorProgramAccountNotFound)
		}
		if err := handler(working, m, i); err != nil {
			return solana.NewInstructionTransactionError(i, err)
		}
	}

	c.ledger = working
	return nil
}

func isSigner(m solana.Message, key ed25519.PublicKey) bool {
	for i := 0; i < int(m.Header.NumSignatures) && i < len(m.Accounts); i++ {
		if bytes.Equal(m.Accounts[i], key) {
			return true
		}
	}
	return false
}
