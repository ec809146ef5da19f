package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/ybbus/jsonrpc"

	"github.com/code-payments/solana-prereq/pkg/rate"
	"github.com/code-payments/solana-prereq/pkg/retry"
	"github.com/code-payments/solana-prereq/pkg/retry/backoff"
)

const (
	// The tick rate is a cluster constant. It can be read from the sysvar
	// account, but has not changed since genesis.
	ticksPerSec  = 160
	ticksPerSlot = 64
	slotsPerSec  = ticksPerSec / ticksPerSlot

	// PollRate is twice the slot rate.
	PollRate = (time.Second / slotsPerSec) / 2

	// Roughly 32 slots at PollRate.
	sigStatusPollLimit = 2 * 32

	// Reference: https://github.com/solana-labs/solana/blob/71e9958e061493d7545bd28d4ac7a85aaed6ffbb/client/src/rpc_custom_error.rs#L11
	rpcNodeUnhealthyCode = -32005

	invalidParamCode = -32602

	blockhashCacheWindow = 2 * time.Second
)

type Commitment struct {
	Commitment string `json:"commitment"`
}

const (
	confirmationStatusProcessed = "processed"
	confirmationStatusConfirmed = "confirmed"
	confirmationStatusFinalized = "finalized"
)

var (
	CommitmentProcessed = Commitment{Commitment: confirmationStatusProcessed}
	CommitmentConfirmed = Commitment{Commitment: confirmationStatusConfirmed}
	CommitmentFinalized = Commitment{Commitment: confirmationStatusFinalized}
)

// CommitmentFromString parses a commitment level by name.
func CommitmentFromString(s string) (Commitment, error) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		if c.Commitment == s {
			return c, nil
		}
	}
	return Commitment{}, errors.Errorf("unknown commitment %q", s)
}

var (
	ErrNoAccountInfo     = errors.New("no account info")
	ErrSignatureNotFound = errors.New("signature not found")
	ErrNoBalance         = errors.New("no balance")

	// ErrFeeUnavailable is returned when the network cannot price a message,
	// typically because its blockhash has expired.
	ErrFeeUnavailable = errors.New("fee unavailable for message")
)

// AccountInfo is the raw state of an on chain account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

type SignatureStatus struct {
	Slot        uint64
	ErrorResult *TransactionError

	// Confirmations is nil once the transaction is rooted.
	Confirmations      *int
	ConfirmationStatus string
}

func (s SignatureStatus) Confirmed() bool {
	switch {
	case s.Finalized():
		return true
	case s.ConfirmationStatus == confirmationStatusConfirmed:
		return true
	default:
		return *s.Confirmations >= 1
	}
}

func (s SignatureStatus) Finalized() bool {
	return s.Confirmations == nil || s.ConfirmationStatus == confirmationStatusFinalized
}

// reached reports whether the status satisfies the commitment level.
func (s SignatureStatus) reached(commitment Commitment) bool {
	switch commitment {
	case CommitmentConfirmed:
		return s.Confirmed()
	case CommitmentFinalized:
		return s.Finalized()
	default:
		return true
	}
}

// Client provides an interaction with the Solana JSON RPC API.
//
// Reference: https://docs.solana.com/apps/jsonrpc-api
type Client interface {
	GetAccountInfo(ed25519.PublicKey, Commitment) (AccountInfo, error)
	GetBalance(ed25519.PublicKey) (uint64, error)
	GetFeeForMessage(Message) (uint64, error)
	GetLatestBlockhash() (Blockhash, error)
	GetMinimumBalanceForRentExemption(size uint64) (lamports uint64, err error)
	GetSignatureStatus(Signature, Commitment) (*SignatureStatus, error)
	GetSignatureStatuses([]Signature) ([]*SignatureStatus, error)
	GetSlot(Commitment) (uint64, error)
	RequestAirdrop(ed25519.PublicKey, uint64, Commitment) (Signature, error)
	SubmitTransaction(Transaction, Commitment) (Signature, error)

	// SendAndConfirmTransaction submits the transaction once and waits for it
	// to reach the commitment level. Any failure is returned as a
	// *SubmissionError.
	SendAndConfirmTransaction(Transaction, Commitment) (Signature, error)
}

var (
	errRateLimited       = errors.New("rate limited")
	errServiceError      = errors.New("service error")
	errConfirmationsWait = errors.New("confirmations not reached")
)

// contextValue is the envelope of RPC methods that report the slot their
// result was read at.
type contextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
}

type rpcSignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *int            `json:"confirmations"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err"`
}

type client struct {
	log     *logrus.Entry
	client  jsonrpc.RPCClient
	retrier retry.Retrier
	limiter rate.Limiter

	blockhashes blockhashCache
}

// New returns a client using the specified endpoint.
func New(endpoint string) Client {
	return NewWithRPCOptions(endpoint, nil)
}

// NewWithRPCOptions returns a client configured with the specified RPC options.
func NewWithRPCOptions(endpoint string, opts *jsonrpc.RPCClientOpts) Client {
	return newClient(endpoint, opts, rate.NoLimiter{})
}

// NewRateLimited returns a client that throttles itself per RPC method. Calls
// over the limit back off as if the node had rate limited them.
func NewRateLimited(endpoint string, limiter rate.Limiter) Client {
	return newClient(endpoint, nil, limiter)
}

func newClient(endpoint string, opts *jsonrpc.RPCClientOpts, limiter rate.Limiter) *client {
	return &client{
		log:    logrus.StandardLogger().WithField("type", "solana/client"),
		client: jsonrpc.NewClientWithOpts(endpoint, opts),
		retrier: retry.NewRetrier(
			retry.RetriableErrors(errRateLimited, errServiceError),
			retry.Limit(3),
			retry.BackoffWithJitter(backoff.BinaryExponential(time.Second), 10*time.Second, 0.1),
		),
		limiter: limiter,
	}
}

// call invokes method, retrying rate limits and node failures. Other RPC
// errors are returned unwrapped as *jsonrpc.RPCError.
func (c *client) call(out interface{}, method string, params ...interface{}) error {
	_, err := c.retrier.Retry(func() error {
		if !c.limiter.Allow(method) {
			c.log.WithField("method", method).Debug("throttled locally")
			return errRateLimited
		}
		return c.classify(method, c.client.CallFor(out, method, params...))
	})
	return err
}

func (c *client) classify(method string, err error) error {
	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return err
	}

	log := c.log.WithField("method", method)
	switch {
	case rpcErr.Code == 429:
		log.Warn("rate limited")
		return errRateLimited
	case rpcErr.Code >= 500 || rpcErr.Code == rpcNodeUnhealthyCode:
		log.WithError(err).Warn("service error")
		return errServiceError
	default:
		return err
	}
}

func (c *client) GetMinimumBalanceForRentExemption(dataSize uint64) (uint64, error) {
	var lamports uint64
	if err := c.call(&lamports, "getMinimumBalanceForRentExemption", dataSize); err != nil {
		return 0, errors.Wrap(err, "getMinimumBalanceForRentExemption() failed to send request")
	}
	return lamports, nil
}

func (c *client) GetSlot(commitment Commitment) (uint64, error) {
	// The node rejects a bare config object here, so it's sent as a
	// positional array.
	var slot uint64
	if err := c.call(&slot, "getSlot", []interface{}{commitment}); err != nil {
		return 0, errors.Wrap(err, "getSlot() failed to send request")
	}
	return slot, nil
}

// GetLatestBlockhash returns the cluster's latest blockhash. Results are
// cached for a couple of seconds, well inside the blockhash lifetime.
func (c *client) GetLatestBlockhash() (Blockhash, error) {
	if hash, ok := c.blockhashes.get(); ok {
		return hash, nil
	}

	var resp contextValue[struct {
		Blockhash string `json:"blockhash"`
	}]
	if err := c.call(&resp, "getLatestBlockhash"); err != nil {
		return Blockhash{}, errors.Wrap(err, "getLatestBlockhash() failed to send request")
	}

	var hash Blockhash
	if err := decodeFixed(hash[:], resp.Value.Blockhash); err != nil {
		return Blockhash{}, errors.Wrap(err, "invalid blockhash in response")
	}

	c.blockhashes.set(hash)
	return hash, nil
}

func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp contextValue[*uint64]
	err := c.call(&resp, "getBalance", base58.Encode(account), CommitmentProcessed)
	if rpcErr, ok := err.(*jsonrpc.RPCError); ok && rpcErr.Code == invalidParamCode {
		return 0, ErrNoBalance
	} else if err != nil {
		return 0, errors.Wrap(err, "getBalance() failed to send request")
	}

	if resp.Value == nil {
		return 0, errors.New("invalid value in response")
	}
	return *resp.Value, nil
}

func (c *client) GetFeeForMessage(m Message) (uint64, error) {
	var resp contextValue[*uint64]
	encoded := base64.StdEncoding.EncodeToString(m.Marshal())
	if err := c.call(&resp, "getFeeForMessage", encoded, CommitmentProcessed); err != nil {
		return 0, errors.Wrap(err, "getFeeForMessage() failed to send request")
	}

	// A null value means the blockhash is no longer valid.
	if resp.Value == nil {
		return 0, ErrFeeUnavailable
	}
	return *resp.Value, nil
}

// SubmitTransaction sends the transaction with preflight checks enabled.
// A preflight failure is returned as a *TransactionError.
func (c *client) SubmitTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	sig := txn.Signatures[0]

	config := struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}{
		Encoding:            "base64",
		PreflightCommitment: commitment.Commitment,
	}

	var ignored string
	err := c.call(&ignored, "sendTransaction", base64.StdEncoding.EncodeToString(txn.Marshal()), config)
	if err == nil {
		return sig, nil
	}

	rpcErr, ok := err.(*jsonrpc.RPCError)
	if !ok {
		return sig, errors.Wrap(err, "sendTransaction() failed to send request")
	}

	txErr, parseErr := ParseRPCError(rpcErr)
	if parseErr != nil || txErr == nil {
		return sig, err
	}

	c.log.WithFields(logrus.Fields{
		"method":    "SubmitTransaction",
		"signature": sig.String(),
	}).WithError(txErr).Debug("transaction rejected")
	return sig, txErr
}

func (c *client) SendAndConfirmTransaction(txn Transaction, commitment Commitment) (Signature, error) {
	log := c.log.WithFields(logrus.Fields{
		"method":     "SendAndConfirmTransaction",
		"commitment": commitment.Commitment,
	})

	sig, err := c.SubmitTransaction(txn, commitment)
	if err != nil {
		return sig, &SubmissionError{Signature: sig, Err: err}
	}

	log = log.WithField("signature", sig.String())
	log.Debug("transaction submitted")

	status, err := c.GetSignatureStatus(sig, commitment)
	switch {
	case err != nil:
		return sig, &SubmissionError{Signature: sig, Err: err}
	case status.ErrorResult != nil:
		return sig, &SubmissionError{Signature: sig, Err: status.ErrorResult}
	}

	log.Debug("transaction confirmed")
	return sig, nil
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	config := struct {
		Commitment
		Encoding string `json:"encoding"`
	}{
		Commitment: commitment,
		Encoding:   "base64",
	}

	var resp contextValue[*rpcAccount]
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed to send request")
	}
	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}

	owner, err := base58.Decode(resp.Value.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base58 encoded owner")
	}

	// Data is returned as [payload, encoding].
	if len(resp.Value.Data) == 0 {
		return AccountInfo{}, errors.New("missing account data in response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Value.Data[0])
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base64 encoded data")
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   resp.Value.Lamports,
		Executable: resp.Value.Executable,
	}, nil
}

func (c *client) RequestAirdrop(account ed25519.PublicKey, lamports uint64, commitment Commitment) (Signature, error) {
	var encoded string
	if err := c.call(&encoded, "requestAirdrop", base58.Encode(account), lamports, commitment); err != nil {
		return Signature{}, errors.Wrap(err, "requestAirdrop() failed to send request")
	}

	var sig Signature
	if err := decodeFixed(sig[:], encoded); err != nil {
		return Signature{}, errors.Wrap(err, "invalid signature in response")
	}
	if sig == (Signature{}) {
		return Signature{}, errors.New("empty signature returned")
	}
	return sig, nil
}

// GetSignatureStatus polls until sig reaches the commitment level, fails,
// or the poll limit is hit. A failed transaction is returned without error;
// its status carries the ErrorResult.
func (c *client) GetSignatureStatus(sig Signature, commitment Commitment) (*SignatureStatus, error) {
	var status *SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := c.GetSignatureStatuses([]Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return ErrSignatureNotFound
			case status.ErrorResult != nil, status.reached(commitment):
				return nil
			default:
				return errConfirmationsWait
			}
		},
		retry.RetriableErrors(ErrSignatureNotFound, errConfirmationsWait),
		retry.Limit(sigStatusPollLimit),
		retry.Backoff(backoff.Constant(PollRate), PollRate),
	)
	return status, err
}

func (c *client) GetSignatureStatuses(sigs []Signature) ([]*SignatureStatus, error) {
	encoded := make([]string, len(sigs))
	for i, sig := range sigs {
		encoded[i] = sig.String()
	}

	config := struct {
		SearchTransactionHistory bool `json:"searchTransactionHistory"`
	}{
		SearchTransactionHistory: true,
	}

	var resp contextValue[[]*rpcSignatureStatus]
	if err := c.call(&resp, "getSignatureStatuses", encoded, config); err != nil {
		return nil, err
	}
	if len(resp.Value) != len(sigs) {
		return nil, errors.Errorf("expected %d statuses, got %d", len(sigs), len(resp.Value))
	}

	statuses := make([]*SignatureStatus, len(sigs))
	for i, raw := range resp.Value {
		if raw == nil {
			continue
		}

		status, err := raw.parse()
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse transaction result")
		}
		statuses[i] = status
	}
	return statuses, nil
}

func (s *rpcSignatureStatus) parse() (*SignatureStatus, error) {
	status := &SignatureStatus{
		Slot:               s.Slot,
		Confirmations:      s.Confirmations,
		ConfirmationStatus: s.ConfirmationStatus,
	}

	if len(s.Err) == 0 || bytes.Equal(s.Err, []byte("null")) {
		return status, nil
	}

	var raw interface{}
	if err := json.Unmarshal(s.Err, &raw); err != nil {
		return nil, err
	}

	txErr, err := ParseTransactionError(raw)
	if err != nil {
		return nil, err
	}
	status.ErrorResult = txErr
	return status, nil
}

// decodeFixed decodes a base58 value that must fill dst exactly.
func decodeFixed(dst []byte, encoded string) error {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return err
	}
	if len(decoded) != len(dst) {
		return errors.Errorf("invalid size: %d", len(decoded))
	}

	copy(dst, decoded)
	return nil
}

// blockhashCache holds the most recent blockhash for a short, randomized
// window so concurrent callers don't all refresh at once.
type blockhashCache struct {
	mu        sync.RWMutex
	blockhash Blockhash
	expiry    time.Time
}

func (c *blockhashCache) get() (Blockhash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.blockhash == (Blockhash{}) || time.Now().After(c.expiry) {
		return Blockhash{}, false
	}
	return c.blockhash, true
}

func (c *blockhashCache) set(hash Blockhash) {
	window := time.Duration(float64(blockhashCacheWindow) * (0.8 + 0.4*rand.Float64()))

	c.mu.Lock()
	c.blockhash = hash
	c.expiry = time.Now().Add(window)
	c.mu.Unlock()
}
