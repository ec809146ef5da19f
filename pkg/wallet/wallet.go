// Package wallet implements the prerequisite workflows on top of a
// solana.Client: funding a devnet wallet, enrolling with the prereq
// program and moving lamports out of the wallet.
package wallet

import (
	"context"
	"crypto/ed25519"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/solana-prereq/pkg/metrics"
	"github.com/code-payments/solana-prereq/pkg/retry"
	"github.com/code-payments/solana-prereq/pkg/retry/backoff"
	"github.com/code-payments/solana-prereq/pkg/solana"
	"github.com/code-payments/solana-prereq/pkg/solana/memo"
	"github.com/code-payments/solana-prereq/pkg/solana/prereq"
	"github.com/code-payments/solana-prereq/pkg/solana/system"
)

var (
	// ErrInsufficientBalance is returned by SweepBalance when the fee for
	// the transfer would consume the entire balance.
	ErrInsufficientBalance = errors.New("insufficient balance to cover fee")

	ErrInvalidGithubHandle = errors.New("invalid github handle")
	ErrAlreadyEnrolled     = errors.New("wallet already enrolled")
	ErrNotEnrolled         = errors.New("wallet not enrolled")
)

// Wallet runs the prerequisite workflows against a cluster.
type Wallet struct {
	log    *logrus.Entry
	conf   *conf
	client solana.Client
}

func New(client solana.Client, configProvider ConfigProvider) *Wallet {
	return &Wallet{
		log:    logrus.StandardLogger().WithField("type", "wallet/wallet"),
		conf:   configProvider(),
		client: client,
	}
}

// Keygen creates a new random wallet key.
func Keygen() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	return key, nil
}

// Enrollment is the on chain record of a completed prerequisite.
type Enrollment struct {
	Owner  ed25519.PublicKey
	Prereq ed25519.PublicKey
	Bump   uint8
}

// Airdrop requests devnet lamports for owner and waits until the airdrop
// reaches the configured commitment level.
func (w *Wallet) Airdrop(ctx context.Context, owner ed25519.PublicKey) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Airdrop")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	lamports := w.conf.airdropLamports.Get(ctx)
	commitment := w.commitment(ctx)

	log := w.log.WithFields(logrus.Fields{
		"method":   "Airdrop",
		"owner":    base58.Encode(owner),
		"lamports": lamports,
	})

	sig, err = w.client.RequestAirdrop(owner, lamports, commitment)
	if err != nil {
		log.WithError(err).Warn("failure requesting airdrop")
		return sig, errors.Wrap(err, "error requesting airdrop")
	}
	log = log.WithField("signature", sig.String())

	if err := w.waitForConfirmation(ctx, sig, commitment); err != nil {
		log.WithError(err).Warn("airdrop not confirmed")
		return sig, err
	}

	metrics.RecordCount(ctx, airdropLamportsMetricName, lamports)
	metrics.RecordDuration(ctx, airdropConfirmationMetricName, tracer.Elapsed())
	log.Debug("airdrop confirmed")
	return sig, nil
}

// waitForConfirmation polls the status of sig until it reaches commitment,
// fails, or the configured timeout (or ctx) expires.
func (w *Wallet) waitForConfirmation(ctx context.Context, sig solana.Signature, commitment solana.Commitment) error {
	ctx, cancel := context.WithTimeout(ctx, w.conf.confirmationTimeout.Get(ctx))
	defer cancel()

	errNotConfirmed := errors.New("not confirmed")

	var status *solana.SignatureStatus
	_, err := retry.Retry(
		func() error {
			statuses, err := w.client.GetSignatureStatuses([]solana.Signature{sig})
			if err != nil {
				return err
			}

			status = statuses[0]
			switch {
			case status == nil:
				return solana.ErrSignatureNotFound
			case status.ErrorResult != nil:
				return nil
			case commitment == solana.CommitmentFinalized && !status.Finalized():
				return errNotConfirmed
			case commitment == solana.CommitmentConfirmed && !status.Confirmed():
				return errNotConfirmed
			}
			return nil
		},
		retry.RetriableErrors(solana.ErrSignatureNotFound, errNotConfirmed),
		retry.Context(ctx),
		retry.Backoff(backoff.Constant(solana.PollRate), solana.PollRate),
	)
	if err != nil {
		return &solana.SubmissionError{Signature: sig, Err: err}
	}
	if status.ErrorResult != nil {
		return &solana.SubmissionError{Signature: sig, Err: status.ErrorResult}
	}
	return nil
}

// Enroll completes the prerequisite for signer, recording the github
// handle in the signer's prereq account.
func (w *Wallet) Enroll(ctx context.Context, signer ed25519.PrivateKey, github string) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Enroll")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return w.submitPrereq(ctx, tracer, prereq.InstructionTypeComplete, signer, github)
}

// Update replaces the github handle recorded for an enrolled signer.
func (w *Wallet) Update(ctx context.Context, signer ed25519.PrivateKey, github string) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Update")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	return w.submitPrereq(ctx, tracer, prereq.InstructionTypeUpdate, signer, github)
}

func (w *Wallet) submitPrereq(ctx context.Context, tracer *metrics.MethodTracer, kind prereq.InstructionType, signer ed25519.PrivateKey, github string) (solana.Signature, error) {
	owner := signer.Public().(ed25519.PublicKey)

	github = strings.TrimSpace(github)
	if len(github) == 0 {
		return solana.Signature{}, ErrInvalidGithubHandle
	}

	fields := logrus.Fields{
		"owner":  base58.Encode(owner),
		"github": github,
	}
	tracer.AddAttributes(fields)
	log := w.log.WithFields(fields).WithField("method", kind.String())

	enrollment, enrolled, err := w.GetEnrollment(ctx, owner)
	if err != nil {
		log.WithError(err).Warn("failure checking enrollment")
		return solana.Signature{}, err
	}
	log = log.WithField("prereq", base58.Encode(enrollment.Prereq))
	tracer.AddAttribute("prereq", base58.Encode(enrollment.Prereq))

	var args prereq.InstructionArgs
	switch kind {
	case prereq.InstructionTypeComplete:
		if enrolled {
			return solana.Signature{}, ErrAlreadyEnrolled
		}
		args = &prereq.CompleteInstructionArgs{Github: []byte(github)}
	case prereq.InstructionTypeUpdate:
		if !enrolled {
			return solana.Signature{}, ErrNotEnrolled
		}
		args = &prereq.UpdateInstructionArgs{Github: []byte(github)}
	}

	instruction, err := prereq.NewInstruction(
		kind,
		[]ed25519.PublicKey{owner, enrollment.Prereq, prereq.SYSTEM_PROGRAM_ID},
		args,
	)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "error building instruction")
	}

	sig, err := w.submit(ctx, log, kind.String(), owner, []ed25519.PrivateKey{signer}, instruction)
	if err != nil {
		return sig, err
	}

	log.WithField("signature", sig.String()).Info("prereq transaction confirmed")
	return sig, nil
}

// GetEnrollment derives the prereq account of owner and reports whether it
// exists on chain.
func (w *Wallet) GetEnrollment(ctx context.Context, owner ed25519.PublicKey) (*Enrollment, bool, error) {
	address, bump, err := prereq.GetPrereqAddress(&prereq.GetPrereqAddressArgs{Owner: owner})
	if err != nil {
		return nil, false, errors.Wrap(err, "error deriving prereq address")
	}

	enrollment := &Enrollment{
		Owner:  owner,
		Prereq: address,
		Bump:   bump,
	}

	info, err := w.client.GetAccountInfo(address, w.commitment(ctx))
	if errors.Is(err, solana.ErrNoAccountInfo) {
		return enrollment, false, nil
	} else if err != nil {
		return nil, false, errors.Wrap(err, "error getting prereq account")
	}

	if !info.Owner.Equal(prereq.PROGRAM_ID) {
		return nil, false, errors.Errorf("prereq account %s is owned by %s", base58.Encode(address), base58.Encode(info.Owner))
	}
	return enrollment, true, nil
}

// Transfer sends lamports from the sender to the recipient, with an
// optional memo.
func (w *Wallet) Transfer(ctx context.Context, sender ed25519.PrivateKey, to ed25519.PublicKey, lamports uint64, memoText string) (sig solana.Signature, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Transfer")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	from := sender.Public().(ed25519.PublicKey)
	log := w.log.WithFields(logrus.Fields{
		"method":   "Transfer",
		"from":     base58.Encode(from),
		"to":       base58.Encode(to),
		"lamports": lamports,
	})

	if lamports == 0 {
		return solana.Signature{}, errors.New("transfer amount must be positive")
	}

	return w.submit(ctx, log, "Transfer", from, []ed25519.PrivateKey{sender}, transferInstructions(from, to, lamports, memoText)...)
}

// SweepBalance transfers the sender's entire balance, less the network fee,
// to the recipient. The fee is priced against the exact transfer message
// with the full balance, and the transfer is then rebuilt for balance - fee.
// ErrInsufficientBalance is returned when the fee is at least the balance.
//
// The balance may change between the balance read and processing, in which
// case the transfer fails on chain rather than being retried.
func (w *Wallet) SweepBalance(ctx context.Context, sender ed25519.PrivateKey, to ed25519.PublicKey, memoText string) (sig solana.Signature, amount uint64, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "SweepBalance")
	defer func() {
		tracer.OnError(err)
		tracer.End()
	}()

	from := sender.Public().(ed25519.PublicKey)
	log := w.log.WithFields(logrus.Fields{
		"method": "SweepBalance",
		"from":   base58.Encode(from),
		"to":     base58.Encode(to),
	})

	balance, err := w.client.GetBalance(from)
	if err != nil {
		log.WithError(err).Warn("failure getting balance")
		return sig, 0, errors.Wrap(err, "error getting balance")
	}

	blockhash, err := w.client.GetLatestBlockhash()
	if err != nil {
		log.WithError(err).Warn("failure getting blockhash")
		return sig, 0, errors.Wrap(err, "error getting blockhash")
	}

	draft := solana.NewTransaction(from, transferInstructions(from, to, balance, memoText)...)
	draft.SetBlockhash(blockhash)

	fee, err := w.client.GetFeeForMessage(draft.Message)
	if err != nil {
		log.WithError(err).Warn("failure getting fee")
		return sig, 0, errors.Wrap(err, "error getting fee for message")
	}

	log = log.WithFields(logrus.Fields{
		"balance": balance,
		"fee":     fee,
	})

	if fee >= balance {
		log.Debug("balance doesn't cover fee")
		return sig, 0, ErrInsufficientBalance
	}
	amount = balance - fee

	tx, err := solana.AssembleTransaction(
		from,
		blockhash,
		[]ed25519.PrivateKey{sender},
		transferInstructions(from, to, amount, memoText)...,
	)
	if err != nil {
		return sig, 0, errors.Wrap(err, "error assembling transaction")
	}

	sig, err = w.send(ctx, log, "SweepBalance", tx)
	if err != nil {
		return sig, 0, err
	}

	metrics.RecordCount(ctx, sweptLamportsMetricName, amount)
	return sig, amount, nil
}

func transferInstructions(from, to ed25519.PublicKey, lamports uint64, memoText string) []solana.Instruction {
	instructions := []solana.Instruction{
		system.Transfer(from, to, lamports),
	}
	if len(memoText) > 0 {
		instructions = append(instructions, memo.Instruction(memoText))
	}
	return instructions
}

// submit assembles the instructions against the latest blockhash and sends
// the transaction once.
func (w *Wallet) submit(ctx context.Context, log *logrus.Entry, operation string, payer ed25519.PublicKey, signers []ed25519.PrivateKey, instructions ...solana.Instruction) (solana.Signature, error) {
	blockhash, err := w.client.GetLatestBlockhash()
	if err != nil {
		log.WithError(err).Warn("failure getting blockhash")
		return solana.Signature{}, errors.Wrap(err, "error getting blockhash")
	}

	tx, err := solana.AssembleTransaction(payer, blockhash, signers, instructions...)
	if err != nil {
		return solana.Signature{}, errors.Wrap(err, "error assembling transaction")
	}

	return w.send(ctx, log, operation, tx)
}

func (w *Wallet) send(ctx context.Context, log *logrus.Entry, operation string, tx solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := w.client.SendAndConfirmTransaction(tx, w.commitment(ctx))
	recordTransactionSubmittedEvent(ctx, operation, sig, err)

	log = log.WithFields(logrus.Fields{
		"signature": sig.String(),
		"latency":   time.Since(start),
	})
	if err != nil {
		log.WithError(err).Warn("transaction failed")
		return sig, err
	}

	log.Debug("transaction confirmed")
	return sig, nil
}

func (w *Wallet) commitment(ctx context.Context) solana.Commitment {
	value := w.conf.commitment.Get(ctx)

	commitment, err := solana.CommitmentFromString(value)
	if err != nil {
		w.log.WithField("commitment", value).Warn("unknown commitment, using confirmed")
		return solana.CommitmentConfirmed
	}
	return commitment
}
