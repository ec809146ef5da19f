package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/ybbus/jsonrpc"
)

// TransactionErrorKey is the string key returned in a transaction error.
//
// Source: https://github.com/solana-labs/solana/blob/fc2bf2d3b669d1c6655ae48b0a05f470938f3676/sdk/src/transaction/mod.rs#L37
type TransactionErrorKey string

const (
	TransactionErrorAccountInUse            TransactionErrorKey = "AccountInUse"
	TransactionErrorAccountNotFound         TransactionErrorKey = "AccountNotFound"
	TransactionErrorProgramAccountNotFound  TransactionErrorKey = "ProgramAccountNotFound"
	TransactionErrorInsufficientFundsForFee TransactionErrorKey = "InsufficientFundsForFee"
	TransactionErrorInvalidAccountForFee    TransactionErrorKey = "InvalidAccountForFee"
	TransactionErrorDuplicateSignature      TransactionErrorKey = "DuplicateSignature"
	TransactionErrorBlockhashNotFound       TransactionErrorKey = "BlockhashNotFound"
	TransactionErrorInstructionError        TransactionErrorKey = "InstructionError"
	TransactionErrorMissingSignatureForFee  TransactionErrorKey = "MissingSignatureForFee"
	TransactionErrorInvalidAccountIndex     TransactionErrorKey = "InvalidAccountIndex"
	TransactionErrorSignatureFailure        TransactionErrorKey = "SignatureFailure"
	TransactionErrorSanitizeFailure         TransactionErrorKey = "SanitizeFailure"
	TransactionErrorUnsupportedVersion      TransactionErrorKey = "UnsupportedVersion"
)

// InstructionErrorKey is the string keys returned in an instruction error.
//
// Source: https://github.com/solana-labs/solana/blob/4e2754341514cd181ae3f373cc2548bd22e918b8/sdk/program/src/instruction.rs#L23
type InstructionErrorKey string

const (
	InstructionErrorGenericError              InstructionErrorKey = "GenericError"
	InstructionErrorInvalidArgument           InstructionErrorKey = "InvalidArgument"
	InstructionErrorInvalidInstructionData    InstructionErrorKey = "InvalidInstructionData"
	InstructionErrorInvalidAccountData        InstructionErrorKey = "InvalidAccountData"
	InstructionErrorInsufficientFunds         InstructionErrorKey = "InsufficientFunds"
	InstructionErrorIncorrectProgramID        InstructionErrorKey = "IncorrectProgramId"
	InstructionErrorMissingRequiredSignature  InstructionErrorKey = "MissingRequiredSignature"
	InstructionErrorAccountAlreadyInitialized InstructionErrorKey = "AccountAlreadyInitialized"
	InstructionErrorNotEnoughAccountKeys      InstructionErrorKey = "NotEnoughAccountKeys"
	InstructionErrorCustom                    InstructionErrorKey = "Custom"
	InstructionErrorInvalidSeeds              InstructionErrorKey = "InvalidSeeds"
)

// CustomError is the numerical error returned by a non-system program.
//
// Anchor programs, such as the prereq program, report their own errors
// starting at 6000, and framework errors (e.g. a seeds constraint) below it.
type CustomError int

func (c CustomError) Error() string {
	return fmt.Sprintf("custom program error: %#x", int(c))
}

// InstructionError indicates an instruction returned an error in a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (i InstructionError) Error() string {
	return fmt.Sprintf("Error processing Instruction %d: %v", i.Index, i.Err)
}

func (i InstructionError) ErrorKey() InstructionErrorKey {
	switch i.Err.(type) {
	case nil:
		return ""
	case CustomError:
		return InstructionErrorCustom
	default:
		return InstructionErrorKey(i.Err.Error())
	}
}

func (i InstructionError) CustomError() *CustomError {
	if custom, ok := i.Err.(CustomError); ok {
		return &custom
	}
	return nil
}

// TransactionError is the reason the runtime gave for rejecting or failing a
// transaction, along with the JSON it was parsed from.
type TransactionError struct {
	key         TransactionErrorKey
	instruction *InstructionError
	raw         interface{}
}

func NewTransactionError(key TransactionErrorKey) *TransactionError {
	return &TransactionError{key: key, raw: string(key)}
}

// NewInstructionTransactionError returns the error reported when the
// instruction at index fails with err.
func NewInstructionTransactionError(index int, err error) *TransactionError {
	var detail interface{} = err.Error()
	if custom, ok := err.(CustomError); ok {
		detail = map[string]interface{}{string(InstructionErrorCustom): int(custom)}
	}

	return &TransactionError{
		key:         TransactionErrorInstructionError,
		instruction: &InstructionError{Index: index, Err: err},
		raw: map[string]interface{}{
			string(TransactionErrorInstructionError): []interface{}{index, detail},
		},
	}
}

// ParseRPCError extracts the transaction error carried in the data of a
// jsonrpc.RPCError, as returned by sendTransaction preflight. A nil result
// with a nil error means the RPC error did not concern the transaction.
func ParseRPCError(err *jsonrpc.RPCError) (*TransactionError, error) {
	if err == nil {
		return nil, nil
	}

	data, ok := err.Data.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected rpc error data: %T", err.Data)
	}
	return ParseTransactionError(data["err"])
}

// ParseTransactionError parses the "err" value found in signature statuses
// and simulation results. The runtime encodes it either as a bare string,
// e.g. "BlockhashNotFound", or as a single entry object, e.g.
// {"InstructionError":[0,{"Custom":6000}]}.
func ParseTransactionError(raw interface{}) (*TransactionError, error) {
	var key string
	var detail interface{}

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		key = v
	case map[string]interface{}:
		var ok bool
		if key, detail, ok = singleEntry(v); !ok {
			return nil, errors.Errorf("expected a single transaction error, got %d", len(v))
		}
	default:
		return nil, errors.Errorf("unexpected transaction error type: %T", raw)
	}

	parsed := &TransactionError{key: TransactionErrorKey(key), raw: raw}
	if parsed.key != TransactionErrorInstructionError {
		return parsed, nil
	}

	instruction, err := parseInstructionError(detail)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse instruction error")
	}
	parsed.instruction = instruction
	return parsed, nil
}

// parseInstructionError parses the [index, detail] tuple of an
// InstructionError.
func parseInstructionError(v interface{}) (*InstructionError, error) {
	tuple, ok := v.([]interface{})
	if !ok || len(tuple) != 2 {
		return nil, errors.Errorf("expected an [index, error] tuple, got %v", v)
	}

	index, err := parseJSONNumber(tuple[0])
	if err != nil {
		return nil, err
	}

	switch detail := tuple[1].(type) {
	case string:
		return &InstructionError{Index: index, Err: errors.New(detail)}, nil
	case map[string]interface{}:
		key, value, ok := singleEntry(detail)
		if !ok {
			return nil, errors.Errorf("expected a single instruction error, got %d", len(detail))
		}
		if key != string(InstructionErrorCustom) {
			return &InstructionError{Index: index, Err: errors.New(key)}, nil
		}

		code, err := parseJSONNumber(value)
		if err != nil {
			return nil, errors.Wrap(err, "invalid custom error code")
		}
		return &InstructionError{Index: index, Err: CustomError(code)}, nil
	default:
		return nil, errors.Errorf("unexpected instruction error type: %T", detail)
	}
}

func (t TransactionError) Error() string {
	if t.instruction != nil {
		return t.instruction.Error()
	}
	return string(t.key)
}

func (t TransactionError) ErrorKey() TransactionErrorKey {
	return t.key
}

func (t TransactionError) InstructionError() *InstructionError {
	return t.instruction
}

// JSONString returns the error in the encoding used by the RPC.
func (t TransactionError) JSONString() (string, error) {
	b, err := json.Marshal(t.raw)
	return string(b), err
}

// SubmissionError is returned when a signed transaction was rejected by the
// network, either at submission or while waiting for confirmation. The
// transaction is never resubmitted on the caller's behalf.
type SubmissionError struct {
	Signature Signature
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", base58.Encode(e.Signature[:]), e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransactionError returns the on-chain failure reason, if the network
// reported one.
func (e *SubmissionError) TransactionError() *TransactionError {
	var txErr *TransactionError
	if errors.As(e.Err, &txErr) {
		return txErr
	}
	return nil
}

func singleEntry(m map[string]interface{}) (string, interface{}, bool) {
	if len(m) != 1 {
		return "", nil, false
	}
	for k, v := range m {
		return k, v, true
	}
	return "", nil, false
}

// parseJSONNumber accepts the numeric forms produced by decoding with and
// without UseNumber, as well as numeric strings.
func parseJSONNumber(v interface{}) (int, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Wrapf(err, "invalid number %q", n)
		}
		return int(i), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid number %q", n)
		}
		return i, nil
	default:
		return 0, errors.Errorf("unexpected number type: %T", v)
	}
}
