package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureStatus(t *testing.T) {
	zero, one := 0, 1

	testCases := []struct {
		s         SignatureStatus
		confirmed bool
		finalized bool
	}{
		{
			s: SignatureStatus{
				Slot:               10,
				Confirmations:      &zero,
				ConfirmationStatus: "",
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusProcessed,
			},
		},
		{
			s: SignatureStatus{
				Slot:               10,
				Confirmations:      &one,
				ConfirmationStatus: "",
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				Confirmations:      &zero,
				ConfirmationStatus: confirmationStatusConfirmed,
			},
			confirmed: true,
		},
		{
			s: SignatureStatus{
				Slot:               10,
				ConfirmationStatus: confirmationStatusFinalized,
			},
			confirmed: true,
			finalized: true,
		},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.confirmed, tc.s.Confirmed())
		assert.Equal(t, tc.finalized, tc.s.Finalized())
	}
}

func TestCommitmentFromString(t *testing.T) {
	for _, c := range []Commitment{CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized} {
		actual, err := CommitmentFromString(c.Commitment)
		require.NoError(t, err)
		assert.Equal(t, c, actual)
	}

	_, err := CommitmentFromString("max")
	assert.Error(t, err)
}

type rpcRequest struct {
	ID     interface{}       `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcHandler func(params []json.RawMessage) (result interface{}, rpcErr map[string]interface{})

type testServer struct {
	t *testing.T

	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
}

func newTestServer(t *testing.T, handlers map[string]rpcHandler) (*testServer, Client) {
	s := &testServer{
		t:        t,
		handlers: handlers,
		calls:    make(map[string]int),
	}

	server := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(server.Close)

	return s, New(server.URL)
}

func (s *testServer) serve(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))

	s.mu.Lock()
	s.calls[req.Method]++
	handler, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}
	if !ok {
		resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	require.NoError(s.t, json.NewEncoder(w).Encode(resp))
}

func (s *testServer) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func TestClient_GetLatestBlockhash(t *testing.T) {
	var expected Blockhash
	for i := range expected {
		expected[i] = byte(i)
	}

	server, client := newTestServer(t, map[string]rpcHandler{
		"getLatestBlockhash": func([]json.RawMessage) (interface{}, map[string]interface{}) {
			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value": map[string]interface{}{
					"blockhash":            base58.Encode(expected[:]),
					"lastValidBlockHeight": 100,
				},
			}, nil
		},
	})

	for i := 0; i < 3; i++ {
		actual, err := client.GetLatestBlockhash()
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	// Subsequent calls are served from the cache
	assert.Equal(t, 1, server.callCount("getLatestBlockhash"))
}

func TestClient_GetBalance(t *testing.T) {
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	_, client := newTestServer(t, map[string]rpcHandler{
		"getBalance": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var address string
			require.NoError(t, json.Unmarshal(params[0], &address))
			if address != base58.Encode(account) {
				return nil, map[string]interface{}{"code": invalidParamCode, "message": "Invalid param"}
			}

			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value":   2000000000,
			}, nil
		},
	})

	balance, err := client.GetBalance(account)
	require.NoError(t, err)
	assert.EqualValues(t, 2000000000, balance)

	_, err = client.GetBalance(make([]byte, ed25519.PublicKeySize))
	assert.Equal(t, ErrNoBalance, err)
}

func TestClient_GetFeeForMessage(t *testing.T) {
	payer, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx := NewTransaction(payer, NewInstruction(program, []byte{1}))

	var expired bool
	_, client := newTestServer(t, map[string]rpcHandler{
		"getFeeForMessage": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var encoded string
			require.NoError(t, json.Unmarshal(params[0], &encoded))

			raw, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)
			assert.Equal(t, tx.Message.Marshal(), raw)

			if expired {
				return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil}, nil
			}
			return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": 5000}, nil
		},
	})

	fee, err := client.GetFeeForMessage(tx.Message)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, fee)

	expired = true
	_, err = client.GetFeeForMessage(tx.Message)
	assert.Equal(t, ErrFeeUnavailable, err)
}

func TestClient_SendAndConfirmTransaction(t *testing.T) {
	tx := signedTestTransaction(t)

	var statusErr interface{}
	server, client := newTestServer(t, map[string]rpcHandler{
		"sendTransaction": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var encoded string
			require.NoError(t, json.Unmarshal(params[0], &encoded))

			raw, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)
			assert.Equal(t, tx.Marshal(), raw)

			return base58.Encode(tx.Signature()), nil
		},
		"getSignatureStatuses": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var sigs []string
			require.NoError(t, json.Unmarshal(params[0], &sigs))
			require.Len(t, sigs, 1)
			assert.Equal(t, base58.Encode(tx.Signature()), sigs[0])

			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 10},
				"value": []interface{}{
					map[string]interface{}{
						"slot":               9,
						"confirmations":      nil,
						"confirmationStatus": confirmationStatusFinalized,
						"err":                statusErr,
					},
				},
			}, nil
		},
	})

	sig, err := client.SendAndConfirmTransaction(tx, CommitmentFinalized)
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0], sig)

	statusErr = map[string]interface{}{
		"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6000}},
	}

	sig, err = client.SendAndConfirmTransaction(tx, CommitmentFinalized)
	require.Error(t, err)
	assert.Equal(t, tx.Signatures[0], sig)

	var submissionErr *SubmissionError
	require.True(t, errors.As(err, &submissionErr))
	require.NotNil(t, submissionErr.TransactionError())
	assert.Equal(t, TransactionErrorInstructionError, submissionErr.TransactionError().ErrorKey())
	assert.Equal(t, CustomError(6000), *submissionErr.TransactionError().InstructionError().CustomError())

	// Submission is never repeated on failure
	assert.Equal(t, 2, server.callCount("sendTransaction"))
}

func TestClient_SendAndConfirmTransaction_Rejected(t *testing.T) {
	tx := signedTestTransaction(t)

	server, client := newTestServer(t, map[string]rpcHandler{
		"sendTransaction": func([]json.RawMessage) (interface{}, map[string]interface{}) {
			return nil, map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.",
				"data": map[string]interface{}{
					"err":  "AccountNotFound",
					"logs": []string{},
				},
			}
		},
	})

	_, err := client.SendAndConfirmTransaction(tx, CommitmentConfirmed)
	require.Error(t, err)

	var submissionErr *SubmissionError
	require.True(t, errors.As(err, &submissionErr))
	require.NotNil(t, submissionErr.TransactionError())
	assert.Equal(t, TransactionErrorAccountNotFound, submissionErr.TransactionError().ErrorKey())

	assert.Equal(t, 1, server.callCount("sendTransaction"))
	assert.Equal(t, 0, server.callCount("getSignatureStatuses"))
}

func TestClient_RequestAirdrop(t *testing.T) {
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var expected Signature
	expected[0] = 1

	_, client := newTestServer(t, map[string]rpcHandler{
		"requestAirdrop": func(params []json.RawMessage) (interface{}, map[string]interface{}) {
			var lamports uint64
			require.NoError(t, json.Unmarshal(params[1], &lamports))
			assert.EqualValues(t, 2000000000, lamports)

			return base58.Encode(expected[:]), nil
		},
	})

	sig, err := client.RequestAirdrop(account, 2000000000, CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, expected, sig)
}

func TestClient_GetAccountInfo(t *testing.T) {
	account, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	owner, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var exists bool
	_, client := newTestServer(t, map[string]rpcHandler{
		"getAccountInfo": func([]json.RawMessage) (interface{}, map[string]interface{}) {
			if !exists {
				return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil}, nil
			}

			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value": map[string]interface{}{
					"lamports":   1000,
					"owner":      base58.Encode(owner),
					"data":       []string{base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), "base64"},
					"executable": false,
				},
			}, nil
		},
	})

	_, err = client.GetAccountInfo(account, CommitmentConfirmed)
	assert.Equal(t, ErrNoAccountInfo, err)

	exists = true
	info, err := client.GetAccountInfo(account, CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, owner, info.Owner)
	assert.Equal(t, []byte{1, 2, 3}, info.Data)
	assert.EqualValues(t, 1000, info.Lamports)
}

func signedTestTransaction(t *testing.T) Transaction {
	program, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, payer, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tx, err := AssembleTransaction(
		payer.Public().(ed25519.PublicKey),
		Blockhash{1, 2, 3},
		[]ed25519.PrivateKey{payer},
		NewInstruction(program, []byte{1, 2, 3}),
	)
	require.NoError(t, err)
	return tx
}

// scriptedLimiter denies the first n calls per method.
type scriptedLimiter struct {
	mu     sync.Mutex
	denied map[string]int
	n      int
}

func (l *scriptedLimiter) Allow(method string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.denied[method] < l.n {
		l.denied[method]++
		return false
	}
	return true
}

func TestClient_RateLimited(t *testing.T) {
	s := &testServer{
		t: t,
		handlers: map[string]rpcHandler{
			"getSlot": func([]json.RawMessage) (interface{}, map[string]interface{}) {
				return 42, nil
			},
		},
		calls: make(map[string]int),
	}
	server := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(server.Close)

	limiter := &scriptedLimiter{denied: make(map[string]int), n: 1}
	client := NewRateLimited(server.URL, limiter)

	slot, err := client.GetSlot(CommitmentConfirmed)
	require.NoError(t, err)
	assert.EqualValues(t, 42, slot)

	// The throttled attempt never reached the node.
	assert.Equal(t, 1, s.callCount("getSlot"))
	assert.Equal(t, 1, limiter.denied["getSlot"])
}
