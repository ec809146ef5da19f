package wallet

import (
	"context"

	"github.com/code-payments/solana-prereq/pkg/metrics"
	"github.com/code-payments/solana-prereq/pkg/solana"
)

const (
	metricsStructName = "wallet.Wallet"

	transactionSubmittedEventName = "WalletTransactionSubmitted"
	sweptLamportsMetricName       = "Wallet/SweptLamports"
	airdropLamportsMetricName     = "Wallet/AirdropLamports"
	airdropConfirmationMetricName = "Wallet/AirdropConfirmationMs"
)

func recordTransactionSubmittedEvent(ctx context.Context, operation string, sig solana.Signature, err error) {
	kvs := map[string]interface{}{
		"operation": operation,
		"signature": sig.String(),
		"success":   err == nil,
	}
	if err != nil {
		kvs["error"] = err.Error()
	}

	metrics.RecordEvent(ctx, transactionSubmittedEventName, kvs)
}
