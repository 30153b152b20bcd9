package engine

import (
	"fmt"
	"math"

	ledgermodels "tradeledger/internal/ledger/models"
	"tradeledger/internal/risk/models"
	txmodels "tradeledger/internal/transaction/models"
)

// Sub-score weights. They sum to 1.
const (
	weightDocumentIntegrity   = 0.40
	weightLedgerActivity      = 0.25
	weightTransactionBehavior = 0.25
	weightExternalSignal      = 0.10
)

// Inputs are the facts a score is derived from.
type Inputs struct {
	Documents           int
	VerificationsFailed int
	VerificationsPassed int
	LedgerEntries       int
	Cancellations       int
	Amendments          int
	Transactions        txmodels.Counts
}

// CollectLedger tallies entries for scoring. RISK_RECALCULATED entries are
// the engine's own output and are ignored.
func CollectLedger(in *Inputs, entries []*ledgermodels.Entry) {
	for _, e := range entries {
		switch e.Action {
		case ledgermodels.ActionRiskRecalculated:
			continue
		case ledgermodels.ActionVerified:
			if e.VerificationPassed() {
				in.VerificationsPassed++
			} else {
				in.VerificationsFailed++
			}
		case ledgermodels.ActionCancelled:
			in.Cancellations++
		case ledgermodels.ActionAmended:
			in.Amendments++
		}
		in.LedgerEntries++
	}
}

func documentIntegrity(in Inputs) float64 {
	total := in.VerificationsFailed + in.VerificationsPassed
	if total == 0 {
		return 0
	}
	return float64(in.VerificationsFailed) / float64(total) * 100
}

func ledgerActivity(in Inputs) float64 {
	if in.LedgerEntries == 0 {
		return 0
	}
	suspicious := float64(2*in.Cancellations + in.Amendments)
	return math.Min(100, math.Round(suspicious/float64(in.LedgerEntries)*100))
}

func transactionBehavior(in Inputs) float64 {
	c := in.Transactions
	if c.Total == 0 {
		return 0
	}
	total := float64(c.Total)
	negative := float64(3*c.Disputed+2*c.Cancelled) / (3 * total)
	positive := float64(c.Completed) / total
	return clamp(math.Round((negative-0.3*positive)*100), 0, 100)
}

// externalSignal is a placeholder for third-party data feeds.
func externalSignal(Inputs) float64 {
	return 0
}

// Score combines the weighted sub-scores into a final 0-100 score.
func Score(in Inputs) (int, models.Breakdown) {
	di := documentIntegrity(in)
	la := ledgerActivity(in)
	tb := transactionBehavior(in)
	ext := externalSignal(in)

	total := weightDocumentIntegrity*di +
		weightLedgerActivity*la +
		weightTransactionBehavior*tb +
		weightExternalSignal*ext

	return int(math.Round(clamp(total, 0, 100))), models.Breakdown{
		DocumentIntegrity:   int(math.Round(di)),
		LedgerActivity:      int(math.Round(la)),
		TransactionBehavior: int(math.Round(tb)),
		ExternalSignal:      int(math.Round(ext)),
	}
}

// Rationale describes a score in terms of its inputs only, so unchanged data
// always yields the same text.
func Rationale(in Inputs, score int, b models.Breakdown) string {
	return fmt.Sprintf(
		"score %d (%s): document integrity %d (%d of %d verifications failed); "+
			"ledger activity %d (%d cancellations, %d amendments in %d entries); "+
			"transaction behavior %d (%d disputed, %d cancelled, %d completed of %d transactions); "+
			"external signal %d",
		score, models.CategoryFor(score),
		b.DocumentIntegrity, in.VerificationsFailed, in.VerificationsFailed+in.VerificationsPassed,
		b.LedgerActivity, in.Cancellations, in.Amendments, in.LedgerEntries,
		b.TransactionBehavior, in.Transactions.Disputed, in.Transactions.Cancelled, in.Transactions.Completed, in.Transactions.Total,
		b.ExternalSignal,
	)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
