package api

import (
	"strings"
	"time"

	"ledgerindex/internal/amount"
	"ledgerindex/internal/models"
	"ledgerindex/internal/stats"
)

// NormalizeAccount lower-cases an account id and reports whether it is valid
func NormalizeAccount(raw string) (string, bool) {
	account := strings.ToLower(strings.TrimSpace(raw))
	return account, models.IsAccountID(account)
}

// BuildTransactionResponse renders fixed-point columns as decimal strings
func BuildTransactionResponse(tx *models.Transaction) models.TransactionResponse {
	return models.TransactionResponse{
		Version:            tx.Version,
		ExpirationDate:     tx.ExpirationDate,
		ExpirationUnixtime: tx.ExpirationUnixtime,
		Src:                tx.Src,
		Dest:               tx.Dest,
		Type:               tx.Type,
		Amount:             amount.ToDecimal(tx.Amount).String(),
		GasPrice:           amount.ToDecimal(tx.GasPrice).String(),
		MaxGas:             amount.ToDecimal(tx.MaxGas).String(),
		GasUsed:            amount.ToDecimal(tx.GasUsed).String(),
		SqNum:              tx.SqNum,
		PubKey:             tx.PubKey,
		SenderSig:          tx.SenderSig,
		SignedTxHash:       tx.SignedTxHash,
		StateRootHash:      tx.StateRootHash,
		EventRootHash:      tx.EventRootHash,
		CodeHex:            tx.CodeHex,
		Program:            tx.Program,
	}
}

// BuildAccountStateResponse renders the balance as a decimal string
func BuildAccountStateResponse(state *models.AccountState) models.AccountStateResponse {
	return models.AccountStateResponse{
		Address:             state.Address,
		Balance:             state.Balance.String(),
		SequenceNumber:      state.SequenceNumber,
		SentEventsCount:     state.SentEventsCount,
		ReceivedEventsCount: state.ReceivedEventsCount,
	}
}

// BuildStatsResponse keeps the window order of results
func BuildStatsResponse(results []*stats.Result, now time.Time) models.StatsResponse {
	response := models.StatsResponse{
		GeneratedAt: now.UTC(),
		Windows:     make([]models.StatsWindowResponse, 0, len(results)),
	}

	for _, r := range results {
		response.Windows = append(response.Windows, models.StatsWindowResponse{
			Window: WindowLabel(r.Window),
			Fields: r.Fields(),
			Named: models.StatsSummary{
				BlocksDelta:  r.BlocksDelta,
				Days:         r.Days,
				Hours:        r.Hours,
				Minutes:      r.Minutes,
				Seconds:      r.Seconds,
				Throughput:   r.Throughput,
				MintPercent:  r.MintPercent,
				P2PPercent:   r.P2PPercent,
				OtherPercent: r.OtherPercent,
				MintSum:      r.MintSum.String(),
				P2PSum:       r.P2PSum.String(),
				OtherSum:     r.OtherSum.String(),
				DistinctDest: r.DistinctDest,
				DistinctSrc:  r.DistinctSrc,
			},
		})
	}

	return response
}

// WindowLabel names a stats window
func WindowLabel(d time.Duration) string {
	switch {
	case d == 0:
		return "all"
	case d%time.Hour == 0:
		return strings.TrimSuffix(d.String(), "0m0s")
	default:
		return d.String()
	}
}
