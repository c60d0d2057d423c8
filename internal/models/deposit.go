package models

import "github.com/shopspring/decimal"

// DepositStatus classifies the result of one deposit probe.
type DepositStatus string

const (
	DepositNotFound  DepositStatus = "not_found"
	DepositFound     DepositStatus = "found"
	DepositConfirmed DepositStatus = "confirmed"
)

// DepositObservation is the ephemeral result of one probe against the
// blockchain indexer. A probe failure is reported as not_found so the
// watcher simply tries again next tick.
type DepositObservation struct {
	Status         DepositStatus   `json:"status"`
	Confirmations  int             `json:"confirmations"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
}
