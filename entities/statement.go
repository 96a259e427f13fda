package entities

import "time"

// StatementItem is one transaction as returned by the statement endpoint.
type StatementItem struct {
	ID              string   `json:"id"`
	Time            UnixTime `json:"time"`
	Description     string   `json:"description"`
	MCC             uint32   `json:"mcc"`
	OriginalMCC     uint32   `json:"originalMcc"`
	Hold            bool     `json:"hold"`
	Amount          int64    `json:"amount"`
	OperationAmount int64    `json:"operationAmount"`
	CurrencyCode    uint32   `json:"currencyCode"`
	CommissionRate  int64    `json:"commissionRate"`
	CashbackAmount  int64    `json:"cashbackAmount"`
	Balance         int64    `json:"balance"`
	Comment         *string  `json:"comment,omitempty"`
	ReceiptID       *string  `json:"receiptId,omitempty"`
	InvoiceID       *string  `json:"invoiceId,omitempty"`
	CounterEdrpou   *string  `json:"counterEdrpou,omitempty"`
	CounterIban     *string  `json:"counterIban,omitempty"`
	CounterName     *string  `json:"counterName,omitempty"`
}

// StatementRecord is a statement item bound to its account, with the time rendered in the
// configured timezone. This is what gets persisted and published.
type StatementRecord struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"accountId"`
	Time            time.Time `json:"time"`
	Description     string    `json:"description"`
	MCC             uint32    `json:"mcc"`
	OriginalMCC     uint32    `json:"originalMcc"`
	Hold            bool      `json:"hold"`
	Amount          int64     `json:"amount"`
	OperationAmount int64     `json:"operationAmount"`
	CurrencyCode    uint32    `json:"currencyCode"`
	CommissionRate  int64     `json:"commissionRate"`
	CashbackAmount  int64     `json:"cashbackAmount"`
	Balance         int64     `json:"balance"`
	Comment         *string   `json:"comment,omitempty"`
	ReceiptID       *string   `json:"receiptId,omitempty"`
	InvoiceID       *string   `json:"invoiceId,omitempty"`
	CounterEdrpou   *string   `json:"counterEdrpou,omitempty"`
	CounterIban     *string   `json:"counterIban,omitempty"`
	CounterName     *string   `json:"counterName,omitempty"`
}

func NewStatementRecord(accountID string, item StatementItem, loc *time.Location) StatementRecord {
	if loc == nil {
		loc = time.UTC
	}
	return StatementRecord{
		ID:              item.ID,
		AccountID:       accountID,
		Time:            item.Time.Time().In(loc),
		Description:     item.Description,
		MCC:             item.MCC,
		OriginalMCC:     item.OriginalMCC,
		Hold:            item.Hold,
		Amount:          item.Amount,
		OperationAmount: item.OperationAmount,
		CurrencyCode:    item.CurrencyCode,
		CommissionRate:  item.CommissionRate,
		CashbackAmount:  item.CashbackAmount,
		Balance:         item.Balance,
		Comment:         item.Comment,
		ReceiptID:       item.ReceiptID,
		InvoiceID:       item.InvoiceID,
		CounterEdrpou:   item.CounterEdrpou,
		CounterIban:     item.CounterIban,
		CounterName:     item.CounterName,
	}
}
