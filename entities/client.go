package entities

import "time"

// ClientInfo is the response of the client-info endpoint.
type ClientInfo struct {
	ClientID string    `json:"clientId"`
	Name     string    `json:"name"`
	Accounts []Account `json:"accounts"`
	Jars     []Jar     `json:"jars,omitempty"`
}

// Account is an account snapshot. ClientID and LastSyncAt are not part of the provider payload, they
// are filled in before the account is stored.
type Account struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"clientId,omitempty"`
	SendID       string     `json:"sendId"`
	Balance      int64      `json:"balance"`
	CreditLimit  int64      `json:"creditLimit"`
	Type         string     `json:"type"`
	CurrencyCode uint32     `json:"currencyCode"`
	CashbackType *string    `json:"cashbackType,omitempty"`
	IBAN         *string    `json:"iban,omitempty"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
}

type Jar struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CurrencyCode uint32 `json:"currencyCode"`
	Balance      int64  `json:"balance"`
	Goal         *int64 `json:"goal,omitempty"`
}

// Client is the stored owner of a token.
type Client struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Token    string `json:"token"`
}
