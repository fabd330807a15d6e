package bankhub

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Checking AccountType = "CHECKING"
	Savings  AccountType = "SAVINGS"
	Business AccountType = "BUSINESS"
)

var accountTypes = []AccountType{Checking, Savings, Business}

func (t AccountType) Valid() bool {
	for _, at := range accountTypes {
		if t == at {
			return true
		}
	}
	return false
}

// ParseAccountType accepts any casing and surrounding whitespace.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrBadRequest{Fields: map[string]string{"type": "must be one of CHECKING, SAVINGS, BUSINESS"}}
	}
	return t, nil
}

type TransactionType string

const (
	TxnDeposit  TransactionType = "DEPOSIT"
	TxnWithdraw TransactionType = "WITHDRAW"
	TxnTransfer TransactionType = "TRANSFER"
)

// Identifiable is implemented by every entity kept in a Repository.
type Identifiable interface {
	ID() snowflake.ID
}

type Account struct {
	AcctID    snowflake.ID    `json:"id"`
	Owner     string          `json:"owner"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

func (a Account) ID() snowflake.ID {
	return a.AcctID
}

// Transaction is an immutable ledger record. A transfer writes one per leg.
type Transaction struct {
	TxnID     snowflake.ID    `json:"id"`
	AcctID    snowflake.ID    `json:"acct_id"`
	Type      TransactionType `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (t Transaction) ID() snowflake.ID {
	return t.TxnID
}
