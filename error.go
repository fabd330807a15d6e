package bankhub

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrInternalServer = errors.New("internal server error")
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

// ErrNotFound is returned by a Repository when no entity is stored under ID.
type ErrNotFound struct {
	ID snowflake.ID `json:"id"`
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("record `%v` not found", e.ID)
}

type ErrInvalidAmount struct {
	Amount decimal.Decimal `json:"amount"`
}

func (e ErrInvalidAmount) Error() string {
	return fmt.Sprintf("amount must be > 0, got %v", e.Amount)
}

type ErrAccountNotFound struct {
	ID snowflake.ID `json:"id"`
}

func (e ErrAccountNotFound) Error() string {
	return fmt.Sprintf("account `%v` not found", e.ID)
}

type ErrInsufficientFunds struct {
	AcctID  snowflake.ID    `json:"acct_id"`
	Balance decimal.Decimal `json:"balance"`
	Amount  decimal.Decimal `json:"amount"`
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds in account `%v`: balance %v, requested %v", e.AcctID, e.Balance, e.Amount)
}

type ErrDuplicateAccount struct {
	Owner string      `json:"owner"`
	Type  AccountType `json:"type"`
}

func (e ErrDuplicateAccount) Error() string {
	return fmt.Sprintf("account with owner %s and type %s already exists", e.Owner, e.Type)
}

// ErrTransferFailed reports a transfer whose source or destination account
// does not exist. Missing lists the ids that could not be resolved.
type ErrTransferFailed struct {
	From    snowflake.ID   `json:"from"`
	To      snowflake.ID   `json:"to"`
	Missing []snowflake.ID `json:"missing"`
}

func (e ErrTransferFailed) Error() string {
	return fmt.Sprintf("transfer `%v` -> `%v` failed: account(s) %v not found", e.From, e.To, e.Missing)
}

// ErrOverloaded is returned by the load shedding middlewares when a call
// could not be admitted.
type ErrOverloaded struct {
	Op string `json:"op"`
}

func (e ErrOverloaded) Error() string {
	return fmt.Sprintf("service overloaded: %s", e.Op)
}
