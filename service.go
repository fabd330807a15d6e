package bankhub

import (
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=mocks/service.go -package=mocks

type CreateAccountReq struct {
	Owner          string          `json:"owner"`
	Type           AccountType     `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type ChargeReq struct {
	Amount decimal.Decimal `json:"amount"`
	AcctID snowflake.ID    `json:"-"`
}

type TransferReq struct {
	From   snowflake.ID    `json:"from"`
	To     snowflake.ID    `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type BalanceReq struct {
	AcctID snowflake.ID
}

type StatementReq struct {
	AcctID snowflake.ID
}

type Service interface {
	CreateAccount(CreateAccountReq) (*Account, error)
	Deposit(ChargeReq) (*decimal.Decimal, error)
	Withdraw(ChargeReq) (*decimal.Decimal, error)
	Transfer(TransferReq) error
	Balance(BalanceReq) (*decimal.Decimal, error)
	Accounts() []Account
	Transactions() []Transaction
	Statement(io.Writer, StatementReq) error
}

type ownerKey struct {
	owner string
	typ   AccountType
}

var (
	_ Service = (*serviceImpl)(nil)
)

// NewService builds the ledger over the given stores. Accounts already present
// in accts are indexed, so a store holding two accounts with the same owner
// and type is rejected.
func NewService(
	accts Repository[Account],
	txns Repository[Transaction],
	node *snowflake.Node,
	log *zerolog.Logger,
) (*serviceImpl, error) {
	svc := &serviceImpl{
		accts:  accts,
		txns:   txns,
		node:   node,
		log:    log,
		now:    time.Now,
		owners: make(map[ownerKey]snowflake.ID),
		locks:  make(map[snowflake.ID]*sync.Mutex),
	}
	for _, a := range accts.FindAll() {
		key := ownerKey{owner: a.Owner, typ: a.Type}
		if _, exists := svc.owners[key]; exists {
			return nil, ErrDuplicateAccount{Owner: a.Owner, Type: a.Type}
		}
		svc.owners[key] = a.AcctID
		svc.locks[a.AcctID] = &sync.Mutex{}
	}

	return svc, nil
}

// serviceImpl serializes mutations per account: a balance check and the
// write that depends on it run under that account's lock. Transfers take
// both locks in ascending id order.
type serviceImpl struct {
	accts Repository[Account]
	txns  Repository[Transaction]
	node  *snowflake.Node
	log   *zerolog.Logger
	now   func() time.Time

	// mu guards owners and locks, and makes an account write and its
	// transaction records visible to readers at once.
	mu     sync.RWMutex
	owners map[ownerKey]snowflake.ID
	locks  map[snowflake.ID]*sync.Mutex
}

func (s *serviceImpl) CreateAccount(req CreateAccountReq) (*Account, error) {
	if !req.Type.Valid() {
		return nil, ErrBadRequest{Fields: map[string]string{"type": "unsupported account type"}}
	}
	if req.InitialBalance.IsNegative() {
		s.log.Warn().
			Str("method", "create_account").
			Str("owner", req.Owner).
			Stringer("initial_balance", req.InitialBalance).
			Msg("account opened with negative balance")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey{owner: req.Owner, typ: req.Type}
	if _, exists := s.owners[key]; exists {
		return nil, ErrDuplicateAccount{Owner: req.Owner, Type: req.Type}
	}
	acct := Account{
		AcctID:    s.node.Generate(),
		Owner:     req.Owner,
		Type:      req.Type,
		Balance:   req.InitialBalance,
		CreatedAt: s.now(),
	}
	s.accts.Save(acct)
	s.owners[key] = acct.AcctID
	s.locks[acct.AcctID] = &sync.Mutex{}

	s.log.Info().
		Str("method", "create_account").
		Stringer("acct_id", acct.AcctID).
		Str("owner", acct.Owner).
		Str("type", string(acct.Type)).
		Msg("account created")
	return &acct, nil
}

func (s *serviceImpl) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount{Amount: req.Amount}
	}
	lock, ok := s.acctLock(req.AcctID)
	if !ok {
		return nil, ErrAccountNotFound{ID: req.AcctID}
	}
	lock.Lock()
	defer lock.Unlock()

	acct, err := s.accts.FindByID(req.AcctID)
	if err != nil {
		return nil, ErrAccountNotFound{ID: req.AcctID}
	}
	acct.Balance = acct.Balance.Add(req.Amount)
	s.commit([]Account{acct}, s.newTxn(acct.AcctID, TxnDeposit, req.Amount))

	s.log.Info().
		Str("method", "deposit").
		Stringer("acct_id", acct.AcctID).
		Stringer("amount", req.Amount).
		Msg("deposit committed")
	bal := acct.Balance
	return &bal, nil
}

func (s *serviceImpl) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount{Amount: req.Amount}
	}
	lock, ok := s.acctLock(req.AcctID)
	if !ok {
		return nil, ErrAccountNotFound{ID: req.AcctID}
	}
	lock.Lock()
	defer lock.Unlock()

	acct, err := s.accts.FindByID(req.AcctID)
	if err != nil {
		return nil, ErrAccountNotFound{ID: req.AcctID}
	}
	if acct.Balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds{AcctID: acct.AcctID, Balance: acct.Balance, Amount: req.Amount}
	}
	acct.Balance = acct.Balance.Sub(req.Amount)
	s.commit([]Account{acct}, s.newTxn(acct.AcctID, TxnWithdraw, req.Amount))

	s.log.Info().
		Str("method", "withdraw").
		Stringer("acct_id", acct.AcctID).
		Stringer("amount", req.Amount).
		Msg("withdrawal committed")
	bal := acct.Balance
	return &bal, nil
}

// Transfer moves Amount between two accounts. Either both legs and both
// TRANSFER records are committed or nothing is. From == To is allowed and
// leaves the balance unchanged.
func (s *serviceImpl) Transfer(req TransferReq) error {
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount{Amount: req.Amount}
	}
	fromLock, fromOK := s.acctLock(req.From)
	toLock, toOK := s.acctLock(req.To)
	if !fromOK || !toOK {
		return s.transferFailed(req, fromOK, toOK)
	}
	unlock := lockPair(req.From, fromLock, req.To, toLock)
	defer unlock()

	src, err := s.accts.FindByID(req.From)
	if err != nil {
		return s.transferFailed(req, false, true)
	}
	dst, err := s.accts.FindByID(req.To)
	if err != nil {
		return s.transferFailed(req, true, false)
	}
	if src.Balance.LessThan(req.Amount) {
		return ErrInsufficientFunds{AcctID: src.AcctID, Balance: src.Balance, Amount: req.Amount}
	}

	src.Balance = src.Balance.Sub(req.Amount)
	if req.From == req.To {
		dst = src
	}
	dst.Balance = dst.Balance.Add(req.Amount)
	s.commit(
		[]Account{src, dst},
		s.newTxn(req.From, TxnTransfer, req.Amount),
		s.newTxn(req.To, TxnTransfer, req.Amount),
	)

	s.log.Info().
		Str("method", "transfer").
		Stringer("from", req.From).
		Stringer("to", req.To).
		Stringer("amount", req.Amount).
		Msg("transfer committed")
	return nil
}

func (s *serviceImpl) Balance(req BalanceReq) (*decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, err := s.accts.FindByID(req.AcctID)
	if err != nil {
		return nil, ErrAccountNotFound{ID: req.AcctID}
	}
	return &acct.Balance, nil
}

func (s *serviceImpl) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accts.FindAll()
}

func (s *serviceImpl) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.txns.FindAll()
}

func (s *serviceImpl) Statement(w io.Writer, req StatementReq) error {
	s.mu.RLock()
	acct, err := s.accts.FindByID(req.AcctID)
	if err != nil {
		s.mu.RUnlock()
		return ErrAccountNotFound{ID: req.AcctID}
	}
	txns := Filter(s.txns.FindAll(), ForAccount(req.AcctID))
	s.mu.RUnlock()

	return renderStatement(w, acct, txns, s.now())
}

func (s *serviceImpl) acctLock(id snowflake.ID) (*sync.Mutex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locks[id]
	return l, ok
}

func (s *serviceImpl) commit(accts []Account, txns ...Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accts {
		s.accts.Save(a)
	}
	for _, t := range txns {
		s.txns.Save(t)
	}
}

func (s *serviceImpl) newTxn(acctID snowflake.ID, typ TransactionType, amount decimal.Decimal) Transaction {
	return Transaction{
		TxnID:     s.node.Generate(),
		AcctID:    acctID,
		Type:      typ,
		Amount:    amount,
		CreatedAt: s.now(),
	}
}

func (s *serviceImpl) transferFailed(req TransferReq, fromOK, toOK bool) error {
	err := ErrTransferFailed{From: req.From, To: req.To}
	if !fromOK {
		err.Missing = append(err.Missing, req.From)
	}
	if !toOK && req.To != req.From {
		err.Missing = append(err.Missing, req.To)
	}
	s.log.Warn().
		Str("method", "transfer").
		Stringer("from", req.From).
		Stringer("to", req.To).
		Msg("transfer rejected")
	return err
}

// lockPair locks a and b in ascending id order and returns the matching unlock.
func lockPair(a snowflake.ID, la *sync.Mutex, b snowflake.ID, lb *sync.Mutex) func() {
	if a == b {
		la.Lock()
		return la.Unlock
	}
	first, second := la, lb
	if b < a {
		first, second = lb, la
	}
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
