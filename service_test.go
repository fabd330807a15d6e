package bankhub_test

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/arhyth/bankhub"
	"github.com/arhyth/bankhub/mocks"
)

func newLedger(t *testing.T) bankhub.Service {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.Nil(t, err)
	log := zerolog.Nop()
	svc, err := bankhub.NewService(
		bankhub.NewMemoryRepository[bankhub.Account](),
		bankhub.NewMemoryRepository[bankhub.Transaction](),
		node,
		&log,
	)
	require.Nil(t, err)
	return svc
}

func openAccount(t *testing.T, svc bankhub.Service, owner string, typ bankhub.AccountType, bal int64) *bankhub.Account {
	t.Helper()
	acct, err := svc.CreateAccount(bankhub.CreateAccountReq{
		Owner:          owner,
		Type:           typ,
		InitialBalance: decimal.NewFromInt(bal),
	})
	require.Nil(t, err)
	return acct
}

func balanceOf(t *testing.T, svc bankhub.Service, id snowflake.ID) decimal.Decimal {
	t.Helper()
	bal, err := svc.Balance(bankhub.BalanceReq{AcctID: id})
	require.Nil(t, err)
	return *bal
}

func TestNewService(t *testing.T) {
	t.Run("returns an error when the store holds duplicate owner and type", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		accts := mocks.NewMockRepository[bankhub.Account](ctrl)
		txns := mocks.NewMockRepository[bankhub.Transaction](ctrl)
		accts.EXPECT().
			FindAll().
			Return([]bankhub.Account{
				{AcctID: snowflake.ParseInt64(7241301734201495552), Owner: "Arzu", Type: bankhub.Checking},
				{AcctID: snowflake.ParseInt64(7241301734201495553), Owner: "Arzu", Type: bankhub.Checking},
			})
		node, err := snowflake.NewNode(1)
		require.Nil(tt, err)
		log := zerolog.Nop()
		_, err = bankhub.NewService(accts, txns, node, &log)
		as.ErrorAs(err, &bankhub.ErrDuplicateAccount{})
	})

	t.Run("indexes accounts already in the store", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		repo := bankhub.NewMemoryRepository[bankhub.Account]()
		existing := bankhub.Account{
			AcctID:  snowflake.ParseInt64(7241301734201495552),
			Owner:   "Kamal",
			Type:    bankhub.Business,
			Balance: decimal.NewFromInt(2500),
		}
		repo.Save(existing)
		node, err := snowflake.NewNode(1)
		reqrd.Nil(err)
		log := zerolog.Nop()
		svc, err := bankhub.NewService(repo, bankhub.NewMemoryRepository[bankhub.Transaction](), node, &log)
		reqrd.Nil(err)

		_, err = svc.CreateAccount(bankhub.CreateAccountReq{Owner: "Kamal", Type: bankhub.Business})
		as.ErrorAs(err, &bankhub.ErrDuplicateAccount{})

		bal, err := svc.Deposit(bankhub.ChargeReq{AcctID: existing.AcctID, Amount: decimal.NewFromInt(500)})
		reqrd.Nil(err)
		as.True(decimal.NewFromInt(3000).Equal(*bal))
	})
}

func TestCreateAccount(t *testing.T) {
	t.Run("returns the created account", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Arzu", bankhub.Checking, 1200)

		as.NotZero(acct.AcctID)
		as.Equal("Arzu", acct.Owner)
		as.Equal(bankhub.Checking, acct.Type)
		as.True(decimal.NewFromInt(1200).Equal(acct.Balance))
		as.Len(svc.Accounts(), 1)
		as.Empty(svc.Transactions())
	})

	t.Run("rejects a duplicate owner and type", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		openAccount(tt, svc, "Leyla", bankhub.Savings, 800)

		acct, err := svc.CreateAccount(bankhub.CreateAccountReq{
			Owner:          "Leyla",
			Type:           bankhub.Savings,
			InitialBalance: decimal.NewFromInt(50),
		})
		as.Nil(acct)
		dup := bankhub.ErrDuplicateAccount{}
		as.ErrorAs(err, &dup)
		as.Equal("Leyla", dup.Owner)
		as.Equal(bankhub.Savings, dup.Type)
		as.Contains(err.Error(), "Leyla")
		as.Contains(err.Error(), "SAVINGS")
		as.Len(svc.Accounts(), 1)
	})

	t.Run("allows the same owner with another type", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		openAccount(tt, svc, "Leyla", bankhub.Savings, 800)
		openAccount(tt, svc, "Leyla", bankhub.Checking, 10)
		as.Len(svc.Accounts(), 2)
	})

	t.Run("owner names are matched exactly", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		openAccount(tt, svc, "Leyla", bankhub.Savings, 800)
		openAccount(tt, svc, "leyla", bankhub.Savings, 800)
		as.Len(svc.Accounts(), 2)
	})

	t.Run("does not validate the initial balance", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Murad", bankhub.Checking, -5)
		as.True(decimal.NewFromInt(-5).Equal(acct.Balance))
	})

	t.Run("rejects an unknown account type", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		_, err := svc.CreateAccount(bankhub.CreateAccountReq{Owner: "Murad", Type: "CRYPTO"})
		as.ErrorAs(err, &bankhub.ErrBadRequest{})
		as.Empty(svc.Accounts())
	})
}

func TestDeposit(t *testing.T) {
	t.Run("returns decimal.Decimal balance on success", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Arzu", bankhub.Checking, 1200)

		bal, err := svc.Deposit(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(300)})
		reqrd.Nil(err)
		as.True(decimal.NewFromInt(1500).Equal(*bal))
		as.True(decimal.NewFromInt(1500).Equal(balanceOf(tt, svc, acct.AcctID)))

		txns := svc.Transactions()
		reqrd.Len(txns, 1)
		as.Equal(acct.AcctID, txns[0].AcctID)
		as.Equal(bankhub.TxnDeposit, txns[0].Type)
		as.True(decimal.NewFromInt(300).Equal(txns[0].Amount))
		as.False(txns[0].CreatedAt.IsZero())
	})

	t.Run("returns error on non-positive amount", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Arzu", bankhub.Checking, 1200)

		for _, amt := range []int64{0, -50} {
			bal, err := svc.Deposit(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(amt)})
			as.Nil(bal)
			as.ErrorAs(err, &bankhub.ErrInvalidAmount{})
		}
		as.True(decimal.NewFromInt(1200).Equal(balanceOf(tt, svc, acct.AcctID)))
		as.Empty(svc.Transactions())
	})

	t.Run("returns error on non-existent account", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		unknown := snowflake.ParseInt64(7241722241547767808)
		bal, err := svc.Deposit(bankhub.ChargeReq{AcctID: unknown, Amount: decimal.NewFromInt(10)})
		as.Nil(bal)
		nf := bankhub.ErrAccountNotFound{}
		as.ErrorAs(err, &nf)
		as.Equal(unknown, nf.ID)
	})
}

func TestWithdraw(t *testing.T) {
	t.Run("returns decimal.Decimal balance on success", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Nigar", bankhub.Savings, 1700)

		bal, err := svc.Withdraw(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromFloat(200.25)})
		reqrd.Nil(err)
		as.True(decimal.RequireFromString("1499.75").Equal(*bal))

		txns := svc.Transactions()
		reqrd.Len(txns, 1)
		as.Equal(bankhub.TxnWithdraw, txns[0].Type)
		as.True(decimal.NewFromFloat(200.25).Equal(txns[0].Amount))
	})

	t.Run("allows withdrawing the whole balance", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Nigar", bankhub.Savings, 1700)
		bal, err := svc.Withdraw(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(1700)})
		reqrd.Nil(err)
		as.True(bal.IsZero())
	})

	t.Run("returns error on insufficient balance", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Arzu", bankhub.Checking, 1200)
		_, err := svc.Deposit(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(300)})
		reqrd.Nil(err)

		bal, err := svc.Withdraw(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(2000)})
		as.Nil(bal)
		insuf := bankhub.ErrInsufficientFunds{}
		as.ErrorAs(err, &insuf)
		as.True(decimal.NewFromInt(1500).Equal(insuf.Balance))
		as.True(decimal.NewFromInt(1500).Equal(balanceOf(tt, svc, acct.AcctID)))
		as.Len(svc.Transactions(), 1)
	})

	t.Run("returns error on negative amount", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Arzu", bankhub.Checking, 1200)
		bal, err := svc.Withdraw(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(-123)})
		as.Nil(bal)
		as.ErrorAs(err, &bankhub.ErrInvalidAmount{})
	})

	t.Run("returns error on non-existent account", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		bal, err := svc.Withdraw(bankhub.ChargeReq{
			AcctID: snowflake.ParseInt64(7241722241547767808),
			Amount: decimal.NewFromInt(123),
		})
		as.Nil(bal)
		as.ErrorAs(err, &bankhub.ErrAccountNotFound{})
	})
}

func TestTransfer(t *testing.T) {
	t.Run("moves the amount and records both legs", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		from := openAccount(tt, svc, "Kamal", bankhub.Business, 2500)
		to := openAccount(tt, svc, "Leyla", bankhub.Savings, 800)

		err := svc.Transfer(bankhub.TransferReq{From: from.AcctID, To: to.AcctID, Amount: decimal.NewFromInt(700)})
		reqrd.Nil(err)
		as.True(decimal.NewFromInt(1800).Equal(balanceOf(tt, svc, from.AcctID)))
		as.True(decimal.NewFromInt(1500).Equal(balanceOf(tt, svc, to.AcctID)))

		txns := svc.Transactions()
		reqrd.Len(txns, 2)
		as.Equal(from.AcctID, txns[0].AcctID)
		as.Equal(to.AcctID, txns[1].AcctID)
		for _, txn := range txns {
			as.Equal(bankhub.TxnTransfer, txn.Type)
			as.True(decimal.NewFromInt(700).Equal(txn.Amount))
		}
		as.NotEqual(txns[0].TxnID, txns[1].TxnID)
	})

	t.Run("returns TransferFailed on unknown destination", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		from := openAccount(tt, svc, "Arzu", bankhub.Checking, 1500)
		unknown := snowflake.ParseInt64(7241722241547767808)

		err := svc.Transfer(bankhub.TransferReq{From: from.AcctID, To: unknown, Amount: decimal.NewFromInt(100)})
		tf := bankhub.ErrTransferFailed{}
		as.ErrorAs(err, &tf)
		as.Equal([]snowflake.ID{unknown}, tf.Missing)
		as.False(errors.As(err, &bankhub.ErrAccountNotFound{}))
		as.True(decimal.NewFromInt(1500).Equal(balanceOf(tt, svc, from.AcctID)))
		as.Empty(svc.Transactions())
	})

	t.Run("returns TransferFailed on unknown source", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		to := openAccount(tt, svc, "Arzu", bankhub.Checking, 1500)
		err := svc.Transfer(bankhub.TransferReq{
			From:   snowflake.ParseInt64(7241722241547767808),
			To:     to.AcctID,
			Amount: decimal.NewFromInt(100),
		})
		as.ErrorAs(err, &bankhub.ErrTransferFailed{})
		as.True(decimal.NewFromInt(1500).Equal(balanceOf(tt, svc, to.AcctID)))
	})

	t.Run("returns error on insufficient source balance", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		from := openAccount(tt, svc, "Murad", bankhub.Checking, 950)
		to := openAccount(tt, svc, "Nigar", bankhub.Savings, 1700)

		err := svc.Transfer(bankhub.TransferReq{From: from.AcctID, To: to.AcctID, Amount: decimal.NewFromInt(951)})
		as.ErrorAs(err, &bankhub.ErrInsufficientFunds{})
		as.True(decimal.NewFromInt(950).Equal(balanceOf(tt, svc, from.AcctID)))
		as.True(decimal.NewFromInt(1700).Equal(balanceOf(tt, svc, to.AcctID)))
		as.Empty(svc.Transactions())
	})

	t.Run("returns error on non-positive amount", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		from := openAccount(tt, svc, "Murad", bankhub.Checking, 950)
		to := openAccount(tt, svc, "Nigar", bankhub.Savings, 1700)

		err := svc.Transfer(bankhub.TransferReq{From: from.AcctID, To: to.AcctID, Amount: decimal.Zero})
		as.ErrorAs(err, &bankhub.ErrInvalidAmount{})
		as.Empty(svc.Transactions())
	})

	t.Run("self transfer keeps the balance and records two legs", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Kamal", bankhub.Business, 2500)

		err := svc.Transfer(bankhub.TransferReq{From: acct.AcctID, To: acct.AcctID, Amount: decimal.NewFromInt(100)})
		reqrd.Nil(err)
		as.True(decimal.NewFromInt(2500).Equal(balanceOf(tt, svc, acct.AcctID)))
		txns := svc.Transactions()
		reqrd.Len(txns, 2)
		as.Equal(acct.AcctID, txns[0].AcctID)
		as.Equal(acct.AcctID, txns[1].AcctID)
	})
}

func TestConcurrentLedger(t *testing.T) {
	t.Run("opposite transfers conserve the total", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		a := openAccount(tt, svc, "Arzu", bankhub.Checking, 1000)
		b := openAccount(tt, svc, "Leyla", bankhub.Savings, 1000)

		var g errgroup.Group
		for i := 0; i < 200; i++ {
			from, to := a.AcctID, b.AcctID
			if i%2 == 1 {
				from, to = to, from
			}
			g.Go(func() error {
				return svc.Transfer(bankhub.TransferReq{From: from, To: to, Amount: decimal.NewFromInt(5)})
			})
		}
		reqrd.Nil(g.Wait())

		total := balanceOf(tt, svc, a.AcctID).Add(balanceOf(tt, svc, b.AcctID))
		as.True(decimal.NewFromInt(2000).Equal(total))
	})

	t.Run("concurrent withdrawals never overdraw", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Murad", bankhub.Checking, 100)

		var ok atomic.Int64
		var g errgroup.Group
		for i := 0; i < 50; i++ {
			g.Go(func() error {
				_, err := svc.Withdraw(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(10)})
				if err == nil {
					ok.Add(1)
				}
				return nil
			})
		}
		reqrd.Nil(g.Wait())

		as.Equal(int64(10), ok.Load())
		as.True(balanceOf(tt, svc, acct.AcctID).IsZero())
		as.Len(svc.Transactions(), 10)
	})

	t.Run("duplicate creation races yield one account", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)

		var g errgroup.Group
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				_, _ = svc.CreateAccount(bankhub.CreateAccountReq{Owner: "Nigar", Type: bankhub.Savings})
				return nil
			})
		}
		reqrd.Nil(g.Wait())
		as.Len(svc.Accounts(), 1)
	})
}

func TestStatement(t *testing.T) {
	t.Run("renders a PDF for an existing account", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc := newLedger(tt)
		acct := openAccount(tt, svc, "Arzu", bankhub.Checking, 1200)
		_, err := svc.Deposit(bankhub.ChargeReq{AcctID: acct.AcctID, Amount: decimal.NewFromInt(300)})
		reqrd.Nil(err)

		buf := new(bytes.Buffer)
		err = svc.Statement(buf, bankhub.StatementReq{AcctID: acct.AcctID})
		reqrd.Nil(err)
		as.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})

	t.Run("returns error on non-existent account", func(tt *testing.T) {
		as := assert.New(tt)
		svc := newLedger(tt)
		buf := new(bytes.Buffer)
		err := svc.Statement(buf, bankhub.StatementReq{AcctID: snowflake.ParseInt64(7241722241547767808)})
		as.ErrorAs(err, &bankhub.ErrAccountNotFound{})
		as.Zero(buf.Len())
	})
}
