package bankhub

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

var (
	_ Service = (*validationMiddleware)(nil)
)

type Middleware func(Service) Service

// Chain applies mws so that the first one is the outermost.
func Chain(svc Service, mws ...Middleware) Service {
	for i := len(mws) - 1; i >= 0; i-- {
		svc = mws[i](svc)
	}
	return svc
}

// validationMiddleware rejects malformed requests before they reach the
// ledger. Amount and existence checks stay with the ledger itself.
type validationMiddleware struct {
	next Service
}

func (v *validationMiddleware) CreateAccount(req CreateAccountReq) (*Account, error) {
	fields := map[string]string{}
	if strings.TrimSpace(req.Owner) == "" {
		fields["owner"] = "missing"
	}
	if !req.Type.Valid() {
		fields["type"] = "must be one of CHECKING, SAVINGS, BUSINESS"
	}
	if len(fields) > 0 {
		return nil, ErrBadRequest{Fields: fields}
	}
	return v.next.CreateAccount(req)
}

func (v *validationMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	return v.next.Deposit(req)
}

func (v *validationMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	return v.next.Withdraw(req)
}

func (v *validationMiddleware) Transfer(req TransferReq) error {
	return v.next.Transfer(req)
}

func (v *validationMiddleware) Balance(req BalanceReq) (*decimal.Decimal, error) {
	return v.next.Balance(req)
}

func (v *validationMiddleware) Accounts() []Account {
	return v.next.Accounts()
}

func (v *validationMiddleware) Transactions() []Transaction {
	return v.next.Transactions()
}

func (v *validationMiddleware) Statement(w io.Writer, req StatementReq) error {
	return v.next.Statement(w, req)
}

func NewValidationMiddleware() Middleware {
	return func(svc Service) Service {
		return &validationMiddleware{
			next: svc,
		}
	}
}

//
// Rate limiting middlewares
//

// limitMiddleware limits the number of in-flight requests to the service by using
// a weighted semaphore, i.e., x/sync/semaphore.Semaphore with an acquisition timeout.
// As limits are static and servers may be deployed to a heterogeneous set of machines,
// hence, having to manually tune limits for each server, this solution is something
// likely implemented very differently in a real-world application, but it is a good
// example of load shedding.
type limitMiddleware struct {
	next   Service
	limits *ServiceLimits
}

var (
	_ Service = (*limitMiddleware)(nil)
)

// ServiceLimits holds one semaphore per operation. A nil semaphore means
// the operation is not limited.
type ServiceLimits struct {
	CreateAccount *semaphore.Weighted
	Deposit       *semaphore.Weighted
	Withdraw      *semaphore.Weighted
	Transfer      *semaphore.Weighted
	Balance       *semaphore.Weighted
	Statement     *semaphore.Weighted
	Timeout       time.Duration
}

// NewServiceLimits gives every operation the same in-flight limit.
func NewServiceLimits(inFlight int64, timeout time.Duration) *ServiceLimits {
	return &ServiceLimits{
		CreateAccount: semaphore.NewWeighted(inFlight),
		Deposit:       semaphore.NewWeighted(inFlight),
		Withdraw:      semaphore.NewWeighted(inFlight),
		Transfer:      semaphore.NewWeighted(inFlight),
		Balance:       semaphore.NewWeighted(inFlight),
		Statement:     semaphore.NewWeighted(inFlight),
		Timeout:       timeout,
	}
}

func NewlimitMiddleware(limits *ServiceLimits) Middleware {
	return func(next Service) Service {
		return &limitMiddleware{
			next:   next,
			limits: limits,
		}
	}
}

func limited[T any](sem *semaphore.Weighted, timeout time.Duration, op string, call func() (T, error)) (T, error) {
	if sem == nil {
		return call()
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sem.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, ErrOverloaded{Op: op}
	}
	defer sem.Release(1)
	return call()
}

func (l *limitMiddleware) CreateAccount(req CreateAccountReq) (*Account, error) {
	return limited(l.limits.CreateAccount, l.limits.Timeout, "create_account", func() (*Account, error) {
		return l.next.CreateAccount(req)
	})
}

func (l *limitMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	return limited(l.limits.Deposit, l.limits.Timeout, "deposit", func() (*decimal.Decimal, error) {
		return l.next.Deposit(req)
	})
}

func (l *limitMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	return limited(l.limits.Withdraw, l.limits.Timeout, "withdraw", func() (*decimal.Decimal, error) {
		return l.next.Withdraw(req)
	})
}

func (l *limitMiddleware) Transfer(req TransferReq) error {
	_, err := limited(l.limits.Transfer, l.limits.Timeout, "transfer", func() (struct{}, error) {
		return struct{}{}, l.next.Transfer(req)
	})
	return err
}

func (l *limitMiddleware) Balance(req BalanceReq) (*decimal.Decimal, error) {
	return limited(l.limits.Balance, l.limits.Timeout, "balance", func() (*decimal.Decimal, error) {
		return l.next.Balance(req)
	})
}

func (l *limitMiddleware) Accounts() []Account {
	return l.next.Accounts()
}

func (l *limitMiddleware) Transactions() []Transaction {
	return l.next.Transactions()
}

func (l *limitMiddleware) Statement(w io.Writer, req StatementReq) error {
	_, err := limited(l.limits.Statement, l.limits.Timeout, "statement", func() (struct{}, error) {
		return struct{}{}, l.next.Statement(w, req)
	})
	return err
}

type ServiceBreaker struct {
	CreateAccount *gobreaker.TwoStepCircuitBreaker[*Account]
	Deposit       *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Withdraw      *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Transfer      *gobreaker.TwoStepCircuitBreaker[struct{}]
	Balance       *gobreaker.TwoStepCircuitBreaker[*decimal.Decimal]
	Statement     *gobreaker.TwoStepCircuitBreaker[struct{}]
}

// NewServiceBreaker builds breakers that open after consecutive overload
// failures and probe again after openTimeout.
func NewServiceBreaker(consecutiveFailures uint32, openTimeout time.Duration) *ServiceBreaker {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:    name,
			Timeout: openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailures
			},
		}
	}
	return &ServiceBreaker{
		CreateAccount: gobreaker.NewTwoStepCircuitBreaker[*Account](settings("create_account")),
		Deposit:       gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](settings("deposit")),
		Withdraw:      gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](settings("withdraw")),
		Transfer:      gobreaker.NewTwoStepCircuitBreaker[struct{}](settings("transfer")),
		Balance:       gobreaker.NewTwoStepCircuitBreaker[*decimal.Decimal](settings("balance")),
		Statement:     gobreaker.NewTwoStepCircuitBreaker[struct{}](settings("statement")),
	}
}

// circuitBreakMiddleware is a middleware that implements the circuit breaker pattern.
// It works in conjunction with limitMiddleware to limit the number of in-flight
// requests to the service when the circuit is not in `closed` state, i.e., the service
// is experiencing heavy load and is struggling to release tokens from the limit
// semaphores within request deadline
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

// guarded only counts ErrOverloaded as a failure; ledger rejections such as
// insufficient funds are ordinary outcomes.
func guarded[T any](cb *gobreaker.TwoStepCircuitBreaker[T], op string, call func() (T, error)) (T, error) {
	if cb == nil {
		return call()
	}
	done, err := cb.Allow()
	if err != nil {
		var zero T
		return zero, ErrOverloaded{Op: op}
	}
	v, err := call()
	done(!errors.As(err, &ErrOverloaded{}))
	return v, err
}

func (c *circuitBreakMiddleware) CreateAccount(req CreateAccountReq) (*Account, error) {
	return guarded(c.brkrs.CreateAccount, "create_account", func() (*Account, error) {
		return c.next.CreateAccount(req)
	})
}

func (c *circuitBreakMiddleware) Deposit(req ChargeReq) (*decimal.Decimal, error) {
	return guarded(c.brkrs.Deposit, "deposit", func() (*decimal.Decimal, error) {
		return c.next.Deposit(req)
	})
}

func (c *circuitBreakMiddleware) Withdraw(req ChargeReq) (*decimal.Decimal, error) {
	return guarded(c.brkrs.Withdraw, "withdraw", func() (*decimal.Decimal, error) {
		return c.next.Withdraw(req)
	})
}

func (c *circuitBreakMiddleware) Transfer(req TransferReq) error {
	_, err := guarded(c.brkrs.Transfer, "transfer", func() (struct{}, error) {
		return struct{}{}, c.next.Transfer(req)
	})
	return err
}

func (c *circuitBreakMiddleware) Balance(req BalanceReq) (*decimal.Decimal, error) {
	return guarded(c.brkrs.Balance, "balance", func() (*decimal.Decimal, error) {
		return c.next.Balance(req)
	})
}

func (c *circuitBreakMiddleware) Accounts() []Account {
	return c.next.Accounts()
}

func (c *circuitBreakMiddleware) Transactions() []Transaction {
	return c.next.Transactions()
}

func (c *circuitBreakMiddleware) Statement(w io.Writer, req StatementReq) error {
	_, err := guarded(c.brkrs.Statement, "statement", func() (struct{}, error) {
		return struct{}{}, c.next.Statement(w, req)
	})
	return err
}
