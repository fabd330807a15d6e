package bankhub

import (
	"github.com/rs/zerolog"
)

// Seed opens the given accounts through svc and returns how many were
// created. Failures are logged and skipped.
func Seed(svc Service, accts []SeedAccount, log *zerolog.Logger) int {
	created := 0
	for _, sa := range accts {
		acct, err := svc.CreateAccount(CreateAccountReq{
			Owner:          sa.Owner,
			Type:           sa.Type,
			InitialBalance: sa.Balance,
		})
		if err != nil {
			log.Warn().
				Err(err).
				Str("owner", sa.Owner).
				Str("type", string(sa.Type)).
				Msg("skipping seed account")
			continue
		}
		log.Debug().
			Stringer("acct_id", acct.AcctID).
			Str("owner", acct.Owner).
			Msg("seed account created")
		created++
	}
	return created
}
