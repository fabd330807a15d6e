package bankhub_test

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/bankhub"
)

func TestMemoryRepository(t *testing.T) {
	node, err := snowflake.NewNode(111)
	require.Nil(t, err)

	t.Run("FindByID returns what was saved", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		repo := bankhub.NewMemoryRepository[bankhub.Account]()
		acct := bankhub.Account{
			AcctID:    node.Generate(),
			Owner:     "Arzu",
			Type:      bankhub.Checking,
			Balance:   decimal.New(12345, -1),
			CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}
		repo.Save(acct)

		got, err := repo.FindByID(acct.AcctID)
		reqrd.Nil(err)
		as.Equal(acct, got)
	})

	t.Run("FindByID reports ErrNotFound on a missing id", func(tt *testing.T) {
		as := assert.New(tt)
		repo := bankhub.NewMemoryRepository[bankhub.Transaction]()
		id := node.Generate()
		_, err := repo.FindByID(id)
		nf := bankhub.ErrNotFound{}
		as.ErrorAs(err, &nf)
		as.Equal(id, nf.ID)
	})

	t.Run("Save overwrites an existing entry", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		repo := bankhub.NewMemoryRepository[bankhub.Account]()
		acct := bankhub.Account{AcctID: node.Generate(), Owner: "Leyla", Balance: decimal.NewFromInt(800)}
		repo.Save(acct)
		acct.Balance = decimal.NewFromInt(900)
		repo.Save(acct)
		repo.Save(acct)

		all := repo.FindAll()
		reqrd.Len(all, 1)
		as.True(decimal.NewFromInt(900).Equal(all[0].Balance))
	})

	t.Run("FindAll keeps insertion order and returns a copy", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		repo := bankhub.NewMemoryRepository[bankhub.Account]()
		first := bankhub.Account{AcctID: node.Generate(), Owner: "Kamal"}
		second := bankhub.Account{AcctID: node.Generate(), Owner: "Nigar"}
		repo.Save(first)
		repo.Save(second)

		all := repo.FindAll()
		reqrd.Len(all, 2)
		as.Equal("Kamal", all[0].Owner)
		as.Equal("Nigar", all[1].Owner)

		all[0].Owner = "Mallory"
		got, err := repo.FindByID(first.AcctID)
		reqrd.Nil(err)
		as.Equal("Kamal", got.Owner)
	})

	t.Run("Delete removes the entry and ignores missing ids", func(tt *testing.T) {
		as := assert.New(tt)
		repo := bankhub.NewMemoryRepository[bankhub.Account]()
		keep := bankhub.Account{AcctID: node.Generate(), Owner: "Murad"}
		drop := bankhub.Account{AcctID: node.Generate(), Owner: "Arzu"}
		repo.Save(keep)
		repo.Save(drop)

		repo.Delete(drop.AcctID)
		repo.Delete(node.Generate())

		all := repo.FindAll()
		as.Equal([]bankhub.Account{keep}, all)
		_, err := repo.FindByID(drop.AcctID)
		as.ErrorAs(err, &bankhub.ErrNotFound{})
	})
}
