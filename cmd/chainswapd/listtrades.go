package main

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/chainswap/chainswap-daemon/internal/config"
	"github.com/chainswap/chainswap-daemon/internal/core/domain"
	dbbadger "github.com/chainswap/chainswap-daemon/internal/infrastructure/storage/db/badger"
)

var listtrades = cli.Command{
	Name:  "listtrades",
	Usage: "list stored trade records",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "start", Usage: "first record index of the page", Value: 0},
		&cli.IntFlag{Name: "end", Usage: "one past the last record index of the page", Value: 50},
		&cli.BoolFlag{Name: "relevance", Usage: "surface non-terminal trades first"},
		&cli.BoolFlag{Name: "exclude-my-offers", Usage: "skip trades this daemon created"},
		&cli.BoolFlag{Name: "exclude-taken", Usage: "skip trades this daemon accepted"},
		&cli.BoolFlag{Name: "include-terminal", Usage: "include confirmed, failed and cancelled trades"},
	},
	Action: listTradesAction,
}

func listTradesAction(ctx *cli.Context) error {
	repo, closeDb, err := openTradeRepository()
	if err != nil {
		return err
	}
	defer closeDb()

	sortKey := domain.SortByHeight
	if ctx.Bool("relevance") {
		sortKey = domain.SortByRelevance
	}
	records, err := repo.GetTradesBetween(context.Background(), domain.TradesBetweenQuery{
		Start:           ctx.Int("start"),
		End:             ctx.Int("end"),
		SortKey:         sortKey,
		ExcludeMyOffers: ctx.Bool("exclude-my-offers"),
		ExcludeTaken:    ctx.Bool("exclude-taken"),
		IncludeTerminal: ctx.Bool("include-terminal"),
	})
	if err != nil {
		return err
	}

	printJSON(records)
	return nil
}

func openTradeRepository() (domain.TradeRepository, func(), error) {
	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	db, err := dbbadger.NewDbManager(dbDir, nil)
	if err != nil {
		return nil, nil, err
	}
	return dbbadger.NewTradeRepositoryImpl(db), func() { db.Close() }, nil
}
