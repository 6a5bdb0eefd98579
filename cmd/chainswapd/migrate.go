package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/chainswap/chainswap-daemon/internal/core/domain"
)

var migrate = cli.Command{
	Name:   "migrate",
	Usage:  "backfill the is-my-offer column and rebuild the coin index of an existing store",
	Action: migrateAction,
}

func migrateAction(*cli.Context) error {
	repo, closeDb, err := openTradeRepository()
	if err != nil {
		return err
	}
	defer closeDb()

	ctx := context.Background()

	// Records written before the column existed can only be maker-side:
	// acceptance has always stored the taken offer alongside.
	if err := repo.MigrateIsMyOffer(ctx, func(record *domain.TradeRecord) bool {
		return len(record.TakenOfferBytes) == 0
	}); err != nil {
		return err
	}
	log.Info("is-my-offer column backfilled")

	if err := repo.MigrateCoinIndex(ctx); err != nil {
		return err
	}
	log.Info("coin-of-interest index rebuilt")
	return nil
}
