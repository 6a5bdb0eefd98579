package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/chainswap/chainswap-daemon/internal/config"
	"github.com/chainswap/chainswap-daemon/internal/infrastructure/chainstate"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
)

var check = cli.Command{
	Name:      "check",
	Usage:     "check against the explorer whether an offer's coins are still unspent",
	ArgsUsage: "<offer text, or - to read from stdin>",
	Action:    checkAction,
}

func checkAction(ctx *cli.Context) error {
	text, err := offerTextFromArgs(ctx)
	if err != nil {
		return err
	}
	o, err := offer.DecodeWithPrefix(text, config.GetString(config.OfferHRPKey))
	if err != nil {
		return err
	}

	explorer, err := chainstate.NewExplorerService(config.GetString(config.ExplorerURLKey))
	if err != nil {
		return err
	}

	removals := o.Bundle().NotEphemeralRemovals()
	coinIDs := make([]chain.Bytes32, len(removals))
	for i, coin := range removals {
		coinIDs[i] = coin.ID()
	}
	states, err := explorer.CoinStates(context.Background(), coinIDs)
	if err != nil {
		return err
	}

	spent := []string{}
	for _, coinID := range coinIDs {
		if states[coinID].Spent {
			spent = append(spent, coinID.Hex())
		}
	}
	printJSON(map[string]interface{}{
		"valid":       len(spent) == 0,
		"spent_coins": spent,
	})
	return nil
}
