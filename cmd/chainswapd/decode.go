package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chainswap/chainswap-daemon/internal/config"
	"github.com/chainswap/chainswap-daemon/pkg/chain"
	"github.com/chainswap/chainswap-daemon/pkg/offer"
	"github.com/shopspring/decimal"
)

var decode = cli.Command{
	Name:      "decode",
	Usage:     "decode an offer text and print its summary",
	ArgsUsage: "<offer text, or - to read from stdin>",
	Action:    decodeAction,
}

func decodeAction(ctx *cli.Context) error {
	text, err := offerTextFromArgs(ctx)
	if err != nil {
		return err
	}

	o, err := offer.DecodeWithPrefix(text, config.GetString(config.OfferHRPKey))
	if err != nil {
		return err
	}
	summary, err := offer.Summarize(o)
	if err != nil {
		return err
	}

	printJSON(map[string]interface{}{
		"offered":   amountsByAsset(summary.Offered),
		"requested": amountsByAsset(summary.Requested),
		"pending":   amountsByAsset(summary.Pending),
	})
	return nil
}

func offerTextFromArgs(ctx *cli.Context) (string, error) {
	if ctx.NArg() < 1 {
		return "", fmt.Errorf("missing offer text")
	}
	arg := ctx.Args().First()
	if arg != "-" {
		return arg, nil
	}
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func amountsByAsset(amounts map[chain.Bytes32]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(amounts))
	for assetID, amount := range amounts {
		key := assetID.Hex()
		if assetID == offer.NativeAsset {
			key = "native"
		}
		out[key] = amount.String()
	}
	return out
}
