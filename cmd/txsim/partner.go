package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/ligun0805/txsim/internal/partner"
	"github.com/ligun0805/txsim/internal/units"
)

var portfolioDays int

var partnerCmd = &cobra.Command{
	Use:   "partner",
	Short: "Query the partner APIs (GlueX yields, explorer, GoldRush)",
}

func init() {
	portfolioCmd.Flags().IntVar(&portfolioDays, "days", 30, "History window in days")
	partnerCmd.AddCommand(protocolsCmd, ratesCmd, tokenCmd, balancesCmd, portfolioCmd, gasPricesCmd)
}

var protocolsCmd = &cobra.Command{
	Use:   "protocols",
	Short: "List yield protocols active on GlueX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings()
		if err != nil {
			return err
		}
		y := partner.NewYield(st.GlueXAPIURL, st.GlueXRatesURL, st.GlueXAPIKey)
		raw, err := y.ActiveProtocols(cmd.Context())
		if err != nil {
			return err
		}
		return printRaw(cmd.OutOrStdout(), raw)
	},
}

var ratesCmd = &cobra.Command{
	Use:   "rates <domestic> <foreign> [<domestic> <foreign>...]",
	Short: "Exchange rates between token pairs from GlueX",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings()
		if err != nil {
			return err
		}
		pairs, err := ratePairs(args, st.ChainID)
		if err != nil {
			return err
		}
		y := partner.NewYield(st.GlueXAPIURL, st.GlueXRatesURL, st.GlueXAPIKey)
		raw, err := y.ExchangeRates(cmd.Context(), pairs)
		if err != nil {
			return err
		}
		return printRaw(cmd.OutOrStdout(), raw)
	},
}

func ratePairs(args []string, chainID uint64) ([]partner.RatePair, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("tokens must come in domestic/foreign pairs, got %d", len(args))
	}
	pairs := make([]partner.RatePair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		dom, err := addressArg(args[i])
		if err != nil {
			return nil, err
		}
		foreign, err := addressArg(args[i+1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, partner.RatePair{
			Domestic: dom.Hex(),
			Foreign:  foreign.Hex(),
			ChainID:  strconv.FormatUint(chainID, 10),
		})
	}
	return pairs, nil
}

var tokenCmd = &cobra.Command{
	Use:   "token <address>",
	Short: "Token details and holder counters from the explorer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := addressArg(args[0])
		if err != nil {
			return err
		}
		st, err := loadSettings()
		if err != nil {
			return err
		}
		e := partner.NewExplorer(st.ExplorerAPIURL)
		info, err := e.Token(cmd.Context(), addr)
		if err != nil {
			return err
		}
		counters, err := e.TokenCounters(cmd.Context(), addr)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]json.RawMessage{"token": info, "counters": counters})
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances <address>",
	Short: "Token balances of a wallet from GoldRush",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, addr, err := portfolioFor(args[0])
		if err != nil {
			return err
		}
		raw, err := p.Balances(cmd.Context(), addr)
		if err != nil {
			return err
		}
		return printRaw(cmd.OutOrStdout(), raw)
	},
}

var portfolioCmd = &cobra.Command{
	Use:   "portfolio <address>",
	Short: "Historical portfolio value of a wallet from GoldRush",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, addr, err := portfolioFor(args[0])
		if err != nil {
			return err
		}
		raw, err := p.HistoricalPortfolio(cmd.Context(), addr, portfolioDays)
		if err != nil {
			return err
		}
		return printRaw(cmd.OutOrStdout(), raw)
	},
}

var gasPricesCmd = &cobra.Command{
	Use:   "gas-prices [erc20|nativetokens|uniswapv3]",
	Short: "Fee estimates from GoldRush",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := loadSettings()
		if err != nil {
			return err
		}
		kind := ""
		if len(args) == 1 {
			kind = args[0]
		}
		raw, err := partner.NewPortfolio(st.GoldRushAPIURL, st.GoldRushAPIKey, st.GoldRushChain).GasPrices(cmd.Context(), kind)
		if err != nil {
			return err
		}
		return printRaw(cmd.OutOrStdout(), raw)
	},
}

func portfolioFor(arg string) (*partner.Portfolio, common.Address, error) {
	addr, err := addressArg(arg)
	if err != nil {
		return nil, addr, err
	}
	st, err := loadSettings()
	if err != nil {
		return nil, addr, err
	}
	if st.GoldRushAPIKey == "" {
		return nil, addr, fmt.Errorf("GOLDRUSH_API_KEY is empty in env")
	}
	return partner.NewPortfolio(st.GoldRushAPIURL, st.GoldRushAPIKey, st.GoldRushChain), addr, nil
}

func addressArg(s string) (common.Address, error) {
	if !units.IsValidAddress(s) {
		return common.Address{}, fmt.Errorf("not an address or bad checksum: %s", s)
	}
	return common.HexToAddress(s), nil
}

func printRaw(w io.Writer, raw json.RawMessage) error {
	return printJSON(w, raw)
}
