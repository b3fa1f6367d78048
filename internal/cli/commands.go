package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aman-zulfiqar/simpledex-engine/internal/dexengine"
	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
	"github.com/spf13/cobra"
)

func newStateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show pool reserves, prices and wallet balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				printState(cmd.OutOrStdout(), b.Sync.Reserves(), b.Sync.Wallet())
				return nil
			})
		},
	}
}

func newQuoteCmd(open Opener) *cobra.Command {
	quote := &cobra.Command{
		Use:   "quote",
		Short: "Quote an operation against the current reserves",
	}

	var (
		direction string
		amount    float64
	)
	swap := &cobra.Command{
		Use:   "swap",
		Short: "Quote the output of a swap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := dexengine.ParseSwapDirection(direction)
			if err != nil {
				return err
			}
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				q, err := b.Engine.QuoteSwap(dir, amount)
				if err != nil {
					return err
				}
				in, out := assetNames(dir)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s %s\n",
					formatAmount(q.InputAmount), in, formatAmount(q.OutputAmount), out)
				return nil
			})
		},
	}
	swap.Flags().StringVarP(&direction, "direction", "d", "eth_to_token", "eth_to_token or token_to_eth")
	swap.Flags().Float64VarP(&amount, "amount", "a", 0, "amount of the input asset")

	var lp float64
	redeem := &cobra.Command{
		Use:   "redeem",
		Short: "Quote the reserves returned for LP tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				q, err := b.Engine.QuoteRedeem(lp)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s LP -> %s ETH + %s tokens\n",
					formatAmount(lp), formatAmount(q.EthOut), formatAmount(q.TokenOut))
				return nil
			})
		},
	}
	redeem.Flags().Float64Var(&lp, "lp", 0, "LP tokens to burn")

	var eth float64
	liquidity := &cobra.Command{
		Use:   "liquidity",
		Short: "Quote the token amount that matches an ETH deposit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				need, err := b.Engine.RequiredTokenAmount(eth)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s ETH needs at least %s tokens\n", formatAmount(eth), formatAmount(need))
				return nil
			})
		},
	}
	liquidity.Flags().Float64Var(&eth, "eth", 0, "ETH to deposit")

	quote.AddCommand(swap, redeem, liquidity)
	return quote
}

func newAddLiquidityCmd(open Opener) *cobra.Command {
	var eth, token float64
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Approve tokens and deposit ETH and tokens into the pool",
		Long: `Approves the pool to spend the token amount, waits for the approval to
confirm, then deposits both assets. Without --token the pool ratio is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				if token == 0 {
					need, err := b.Engine.RequiredTokenAmount(eth)
					if err != nil {
						return err
					}
					token = need
				}
				res, err := b.Engine.AddLiquidity(ctx, eth, token)
				return report(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().Float64Var(&eth, "eth", 0, "ETH to deposit")
	cmd.Flags().Float64Var(&token, "token", 0, "tokens to deposit (default: pool ratio)")
	return cmd
}

func newRedeemCmd(open Opener) *cobra.Command {
	var lp float64
	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Burn LP tokens for ETH and tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				res, err := b.Engine.Redeem(ctx, lp)
				return report(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().Float64Var(&lp, "lp", 0, "LP tokens to burn")
	return cmd
}

func newSwapCmd(open Opener) *cobra.Command {
	var (
		direction string
		amount    float64
	)
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap ETH for tokens or tokens for ETH",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := dexengine.ParseSwapDirection(direction)
			if err != nil {
				return err
			}
			return withBackend(cmd, open, func(ctx context.Context, b *Backend) error {
				res, err := b.Engine.Swap(ctx, dir, amount)
				return report(cmd.OutOrStdout(), res, err)
			})
		},
	}
	cmd.Flags().StringVarP(&direction, "direction", "d", "eth_to_token", "eth_to_token or token_to_eth")
	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "amount of the input asset")
	return cmd
}

func report(w io.Writer, res *dexengine.Result, err error) error {
	if res != nil {
		fmt.Fprintf(w, "operation %s (%s)\n", res.ID, res.Kind)
		if res.ApproveTx != "" {
			fmt.Fprintf(w, "  approve tx: %s\n", res.ApproveTx)
		}
		if res.ActionTx != "" {
			fmt.Fprintf(w, "  action tx:  %s\n", res.ActionTx)
		}
		fmt.Fprintf(w, "  steps:      %v\n", res.Steps)
		if res.RefreshError != "" {
			fmt.Fprintf(w, "  warning: confirmed but state refresh failed: %s\n", res.RefreshError)
		}
		if res.Reserves != nil && res.Wallet != nil {
			printState(w, *res.Reserves, *res.Wallet)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", dexengine.ErrorKind(err), err)
	}
	return nil
}

func printState(w io.Writer, r models.ReserveSnapshot, wal models.WalletSnapshot) {
	fmt.Fprintf(w, "pool:   %s ETH / %s tokens, LP supply %s\n",
		formatAmount(r.EthReserve), formatAmount(r.TokenReserve), formatAmount(r.LPSupply))
	fmt.Fprintf(w, "prices: 1 token = %s ETH, 1 ETH = %s tokens\n", r.EthPerToken, r.TokenPerEth)
	if !wal.Connected {
		fmt.Fprintf(w, "wallet: %s\n", wal.Address)
		return
	}
	fmt.Fprintf(w, "wallet: %s on %s\n", wal.Address, wal.Network)
	fmt.Fprintf(w, "        %s ETH, %s tokens, %s LP\n",
		formatAmount(wal.EthBalance), formatAmount(wal.TokenBalance), formatAmount(wal.LPBalance))
}

func assetNames(d dexengine.SwapDirection) (string, string) {
	if d == dexengine.TokenToEth {
		return "tokens", "ETH"
	}
	return "ETH", "tokens"
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
