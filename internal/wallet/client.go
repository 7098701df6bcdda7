/*
Package wallet reads wallet balances through the RPC fallback client and values them
with spot prices.

Every chain read runs inside rpcfallback.Execute, so a failing provider is retried on the
next endpoint without the caller noticing.
*/

package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"

	"github.com/varayield/varayield/internal/chain"
	"github.com/varayield/varayield/internal/config"
	"github.com/varayield/varayield/internal/logger"
	"github.com/varayield/varayield/internal/rpcfallback"
	"github.com/varayield/varayield/internal/types"
	"github.com/varayield/varayield/internal/utils"
)

var walletLogger = logger.GetForComponent("wallet")

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrNilRPCClient   = errors.New("RPC client cannot be nil")
)

// PriceSource returns USD spot prices keyed by mint.
type PriceSource interface {
	FetchSpotPrices(ctx context.Context, mints []string) (map[string]float64, error)
}

// Client reads and values wallet contents.
type Client struct {
	rpc    *rpcfallback.Client[*chain.Conn]
	prices PriceSource
	clock  clock.Clock
}

// NewClient returns a Client. prices may be nil, in which case portfolios are unpriced.
func NewClient(rpc *rpcfallback.Client[*chain.Conn], prices PriceSource, clk clock.Clock) (*Client, error) {
	if rpc == nil {
		return nil, ErrNilRPCClient
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Client{rpc: rpc, prices: prices, clock: clk}, nil
}

// ParseAddress validates a base58 wallet address.
func ParseAddress(address string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, address, err)
	}
	return pk, nil
}

// GetSOLBalance returns the native SOL balance of owner.
func (c *Client) GetSOLBalance(ctx context.Context, owner string) (types.WalletBalance, error) {
	pk, err := ParseAddress(owner)
	if err != nil {
		return types.WalletBalance{}, err
	}

	lamports, err := rpcfallback.Execute(ctx, c.rpc, func(ctx context.Context, conn *chain.Conn) (uint64, error) {
		return conn.GetBalance(ctx, pk)
	})
	if err != nil {
		return types.WalletBalance{}, fmt.Errorf("fetching SOL balance: %w", err)
	}

	sol, err := utils.LamportsToSOL(lamports)
	if err != nil {
		return types.WalletBalance{}, err
	}
	return types.WalletBalance{Owner: pk.String(), Lamports: lamports, SOL: sol}, nil
}

// GetTokenHoldings returns the non-zero SPL token accounts of owner.
func (c *Client) GetTokenHoldings(ctx context.Context, owner string) ([]types.TokenHolding, error) {
	pk, err := ParseAddress(owner)
	if err != nil {
		return nil, err
	}

	accounts, err := rpcfallback.Execute(ctx, c.rpc, func(ctx context.Context, conn *chain.Conn) ([]chain.TokenAccount, error) {
		return conn.GetParsedTokenAccounts(ctx, pk)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching token accounts: %w", err)
	}

	holdings := make([]types.TokenHolding, 0, len(accounts))
	for _, acct := range accounts {
		amount, err := utils.ParseRawAmount(acct.Amount)
		if err != nil {
			walletLogger.Warn().
				Err(err).
				Str("account", acct.Address).
				Msg("Skipping token account with unreadable amount")
			continue
		}
		if amount.IsZero() {
			continue
		}
		ui, err := utils.RawAmountToFloat64(amount, acct.Decimals)
		if err != nil {
			walletLogger.Warn().
				Err(err).
				Str("account", acct.Address).
				Int("decimals", acct.Decimals).
				Msg("Skipping token account with invalid decimals")
			continue
		}

		h := types.TokenHolding{
			Mint:     acct.Mint,
			Account:  acct.Address,
			Amount:   amount,
			Decimals: acct.Decimals,
			UIAmount: ui,
		}
		if known, ok := config.TokenByMint(acct.Mint); ok {
			h.Symbol = known.Symbol
		}
		holdings = append(holdings, h)
	}

	walletLogger.Debug().
		Str("owner", pk.String()).
		Int("accounts", len(accounts)).
		Int("holdings", len(holdings)).
		Msg("Token holdings fetched")
	return holdings, nil
}

// GetPortfolio values native SOL and all token holdings of owner, merged by mint and
// sorted by value. Holdings without a price are kept with zero value and listed in
// UnpricedMints. A failing price source leaves the whole portfolio unpriced.
func (c *Client) GetPortfolio(ctx context.Context, owner string) (types.Portfolio, error) {
	balance, err := c.GetSOLBalance(ctx, owner)
	if err != nil {
		return types.Portfolio{}, err
	}
	tokens, err := c.GetTokenHoldings(ctx, owner)
	if err != nil {
		return types.Portfolio{}, err
	}

	holdings := mergeByMint(append([]types.TokenHolding{{
		Mint:     config.NATIVE_SOL_MINT,
		Symbol:   "SOL",
		Amount:   sdkmath.NewIntFromUint64(balance.Lamports),
		Decimals: utils.SOL_DECIMALS,
		UIAmount: balance.SOL,
	}}, tokens...))

	mints := make([]string, len(holdings))
	for i, h := range holdings {
		mints[i] = h.Mint
	}
	prices := map[string]float64{}
	if c.prices != nil {
		if p, err := c.prices.FetchSpotPrices(ctx, mints); err != nil {
			walletLogger.Warn().Err(err).Msg("Spot prices unavailable, portfolio is unpriced")
		} else {
			prices = p
		}
	}

	portfolio := types.Portfolio{
		Owner:     balance.Owner,
		Timestamp: c.clock.Now().UTC(),
	}
	for i := range holdings {
		h := &holdings[i]
		price, ok := prices[h.Mint]
		if !ok {
			if !h.Amount.IsZero() {
				portfolio.UnpricedMints = append(portfolio.UnpricedMints, h.Mint)
			}
			continue
		}
		h.PriceUSD = price
		h.ValueUSD = price * h.UIAmount
		portfolio.TotalValueUSD += h.ValueUSD
	}
	if portfolio.TotalValueUSD > 0 {
		for i := range holdings {
			holdings[i].Weight = holdings[i].ValueUSD / portfolio.TotalValueUSD
		}
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		if holdings[i].ValueUSD != holdings[j].ValueUSD {
			return holdings[i].ValueUSD > holdings[j].ValueUSD
		}
		return holdings[i].Mint < holdings[j].Mint
	})
	sort.Strings(portfolio.UnpricedMints)
	portfolio.Holdings = holdings

	walletLogger.Info().
		Str("owner", portfolio.Owner).
		Int("holdings", len(holdings)).
		Float64("totalValueUSD", portfolio.TotalValueUSD).
		Int("unpriced", len(portfolio.UnpricedMints)).
		Msg("Portfolio valued")
	return portfolio, nil
}

// mergeByMint sums holdings of the same mint. Wrapped SOL merges into native SOL.
// The merged entry keeps no account address.
func mergeByMint(holdings []types.TokenHolding) []types.TokenHolding {
	index := make(map[string]int, len(holdings))
	out := make([]types.TokenHolding, 0, len(holdings))
	for _, h := range holdings {
		i, ok := index[h.Mint]
		if !ok {
			index[h.Mint] = len(out)
			out = append(out, h)
			continue
		}
		merged := &out[i]
		merged.Amount = merged.Amount.Add(h.Amount)
		merged.UIAmount += h.UIAmount
		merged.Account = ""
	}
	return out
}
