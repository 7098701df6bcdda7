package chain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// TokenAccount is one SPL token account as reported by jsonParsed encoding.
// Amount is the raw integer amount as a decimal string.
type TokenAccount struct {
	Address  string
	Mint     string
	Owner    string
	Amount   string
	Decimals int
}

type parsedTokenAmount struct {
	Amount   string `json:"amount"`
	Decimals int    `json:"decimals"`
}

type parsedTokenInfo struct {
	Mint        string            `json:"mint"`
	Owner       string            `json:"owner"`
	TokenAmount parsedTokenAmount `json:"tokenAmount"`
}

type parsedAccountData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string          `json:"type"`
		Info parsedTokenInfo `json:"info"`
	} `json:"parsed"`
}

type parsedTokenAccountsResult struct {
	Value []struct {
		Pubkey  string `json:"pubkey"`
		Account struct {
			Data parsedAccountData `json:"data"`
		} `json:"account"`
	} `json:"value"`
}

// GetParsedTokenAccounts lists the SPL token accounts owned by owner.
func (c *Conn) GetParsedTokenAccounts(ctx context.Context, owner solana.PublicKey) ([]TokenAccount, error) {
	params := []interface{}{
		owner.String(),
		map[string]string{"programId": solana.TokenProgramID.String()},
		map[string]string{"encoding": string(solana.EncodingJSONParsed), "commitment": string(COMMITMENT)},
	}

	var out parsedTokenAccountsResult
	if err := c.client.RPCCallForInto(ctx, &out, "getTokenAccountsByOwner", params); err != nil {
		return nil, fmt.Errorf("getTokenAccountsByOwner on %s: %w", c.endpoint.Name, err)
	}

	accounts := make([]TokenAccount, 0, len(out.Value))
	for _, v := range out.Value {
		data := v.Account.Data
		if data.Parsed.Info.Mint == "" {
			chainLogger.Warn().Str("account", v.Pubkey).Msg("Token account without parsed data skipped")
			continue
		}
		if data.Parsed.Info.TokenAmount.Amount == "" {
			return nil, fmt.Errorf("%w: token account %s has no amount", ErrMalformedResponse, v.Pubkey)
		}
		accounts = append(accounts, TokenAccount{
			Address:  v.Pubkey,
			Mint:     data.Parsed.Info.Mint,
			Owner:    data.Parsed.Info.Owner,
			Amount:   data.Parsed.Info.TokenAmount.Amount,
			Decimals: data.Parsed.Info.TokenAmount.Decimals,
		})
	}
	return accounts, nil
}
