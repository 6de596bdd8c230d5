// Package ingestion feeds the quote registry and mempool classifier from
// per-exchange REST pollers and long-lived stream subscriptions.
package ingestion

import (
	"encoding/json"
	"fmt"

	"solana-mev-engine/internal/domain"
)

// NormalizeFunc converts one exchange-specific REST payload into zero or
// more quotes. Entries that cannot be parsed are skipped, not fatal.
type NormalizeFunc func(exchange string, body []byte, nowMs int64) ([]domain.Quote, error)

// NormalizerFor returns the payload normalizer for an exchange. Exchanges
// without a dedicated shape fall back to the generic list format.
func NormalizerFor(exchange string) NormalizeFunc {
	switch exchange {
	case "raydium":
		return normalizeRaydium
	case "orca":
		return normalizeOrca
	case "jupiter":
		return normalizeJupiter
	default:
		return normalizeGeneric
	}
}

// raydiumPayload is the pool-list shape served by Raydium-style endpoints.
type raydiumPayload struct {
	Data []struct {
		Name      string  `json:"name"` // "SOL/USDC"
		AmmID     string  `json:"ammId"`
		Price     float64 `json:"price"`
		Bid       float64 `json:"bid"`
		Ask       float64 `json:"ask"`
		Liquidity float64 `json:"liquidity"`
		Volume24h float64 `json:"volume24h"`
	} `json:"data"`
}

func normalizeRaydium(exchange string, body []byte, nowMs int64) ([]domain.Quote, error) {
	var payload raydiumPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse raydium payload: %w", err)
	}

	var quotes []domain.Quote
	for _, pool := range payload.Data {
		if pool.Name == "" || pool.Price <= 0 {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Exchange:       exchange,
			Pair:           pool.Name,
			Price:          pool.Price,
			Bid:            orSpread(pool.Bid, pool.Price, -1),
			Ask:            orSpread(pool.Ask, pool.Price, +1),
			LiquidityDepth: pool.Liquidity,
			Volume24h:      pool.Volume24h,
			PoolAddress:    pool.AmmID,
			CapturedAt:     nowMs,
		})
	}
	return quotes, nil
}

// orcaPayload is the whirlpool-list shape served by Orca-style endpoints.
type orcaPayload struct {
	Whirlpools []struct {
		Address string `json:"address"`
		TokenA  struct {
			Symbol string `json:"symbol"`
		} `json:"tokenA"`
		TokenB struct {
			Symbol string `json:"symbol"`
		} `json:"tokenB"`
		Price  float64 `json:"price"`
		TVL    float64 `json:"tvl"`
		Volume struct {
			Day float64 `json:"day"`
		} `json:"volume"`
	} `json:"whirlpools"`
}

func normalizeOrca(exchange string, body []byte, nowMs int64) ([]domain.Quote, error) {
	var payload orcaPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse orca payload: %w", err)
	}

	var quotes []domain.Quote
	for _, pool := range payload.Whirlpools {
		if pool.TokenA.Symbol == "" || pool.TokenB.Symbol == "" || pool.Price <= 0 {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Exchange:       exchange,
			Pair:           pool.TokenA.Symbol + "/" + pool.TokenB.Symbol,
			Price:          pool.Price,
			Bid:            orSpread(0, pool.Price, -1),
			Ask:            orSpread(0, pool.Price, +1),
			LiquidityDepth: pool.TVL,
			Volume24h:      pool.Volume.Day,
			PoolAddress:    pool.Address,
			CapturedAt:     nowMs,
		})
	}
	return quotes, nil
}

// jupiterPayload is the price-map shape served by Jupiter-style endpoints.
type jupiterPayload struct {
	Data map[string]struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"data"`
}

func normalizeJupiter(exchange string, body []byte, nowMs int64) ([]domain.Quote, error) {
	var payload jupiterPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse jupiter payload: %w", err)
	}

	var quotes []domain.Quote
	for pair, entry := range payload.Data {
		if pair == "" || entry.Price <= 0 {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Exchange:    exchange,
			Pair:        pair,
			Price:       entry.Price,
			Bid:         orSpread(0, entry.Price, -1),
			Ask:         orSpread(0, entry.Price, +1),
			PoolAddress: entry.ID,
			CapturedAt:  nowMs,
		})
	}
	return quotes, nil
}

// genericPayload is a flat quote list for exchanges without a dedicated shape.
type genericPayload []struct {
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume24h"`
	Pool      string  `json:"pool"`
}

func normalizeGeneric(exchange string, body []byte, nowMs int64) ([]domain.Quote, error) {
	var payload genericPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse quote list: %w", err)
	}

	var quotes []domain.Quote
	for _, entry := range payload {
		if entry.Pair == "" || entry.Price <= 0 {
			continue
		}
		quotes = append(quotes, domain.Quote{
			Exchange:       exchange,
			Pair:           entry.Pair,
			Price:          entry.Price,
			Bid:            orSpread(entry.Bid, entry.Price, -1),
			Ask:            orSpread(entry.Ask, entry.Price, +1),
			LiquidityDepth: entry.Liquidity,
			Volume24h:      entry.Volume24h,
			PoolAddress:    entry.Pool,
			CapturedAt:     nowMs,
		})
	}
	return quotes, nil
}

// syntheticSpread approximates bid/ask for sources that publish mid only.
const syntheticSpread = 0.001

// orSpread returns the explicit side price, or a synthetic one derived from
// mid when the exchange only publishes a single price.
func orSpread(side, mid float64, direction int) float64 {
	if side > 0 {
		return side
	}
	return mid * (1 + float64(direction)*syntheticSpread/2)
}
