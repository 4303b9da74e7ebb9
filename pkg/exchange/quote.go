package exchange

import (
	"github.com/Iwinswap/iwinswap-amm-router/pkg/ledger"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/asset"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/constantproduct"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/poolregistry"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/router"
	"github.com/Iwinswap/iwinswap-amm-router/protocols/swap"
	"github.com/shopspring/decimal"
)

// Quote describes a priced trade without executing it.
type Quote struct {
	Path      router.Path `json:"path"`
	Amounts   []uint64    `json:"amounts"`
	AmountIn  uint64      `json:"amountIn"`
	AmountOut uint64      `json:"amountOut"`
	// SpotPrice is the marginal price of the input in units of the output before the
	// trade, compounded along the path.
	SpotPrice decimal.Decimal `json:"spotPrice"`
	// ExecutionPrice is AmountOut per unit of AmountIn.
	ExecutionPrice decimal.Decimal `json:"executionPrice"`
	// PriceImpact is the fraction by which ExecutionPrice falls short of SpotPrice,
	// fees included.
	PriceImpact decimal.Decimal `json:"priceImpact"`
}

// read runs fn in a transaction that locks the pools of pairs and no accounts.
func (e *Exchange) read(pairs [][2]asset.Asset, fn func(tx *ledger.Tx) error) error {
	return e.ledger.Atomic(nil, pairs, fn)
}

// QuoteAmountIn returns the input of a required to buy amountOut of b.
func (e *Exchange) QuoteAmountIn(a, b asset.Asset, amountOut uint64) (amountIn uint64, err error) {
	defer func() { e.metrics.observeError("quote_amount_in", err) }()
	err = e.read(pairOf(a, b), func(tx *ledger.Tx) error {
		var err error
		amountIn, err = swap.QuoteExactOutput(tx, a, b, amountOut)
		return err
	})
	return amountIn, err
}

// QuoteAmountOut returns the output of b paid for amountIn of a.
func (e *Exchange) QuoteAmountOut(a, b asset.Asset, amountIn uint64) (amountOut uint64, err error) {
	defer func() { e.metrics.observeError("quote_amount_out", err) }()
	err = e.read(pairOf(a, b), func(tx *ledger.Tx) error {
		var err error
		amountOut, err = swap.QuoteExactInput(tx, a, b, amountIn)
		return err
	})
	return amountOut, err
}

// QuoteAmountsOut quotes an exact-input trade along path, hop by hop.
func (e *Exchange) QuoteAmountsOut(path router.Path, amountIn uint64) (amounts []uint64, err error) {
	defer func() { e.metrics.observeError("quote_amounts_out", err) }()
	err = e.read(path.Pairs(), func(tx *ledger.Tx) error {
		var err error
		amounts, err = router.AmountsOut(tx, path, amountIn)
		return err
	})
	return amounts, err
}

// QuoteAmountsIn quotes an exact-output trade along path, back to front.
func (e *Exchange) QuoteAmountsIn(path router.Path, amountOut uint64) (amounts []uint64, err error) {
	defer func() { e.metrics.observeError("quote_amounts_in", err) }()
	err = e.read(path.Pairs(), func(tx *ledger.Tx) error {
		var err error
		amounts, err = router.AmountsIn(tx, path, amountOut)
		return err
	})
	return amounts, err
}

// QuoteSwap prices selling amountIn along path, with display prices.
func (e *Exchange) QuoteSwap(path router.Path, amountIn uint64) (q Quote, err error) {
	defer func() { e.metrics.observeError("quote_swap", err) }()
	err = e.read(path.Pairs(), func(tx *ledger.Tx) error {
		amounts, err := router.AmountsOut(tx, path, amountIn)
		if err != nil {
			return err
		}
		q, err = buildQuote(tx, path, amounts)
		return err
	})
	return q, err
}

// BestPath finds the path from one asset to another, of at most maxHops hops, that pays
// the most for amountIn. A maxHops of zero allows the longest supported paths.
func (e *Exchange) BestPath(from, to asset.Asset, amountIn uint64, maxHops int) (q Quote, err error) {
	defer func() { e.metrics.observeError("best_path", err) }()

	graph := poolregistry.NewAssetPoolsRegistryView(e.ledger.Pools())
	paths := router.FindPaths(graph, from, to, maxHops)
	var pairs [][2]asset.Asset
	for _, p := range paths {
		pairs = append(pairs, p.Pairs()...)
	}
	err = e.read(pairs, func(tx *ledger.Tx) error {
		best, amounts, err := router.BestExactInputPath(tx, paths, amountIn)
		if err != nil {
			return err
		}
		q, err = buildQuote(tx, best, amounts)
		return err
	})
	return q, err
}

func buildQuote(r swap.Reader, path router.Path, amounts []uint64) (Quote, error) {
	amountIn, amountOut := amounts[0], amounts[len(amounts)-1]
	spot := decimal.NewFromInt(1)
	for _, pair := range path.Pairs() {
		reserveIn, reserveOut, err := r.Reserves(pair[0], pair[1])
		if err != nil {
			return Quote{}, err
		}
		hopSpot, err := constantproduct.SpotPrice(reserveIn, reserveOut)
		if err != nil {
			return Quote{}, err
		}
		spot = spot.Mul(hopSpot)
	}
	execution, err := constantproduct.ExecutionPrice(amountIn, amountOut)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Path:           path,
		Amounts:        amounts,
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		SpotPrice:      spot.Round(18),
		ExecutionPrice: execution,
		PriceImpact:    constantproduct.Impact(execution, spot),
	}, nil
}
