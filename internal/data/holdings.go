package data

import (
	"fmt"
	"io"

	"github.com/go-gota/gota/dataframe"
)

// HoldingsRow aggregates scraped institutional and insider activity for one
// symbol over the most recent reporting window. Produced by the external
// scraping layer; the pipeline only reads it.
type HoldingsRow struct {
	Symbol            string
	FundCount         int     // hedge funds holding the name
	FundShareDelta    float64 // aggregate quarter-over-quarter share change, fraction
	SuperinvestorBuys int     // superinvestors adding or opening
	InsiderBuys       int
	InsiderSells      int
	InsiderNetValue   float64 // net open-market dollar value, buys minus sells
}

// HoldingsSet indexes holdings rows by symbol.
type HoldingsSet struct {
	bySymbol map[string]HoldingsRow
}

// NewHoldingsSet builds the index; later rows for a symbol win.
func NewHoldingsSet(rows []HoldingsRow) *HoldingsSet {
	bySymbol := make(map[string]HoldingsRow, len(rows))
	for _, r := range rows {
		bySymbol[r.Symbol] = r
	}
	return &HoldingsSet{bySymbol: bySymbol}
}

// BySymbol returns a symbol's activity row, if present.
func (s *HoldingsSet) BySymbol(symbol string) (HoldingsRow, bool) {
	r, ok := s.bySymbol[symbol]
	return r, ok
}

// Len returns the symbol count.
func (s *HoldingsSet) Len() int { return len(s.bySymbol) }

// ReadHoldingsCSV ingests a scraped holdings/insider feed. Required column:
// symbol. Activity columns default to zero.
func ReadHoldingsCSV(r io.Reader) (*HoldingsSet, error) {
	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse holdings CSV: %w", df.Err)
	}

	records := df.Records()
	if len(records) < 2 {
		return nil, fmt.Errorf("holdings CSV has no data rows")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	if _, ok := col["symbol"]; !ok {
		return nil, fmt.Errorf("holdings CSV missing required column \"symbol\"")
	}

	rows := make([]HoldingsRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, HoldingsRow{
			Symbol:            rec[col["symbol"]],
			FundCount:         int(cellFloat(rec, col, "fund_count")),
			FundShareDelta:    cellFloat(rec, col, "fund_share_delta"),
			SuperinvestorBuys: int(cellFloat(rec, col, "superinvestor_buys")),
			InsiderBuys:       int(cellFloat(rec, col, "insider_buys")),
			InsiderSells:      int(cellFloat(rec, col, "insider_sells")),
			InsiderNetValue:   cellFloat(rec, col, "insider_net_value"),
		})
	}

	return NewHoldingsSet(rows), nil
}
