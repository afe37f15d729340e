package data

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"

	"github.com/alphaforge/smartmoney/internal/config"
)

// FundamentalsRow is one (symbol, fiscal year) record. Rows are immutable
// once ingested; the look-ahead filter excludes rather than mutates.
type FundamentalsRow struct {
	Symbol            string
	Year              int
	Sector            string
	Revenue           float64
	EBIT              float64
	EBITDA            float64 // 0 means not reported, see EBITDAOrProxy
	NetIncome         float64
	Equity            float64
	TotalDebt         float64
	Cash              float64
	InterestExpense   float64 // 0 means not reported, see InterestOrProxy
	FCF               float64
	SharesOutstanding float64
	MarketCap         float64
	AvgDollarVolume   float64
}

// EBITDAOrProxy returns reported EBITDA, or the documented EBIT-based proxy
// when the line item is missing.
func (r FundamentalsRow) EBITDAOrProxy() float64 {
	if r.EBITDA != 0 {
		return r.EBITDA
	}
	return r.EBIT * config.EBITDAFromEBITMultiple
}

// InterestOrProxy returns reported interest expense, or the documented
// debt-based estimate when missing.
func (r FundamentalsRow) InterestOrProxy() float64 {
	if r.InterestExpense != 0 {
		return r.InterestExpense
	}
	return r.TotalDebt * config.InterestFromDebtRate
}

// NetDebt is total debt less cash.
func (r FundamentalsRow) NetDebt() float64 {
	return r.TotalDebt - r.Cash
}

// FundamentalsSet indexes fundamentals rows by symbol, years descending.
type FundamentalsSet struct {
	rows     []FundamentalsRow
	bySymbol map[string][]FundamentalsRow
}

// NewFundamentalsSet builds the index. Input order does not matter.
func NewFundamentalsSet(rows []FundamentalsRow) *FundamentalsSet {
	bySymbol := make(map[string][]FundamentalsRow)
	for _, r := range rows {
		bySymbol[r.Symbol] = append(bySymbol[r.Symbol], r)
	}
	for sym := range bySymbol {
		sort.Slice(bySymbol[sym], func(i, j int) bool {
			return bySymbol[sym][i].Year > bySymbol[sym][j].Year
		})
	}
	return &FundamentalsSet{rows: rows, bySymbol: bySymbol}
}

// Rows returns all records.
func (s *FundamentalsSet) Rows() []FundamentalsRow { return s.rows }

// BySymbol returns a symbol's records, years descending.
func (s *FundamentalsSet) BySymbol(symbol string) []FundamentalsRow {
	return s.bySymbol[symbol]
}

// Symbols returns the distinct symbols, sorted.
func (s *FundamentalsSet) Symbols() []string {
	out := make([]string, 0, len(s.bySymbol))
	for sym := range s.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Len returns the record count.
func (s *FundamentalsSet) Len() int { return len(s.rows) }

// ReadFundamentalsCSV ingests a fundamentals feed. Required columns: symbol,
// year. Financial columns are optional and default to zero (which the proxy
// helpers treat as missing).
func ReadFundamentalsCSV(r io.Reader) (*FundamentalsSet, error) {
	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse fundamentals CSV: %w", df.Err)
	}

	records := df.Records()
	if len(records) < 2 {
		return nil, fmt.Errorf("fundamentals CSV has no data rows")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, required := range []string{"symbol", "year"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("fundamentals CSV missing required column %q", required)
		}
	}

	rows := make([]FundamentalsRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		year, err := strconv.Atoi(rec[col["year"]])
		if err != nil {
			return nil, fmt.Errorf("fundamentals row %d: bad year %q: %w", i+1, rec[col["year"]], err)
		}

		row := FundamentalsRow{
			Symbol:            rec[col["symbol"]],
			Year:              year,
			Sector:            cellString(rec, col, "sector"),
			Revenue:           cellFloat(rec, col, "revenue"),
			EBIT:              cellFloat(rec, col, "ebit"),
			EBITDA:            cellFloat(rec, col, "ebitda"),
			NetIncome:         cellFloat(rec, col, "net_income"),
			Equity:            cellFloat(rec, col, "equity"),
			TotalDebt:         cellFloat(rec, col, "total_debt"),
			Cash:              cellFloat(rec, col, "cash"),
			InterestExpense:   cellFloat(rec, col, "interest_expense"),
			FCF:               cellFloat(rec, col, "fcf"),
			SharesOutstanding: cellFloat(rec, col, "shares_outstanding"),
			MarketCap:         cellFloat(rec, col, "market_cap"),
			AvgDollarVolume:   cellFloat(rec, col, "avg_dollar_volume"),
		}
		rows = append(rows, row)
	}

	return NewFundamentalsSet(rows), nil
}

func cellString(rec []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func cellFloat(rec []string, col map[string]int, name string) float64 {
	i, ok := col[name]
	if !ok || i >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(rec[i], 64)
	if err != nil {
		return 0
	}
	return v
}
