package data

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFundamentalsCSV(t *testing.T) {
	csv := strings.TrimSpace(`
symbol,year,sector,revenue,ebit,net_income,equity,total_debt,cash,fcf,market_cap,avg_dollar_volume
AAA,2023,Tech,1000,200,150,800,100,50,120,5000,10
AAA,2022,Tech,900,180,130,700,120,40,110,4500,9
BBB,2023,Energy,2000,300,100,1500,600,100,90,3000,5
`)

	set, err := ReadFundamentalsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	rows := set.BySymbol("AAA")
	require.Len(t, rows, 2)
	assert.Equal(t, 2023, rows[0].Year, "years must sort descending")
	assert.Equal(t, "Tech", rows[0].Sector)
	assert.InDelta(t, 150, rows[0].NetIncome, 1e-12)
	// ebitda column absent: zero triggers the proxy path.
	assert.InDelta(t, 200*1.2, rows[0].EBITDAOrProxy(), 1e-9)
}

func TestReadFundamentalsCSVMissingRequiredColumn(t *testing.T) {
	csv := "ticker,year\nAAA,2023\n"
	_, err := ReadFundamentalsCSV(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol")
}

func TestFundamentalsProxies(t *testing.T) {
	explicit := FundamentalsRow{EBITDA: 500, EBIT: 100, InterestExpense: 25, TotalDebt: 200}
	assert.InDelta(t, 500, explicit.EBITDAOrProxy(), 1e-12, "explicit EBITDA wins")
	assert.InDelta(t, 25, explicit.InterestOrProxy(), 1e-12)

	proxied := FundamentalsRow{EBIT: 100, TotalDebt: 200}
	assert.InDelta(t, 120, proxied.EBITDAOrProxy(), 1e-9)
	assert.InDelta(t, 10, proxied.InterestOrProxy(), 1e-9, "5% of debt")
}

func TestNetDebt(t *testing.T) {
	row := FundamentalsRow{TotalDebt: 300, Cash: 100}
	assert.InDelta(t, 200, row.NetDebt(), 1e-12)

	netCash := FundamentalsRow{TotalDebt: 50, Cash: 400}
	assert.InDelta(t, -350, netCash.NetDebt(), 1e-12)
}

func TestReadHoldingsCSV(t *testing.T) {
	csv := strings.TrimSpace(`
symbol,fund_count,fund_share_delta,superinvestor_buys,insider_buys,insider_sells,insider_net_value
AAA,15,0.08,3,4,1,2500000
BBB,2,-0.02,0,0,5,-900000
`)

	set, err := ReadHoldingsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	row, ok := set.BySymbol("AAA")
	require.True(t, ok)
	assert.Equal(t, 15, row.FundCount)
	assert.InDelta(t, 0.08, row.FundShareDelta, 1e-12)
	assert.Equal(t, 3, row.SuperinvestorBuys)

	_, ok = set.BySymbol("CCC")
	assert.False(t, ok)
}

func TestReadPricesCSV(t *testing.T) {
	csv := strings.TrimSpace(`
date,AAA,BBB
2024-01-02,100,
2024-01-03,101,50.5
`)

	m, err := ReadPricesCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, m.Symbols())
	assert.InDelta(t, 100, m.Price(0, "AAA"), 1e-12)
	assert.True(t, isNaN(m.Price(0, "BBB")), "empty cell is missing data")
	assert.InDelta(t, 50.5, m.Price(1, "BBB"), 1e-12)
}

func TestReadPricesCSVRequiresDateColumn(t *testing.T) {
	_, err := ReadPricesCSV(strings.NewReader("day,AAA\n2024-01-02,1\n"))
	require.Error(t, err)
}
