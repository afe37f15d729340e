package data

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// ReadPricesCSV ingests a wide daily-close file: a "date" column (YYYY-MM-DD)
// followed by one column per symbol. Empty or unparseable cells become NaN so
// a symbol can list later than the series start.
func ReadPricesCSV(r io.Reader) (*PriceMatrix, error) {
	df := dataframe.ReadCSV(r)
	if df.Err != nil {
		return nil, fmt.Errorf("failed to parse prices CSV: %w", df.Err)
	}

	records := df.Records()
	if len(records) < 2 {
		return nil, fmt.Errorf("prices CSV has no data rows")
	}

	header := records[0]
	if len(header) < 2 || header[0] != "date" {
		return nil, fmt.Errorf("prices CSV must start with a date column followed by symbols")
	}
	symbols := header[1:]

	dates := make([]time.Time, 0, len(records)-1)
	prices := make([][]float64, 0, len(records)-1)

	for i, rec := range records[1:] {
		d, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("prices row %d: bad date %q: %w", i+1, rec[0], err)
		}
		dates = append(dates, d)

		row := make([]float64, len(symbols))
		for j := range symbols {
			row[j] = math.NaN()
			if j+1 < len(rec) {
				if v, err := strconv.ParseFloat(rec[j+1], 64); err == nil {
					row[j] = v
				}
			}
		}
		prices = append(prices, row)
	}

	return NewPriceMatrix(dates, symbols, prices)
}
