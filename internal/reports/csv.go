package reports

import (
	"encoding/csv"
	"io"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var money = message.NewPrinter(language.English)

func formatMoney(v float64) string {
	return money.Sprintf("%.2f", v)
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteVendorLedgerCSV renders a vendor statement as CSV.
func WriteVendorLedgerCSV(w io.Writer, statement VendorLedger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Number", "Debit", "Credit", "Balance"}); err != nil {
		return err
	}
	for _, e := range statement.Entries {
		record := []string{
			e.At.Format("2006-01-02"),
			e.Kind,
			e.Number,
			formatMoney(e.Debit),
			formatMoney(e.Credit),
			formatMoney(e.Balance),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "", "Total", formatMoney(statement.TotalInvoiced),
		formatMoney(statement.TotalPaid), formatMoney(statement.Outstanding)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteStockSummaryCSV renders the stock report as CSV.
func WriteStockSummaryCSV(w io.Writer, rows []StockSummaryRow) error {
	cw := csv.NewWriter(w)
	header := []string{"Product", "Category", "Unit", "Opening", "Inward", "Outward", "Adjustment", "Closing", "Live"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.ProductName,
			row.CategoryName,
			row.Unit,
			formatQty(row.MonthOpening),
			formatQty(row.Inward),
			formatQty(row.Outward),
			formatQty(row.Adjustment),
			formatQty(row.ClosingStock),
			formatQty(row.LiveStock),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
