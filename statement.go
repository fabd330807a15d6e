package bankhub

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
)

const statementTimeLayout = "2006-01-02 15:04:05"

// renderStatement writes a single page PDF listing acct's transactions.
func renderStatement(w io.Writer, acct Account, txns []Transaction, generated time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Statement %v", acct.AcctID), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Account statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Account: %v", acct.AcctID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Owner: %s (%s)", acct.Owner, acct.Type))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Balance: %s", acct.Balance.StringFixed(2)))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.Format(statementTimeLayout)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	header := []string{"Date", "Type", "Amount", "Reference"}
	widths := []float64{50, 35, 35, 70}
	for i, h := range header {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(txns) == 0 {
		pdf.CellFormat(190, 7, "no transactions", "1", 1, "C", false, 0, "")
	}
	for _, t := range txns {
		pdf.CellFormat(widths[0], 6, t.CreatedAt.Format(statementTimeLayout), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 6, string(t.Type), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 6, t.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 6, t.TxnID.String(), "1", 1, "", false, 0, "")
	}

	return pdf.Output(w)
}
