package docs

import (
	"fmt"
	"math"
	"strings"

	"github.com/divan/num2words"
	"github.com/xuri/excelize/v2"

	"eccnsw/memberdesk/internal/models"
)

const sheetName = "Invoice"

const dateLayout = "2 January 2006"

// RenderInvoiceWorkbook builds the invoice document as an xlsx workbook:
// header, member and level details, fee lines, totals with the amount in
// words, and the operator's payment instructions.
func RenderInvoiceWorkbook(inv *models.Invoice, member *models.Member, settings *models.AppSettings) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 40)
	f.SetColWidth(sheetName, "B", "B", 30)

	row := 1
	set := func(col string, r int, value interface{}) {
		f.SetCellValue(sheetName, fmt.Sprintf("%s%d", col, r), value)
	}

	set("A", row, "TAX INVOICE")
	set("B", row, fmt.Sprintf("Invoice # %s", inv.ID.String()))
	row += 2

	set("A", row, "Issued to:")
	set("B", row, member.Name)
	row++
	if member.ContactName != "" {
		set("A", row, "Attention:")
		set("B", row, member.ContactName)
		row++
	}
	if member.PostalAddress != "" {
		set("A", row, "Address:")
		set("B", row, member.PostalAddress)
		row++
	}
	row++

	set("A", row, "Invoice date:")
	set("B", row, inv.Date.Format(dateLayout))
	row++
	if inv.DueDate != nil {
		set("A", row, "Due date:")
		set("B", row, inv.DueDate.Format(dateLayout))
		row++
	}
	set("A", row, "Financial year:")
	set("B", row, inv.FinancialYear.Label)
	row += 2

	level := inv.LevelAtTimeOfInvoice
	years := inv.YearsCovered()
	if years > 1 {
		set("A", row, fmt.Sprintf("%s (annual fee x %d years)", level.Name, years))
	} else {
		set("A", row, fmt.Sprintf("%s (annual fee)", level.Name))
	}
	set("B", row, level.AnnualFee*float64(years))
	row++
	if inv.IncludeJoiningFee {
		set("A", row, "Joining fee")
		set("B", row, level.JoiningFee)
		row++
	}
	row++

	set("A", row, "TOTAL (AUD)")
	set("B", row, inv.Amount)
	row++
	set("A", row, "Amount in words:")
	set("B", row, amountInWords(inv.Amount))
	row++
	set("A", row, "Status:")
	set("B", row, strings.ToUpper(string(inv.Status)))
	row++
	if inv.AmountPaid > 0 && inv.AmountPaid < inv.Amount {
		set("A", row, "Amount paid to date:")
		set("B", row, inv.AmountPaid)
		row++
	}
	row++

	if inv.Notes != "" {
		set("A", row, "Notes:")
		row++
		for _, line := range strings.Split(inv.Notes, "\n") {
			set("A", row, line)
			row++
		}
		row++
	}

	if settings != nil && settings.PaymentInstructions != "" {
		set("A", row, "Payment instructions:")
		row++
		for _, line := range strings.Split(settings.PaymentInstructions, "\n") {
			set("A", row, line)
			row++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write invoice workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// amountInWords renders a dollar amount the way it appears on printed
// invoices, e.g. "ninety-nine dollars and fifty cents".
func amountInWords(amount float64) string {
	dollars := int(amount)
	cents := int(math.Round((amount - float64(dollars)) * 100))

	words := num2words.Convert(dollars) + " dollars"
	if cents > 0 {
		words += fmt.Sprintf(" and %s cents", num2words.Convert(cents))
	}
	return words
}
