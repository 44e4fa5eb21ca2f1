package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"tradejournal/src/model"
)

// TradeHistorySection marks the block of a statement workbook that holds
// the executions. The row after it is the column header.
const TradeHistorySection = "Account Trade History"

// ParseXLSX reads the first sheet of a statement workbook. Data starts two
// rows below the section title and ends at the first blank row. The first
// column is a spacer; the rest map to ExpectedColumns by position.
func ParseXLSX(r io.Reader, opts Options) ([]*model.Order, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
	}

	section := -1
	for i, cells := range rows {
		if rowContains(cells, TradeHistorySection) {
			section = i
			break
		}
	}
	if section < 0 {
		return nil, ErrSectionNotFound
	}

	// rows[section+1] is the header; mapping is positional so it is not checked.
	var orders []*model.Order
	for i := section + 2; i < len(rows); i++ {
		if isBlankRow(rows[i]) {
			break
		}

		order, err := xlsxRow(rows[i]).toOrder(i+1, opts)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if len(orders) == 0 {
		return nil, ErrEmptyFile
	}

	logParsed("xlsx", opts, len(orders))
	return orders, nil
}

func xlsxRow(cells []string) *csvRow {
	var values [12]string
	if len(cells) > 1 {
		copy(values[:], cells[1:])
	}
	return &csvRow{
		ExecTime:  values[0],
		Spread:    values[1],
		Side:      values[2],
		Qty:       values[3],
		PosEffect: values[4],
		Symbol:    values[5],
		Exp:       values[6],
		Strike:    values[7],
		Type:      values[8],
		Price:     values[9],
		NetPrice:  values[10],
		OrderType: values[11],
	}
}

func rowContains(cells []string, text string) bool {
	for _, c := range cells {
		if strings.Contains(c, text) {
			return true
		}
	}
	return false
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
