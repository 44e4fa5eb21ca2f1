package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tradejournal/src/model"
)

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetList()[0]
	for i, row := range rows {
		r := row
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+1), &r))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func xlsxHeader() []interface{} {
	row := []interface{}{""}
	for _, c := range ExpectedColumns {
		row = append(row, c)
	}
	return row
}

func TestParseXLSX(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Account Statement for 123"},
		{},
		{"Cash Balance"},
		{"", "DATE", "TIME", "AMOUNT"},
		{},
		{"Account Trade History"},
		xlsxHeader(),
		{"", "3/1/24 09:30:00", "SINGLE", "BUY", "+2", "TO OPEN", "spy", "17 MAY 24", "510", "CALL", "3.10", "3.10", "LMT"},
		{"", "3/1/24 10:15:00", "SINGLE", "SELL", "-2", "TO CLOSE", "SPY", "17 MAY 24", "510", "CALL", "3.45", "3.45", "MKT"},
		{},
		{"", "3/1/24 11:00:00", "STOCK", "BUY", "100", "TO OPEN", "AAPL", "", "", "STOCK", "180", "180", "LMT"},
		{"Profits and Losses"},
	})

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	orders, err := ParseXLSX(buf, Options{UserID: 5, ImportID: "wb-1", Location: ny})
	require.NoError(t, err)
	require.Len(t, orders, 2, "parsing stops at the first blank row")

	first := orders[0]
	assert.Equal(t, uint(5), first.UserID)
	assert.Equal(t, "wb-1", first.ImportID)
	assert.Equal(t, time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC), first.ExecutionTime)
	assert.Equal(t, "SPY", first.Symbol)
	assert.Equal(t, 2, first.Quantity)
	assert.Equal(t, model.PositionEffectToOpen, first.PositionEffect)
	require.NotNil(t, first.StrikePrice)
	assert.Equal(t, 510.0, *first.StrikePrice)
	assert.Equal(t, "LMT", *first.OrderType)

	assert.Equal(t, model.PositionEffectToClose, orders[1].PositionEffect)
	assert.Equal(t, 3.45, orders[1].Price)
}

func TestParseXLSXMissingSection(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Account Statement for 123"},
		xlsxHeader(),
		{"", "3/1/24 09:30:00", "", "BUY", "1", "TO OPEN", "SPY", "", "", "", "1", "1", ""},
	})

	_, err := ParseXLSX(buf, Options{})
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestParseXLSXEmptySection(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Account Trade History"},
		xlsxHeader(),
		{},
		{"", "3/1/24 09:30:00", "", "BUY", "1", "TO OPEN", "SPY", "", "", "", "1", "1", ""},
	})

	_, err := ParseXLSX(buf, Options{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestParseXLSXRowError(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"Account Trade History"},
		xlsxHeader(),
		{"", "3/1/24 09:30:00", "", "BUY", "1", "TO OPEN", "SPY", "", "", "", "1", "1", ""},
		{"", "3/1/24 09:31:00", "", "BUY", "1", "TO OPEN", "", "", "", "", "1", "1", ""},
	})

	_, err := ParseXLSX(buf, Options{})
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr), "got %v", err)
	assert.Equal(t, 4, rowErr.Row)
	assert.Equal(t, "Symbol", rowErr.Column)
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := ParseXLSX(bytes.NewReader([]byte("Exec Time,Side\n")), Options{})
	assert.ErrorIs(t, err, ErrInvalidSpreadsheet)
}

func TestParseDispatchesByFormat(t *testing.T) {
	_, err := Parse(bytes.NewReader(nil), Format(0), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)

	buf := workbook(t, [][]interface{}{{"nothing here"}})
	_, err = Parse(buf, FormatXLSX, Options{})
	assert.ErrorIs(t, err, ErrSectionNotFound)
}
