package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/model"
	"tradejournal/src/utils"
)

// ExpectedColumns is the exact header of an account trade history export.
var ExpectedColumns = []string{
	"Exec Time", "Spread", "Side", "Qty", "Pos Effect", "Symbol",
	"Exp", "Strike", "Type", "Price", "Net Price", "Order Type",
}

const maxQuantity = math.MaxInt32

// csvRow mirrors one line of the export. Every value is read as text and
// converted by toOrder so that errors can name the offending cell.
type csvRow struct {
	ExecTime  string `csv:"Exec Time"`
	Spread    string `csv:"Spread"`
	Side      string `csv:"Side"`
	Qty       string `csv:"Qty"`
	PosEffect string `csv:"Pos Effect"`
	Symbol    string `csv:"Symbol"`
	Exp       string `csv:"Exp"`
	Strike    string `csv:"Strike"`
	Type      string `csv:"Type"`
	Price     string `csv:"Price"`
	NetPrice  string `csv:"Net Price"`
	OrderType string `csv:"Order Type"`
}

type Options struct {
	UserID   uint
	ImportID string
	// Location for timestamps without an explicit offset. Nil means UTC.
	Location *time.Location
}

type Format int

const (
	FormatCSV Format = iota + 1
	FormatXLSX
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DetectFormat picks the parser for an upload from its name and content type.
// Legacy .xls workbooks are not supported.
func DetectFormat(filename, contentType string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	switch {
	case ext == ".csv":
		return FormatCSV, nil
	case ext == ".xlsx":
		return FormatXLSX, nil
	case ext == ".xls":
		return 0, ErrUnsupportedFileType
	case ct == "text/csv" || ct == "application/csv":
		return FormatCSV, nil
	case ct == xlsxContentType:
		return FormatXLSX, nil
	}
	return 0, ErrUnsupportedFileType
}

// Parse dispatches to ParseCSV or ParseXLSX.
func Parse(r io.Reader, format Format, opts Options) ([]*model.Order, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(r, opts)
	case FormatXLSX:
		return ParseXLSX(r, opts)
	}
	return nil, ErrUnsupportedFileType
}

// ParseCSV reads an account trade history export into orders ready for the
// aggregator. The header must match ExpectedColumns exactly.
func ParseCSV(r io.Reader, opts Options) ([]*model.Order, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	if err := validateHeader(data); err != nil {
		return nil, err
	}

	var rows []*csvRow
	if err := gocsv.Unmarshal(bytes.NewReader(data), &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	orders := make([]*model.Order, 0, len(rows))
	for i, row := range rows {
		order, err := row.toOrder(i+2, opts)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	logParsed("csv", opts, len(orders))
	return orders, nil
}

func logParsed(format string, opts Options, rows int) {
	logger.WithFields(map[string]interface{}{
		"component": "ingest",
		"format":    format,
		"import_id": opts.ImportID,
		"user_id":   opts.UserID,
		"rows":      rows,
	}).Debug("parsed trade history export")
}

func validateHeader(data []byte) error {
	reader := csv.NewReader(bytes.NewReader(data))
	header, err := reader.Read()
	if err == io.EOF {
		return ErrEmptyFile
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if len(header) != len(ExpectedColumns) {
		return fmt.Errorf("%w. Columns must be exactly: %s", ErrInvalidFormat, strings.Join(ExpectedColumns, ", "))
	}
	for i, col := range header {
		if col != ExpectedColumns[i] {
			return fmt.Errorf("%w. Columns must be exactly: %s", ErrInvalidFormat, strings.Join(ExpectedColumns, ", "))
		}
	}

	if _, err := reader.Read(); err == io.EOF {
		return ErrEmptyFile
	}
	return nil
}

func (row *csvRow) toOrder(line int, opts Options) (*model.Order, error) {
	rowErr := func(column string, err error) error {
		return &RowError{Row: line, Column: column, Err: err}
	}

	required := []struct{ column, value string }{
		{"Exec Time", row.ExecTime},
		{"Side", row.Side},
		{"Pos Effect", row.PosEffect},
		{"Symbol", row.Symbol},
		{"Price", row.Price},
		{"Net Price", row.NetPrice},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return nil, rowErr(field.column, fmt.Errorf("missing value in required column"))
		}
	}

	execTime, err := utils.ParseExecutionTime(row.ExecTime, opts.Location)
	if err != nil {
		return nil, rowErr("Exec Time", err)
	}

	qty, err := parseQuantity(row.Qty)
	if err != nil {
		return nil, rowErr("Qty", err)
	}
	if qty == 0 {
		return nil, rowErr("Qty", fmt.Errorf("quantity must not be zero"))
	}

	price, err := parseNumber(row.Price)
	if err != nil {
		return nil, rowErr("Price", err)
	}
	netPrice, err := parseNumber(row.NetPrice)
	if err != nil {
		return nil, rowErr("Net Price", err)
	}

	order := &model.Order{
		UserID:         opts.UserID,
		ImportID:       opts.ImportID,
		ExecutionTime:  execTime,
		Spread:         optional(row.Spread),
		Side:           model.NormalizeSide(row.Side),
		Quantity:       qty,
		PositionEffect: model.NormalizePositionEffect(row.PosEffect),
		Symbol:         strings.ToUpper(strings.TrimSpace(row.Symbol)),
		OptionType:     optional(row.Type),
		Price:          price,
		NetPrice:       netPrice,
		OrderType:      optional(row.OrderType),
	}

	if order.ExpirationDate, err = utils.ParseDate(row.Exp); err != nil {
		return nil, rowErr("Exp", err)
	}
	if strings.TrimSpace(row.Strike) != "" {
		strike, err := parseNumber(row.Strike)
		if err != nil {
			return nil, rowErr("Strike", err)
		}
		order.StrikePrice = &strike
	}

	if err := order.Validate(); err != nil {
		return nil, rowErr(columnFor(order), err)
	}
	return order, nil
}

// columnFor guesses which cell made Validate fail.
func columnFor(o *model.Order) string {
	if o.Side != model.OrderSideBuy && o.Side != model.OrderSideSell {
		return "Side"
	}
	if !o.IsOpening() && !o.IsClosing() {
		return "Pos Effect"
	}
	return "Symbol"
}

// parseNumber accepts statement formatting such as "1,234.50", "$3.10",
// "(2.5)" and "+1". NaN and infinities become 0.
func parseNumber(value string) (float64, error) {
	v := strings.TrimSpace(value)
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}
	v = strings.NewReplacer(",", "", "$", "", "+", "").Replace(v)

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, nil
	}
	if negative {
		f = -f
	}
	return f, nil
}

func parseQuantity(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	f, err := parseNumber(value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("quantity %q is not a whole number", value)
	}
	if math.Abs(f) > maxQuantity {
		return 0, fmt.Errorf("quantity %q is out of range", value)
	}
	return int(f), nil
}

func optional(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
