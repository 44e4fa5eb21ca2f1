package ingest

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFileType = errors.New("Invalid file type. Please upload a CSV or XLSX file.")
	ErrInvalidFormat       = errors.New("Invalid CSV format")
	ErrEmptyFile           = errors.New("file contains no orders")
	ErrInvalidSpreadsheet  = errors.New("Error parsing XLSX file")
	ErrSectionNotFound     = errors.New("Could not find 'Account Trade History' section in the XLSX file.")
)

// RowError reports a value that could not be turned into an order.
// Row is 1-based and counts the header, so it matches what a spreadsheet shows.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
