// Package dataset reads and writes labeled loan applications in the reference
// column layout and generates synthetic corpora with a known default mechanism.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/creditrisk/internal/domain"
)

// Columns is the reference column order used when writing
var Columns = []string{
	domain.FieldAge,
	domain.FieldIncome,
	domain.FieldHomeOwnership,
	domain.FieldEmploymentLength,
	domain.FieldLoanIntent,
	domain.FieldLoanGrade,
	domain.FieldLoanAmount,
	domain.FieldInterestRate,
	domain.FieldLoanStatus,
	domain.FieldLoanPercentIncome,
	domain.FieldPreviousDefault,
	domain.FieldCreditHistoryLength,
}

// ReadStats reports what the reader did with the input rows
type ReadStats struct {
	Rows    int `json:"rows"`
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// ReadCSV parses labeled records. Columns are located by header name and may appear
// in any order. Rows with a missing or unparsable value are skipped and counted.
func ReadCSV(r io.Reader) ([]domain.LabeledRecord, ReadStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ReadStats{}, &domain.InsufficientDataError{Reason: "dataset is empty"}
		}
		return nil, ReadStats{}, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, ReadStats{}, fmt.Errorf("dataset is missing column %q", col)
		}
	}

	var (
		records []domain.LabeledRecord
		stats   ReadStats
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read row %d: %w", stats.Rows+1, err)
		}
		stats.Rows++

		rec, ok := parseRow(row, index)
		if !ok {
			stats.Skipped++
			continue
		}
		records = append(records, rec)
		stats.Loaded++
	}

	return records, stats, nil
}

// LoadFile reads a CSV dataset from disk
func LoadFile(path string) ([]domain.LabeledRecord, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func parseRow(row []string, index map[string]int) (domain.LabeledRecord, bool) {
	get := func(col string) (string, bool) {
		i := index[col]
		if i >= len(row) {
			return "", false
		}
		v := strings.TrimSpace(row[i])
		return v, v != ""
	}

	ok := true
	num := func(col string) float64 {
		s, present := get(col)
		if !present {
			ok = false
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			ok = false
		}
		return v
	}
	str := func(col string) string {
		s, present := get(col)
		if !present {
			ok = false
		}
		return s
	}

	rec := domain.ApplicantRecord{
		Age:                 num(domain.FieldAge),
		Income:              num(domain.FieldIncome),
		HomeOwnership:       str(domain.FieldHomeOwnership),
		EmploymentLength:    num(domain.FieldEmploymentLength),
		LoanIntent:          str(domain.FieldLoanIntent),
		LoanGrade:           str(domain.FieldLoanGrade),
		LoanAmount:          num(domain.FieldLoanAmount),
		InterestRate:        num(domain.FieldInterestRate),
		LoanPercentIncome:   num(domain.FieldLoanPercentIncome),
		PreviousDefault:     str(domain.FieldPreviousDefault),
		CreditHistoryLength: num(domain.FieldCreditHistoryLength),
	}

	status := str(domain.FieldLoanStatus)
	var label bool
	switch status {
	case "1":
		label = true
	case "0":
	default:
		ok = false
	}

	if !ok || rec.Validate() != nil {
		return domain.LabeledRecord{}, false
	}
	return domain.LabeledRecord{Record: rec, Default: label}, true
}

// WriteCSV writes records with a header in the reference column order
func WriteCSV(w io.Writer, records []domain.LabeledRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, lr := range records {
		r := lr.Record
		status := "0"
		if lr.Default {
			status = "1"
		}
		row := []string{
			f(r.Age), f(r.Income), r.HomeOwnership, f(r.EmploymentLength), r.LoanIntent, r.LoanGrade,
			f(r.LoanAmount), f(r.InterestRate), status, f(r.LoanPercentIncome), r.PreviousDefault,
			f(r.CreditHistoryLength),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// SplitLabels separates records from outcomes
func SplitLabels(records []domain.LabeledRecord) ([]domain.ApplicantRecord, []bool) {
	xs := make([]domain.ApplicantRecord, len(records))
	ys := make([]bool, len(records))
	for i, lr := range records {
		xs[i] = lr.Record
		ys[i] = lr.Default
	}
	return xs, ys
}
