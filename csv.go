package lumen

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV parses CSV content with a header row into a Dataset. Each cell is
// sniffed into a Value: numeric text becomes a Number, empty cells become
// Missing, everything else stays Text (date interpretation happens lazily at
// the point of use).
func ReadCSV(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	var ds Dataset
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", len(ds)+2, err)
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if i >= len(row) {
				rec[col] = Missing()
				continue
			}
			rec[col] = sniffCell(row[i])
		}
		ds = append(ds, rec)
	}
	return ds, nil
}

func sniffCell(cell string) Value {
	s := strings.TrimSpace(cell)
	if s == "" {
		return Missing()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	switch strings.ToLower(s) {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	return Text(s)
}
