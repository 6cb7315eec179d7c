package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// LoadCSV reads a labeled dataset from a CSV file.
//
// The first row is a header and is skipped. Each following row holds the
// integer class label in the first column and the features after it:
//
//	label,x0,x1,...
//	1,0.25,0.5,...
//
// maxSamples limits the number of rows read (0 = all). Features are scaled
// by scale when it is non-zero.
func LoadCSV(filename string, maxSamples int, scale float32) (*InMemory, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: CSV file is empty or missing header", filename)
	}

	records = records[1:]
	if maxSamples > 0 && len(records) > maxSamples {
		records = records[:maxSamples]
	}

	width := len(records[0]) - 1
	if width < 1 {
		return nil, fmt.Errorf("%s: need a label and at least one feature column", filename)
	}

	samples := make([]Sample, len(records))
	for i, record := range records {
		if len(record) != width+1 {
			return nil, fmt.Errorf("invalid record length at row %d: got %d, want %d", i+1, len(record), width+1)
		}

		label, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("invalid label at row %d: %w", i+1, err)
		}
		if label < 0 {
			return nil, fmt.Errorf("negative label at row %d: %d", i+1, label)
		}

		features := make([]float32, width)
		for j := range width {
			v, err := strconv.ParseFloat(record[j+1], 32)
			if err != nil {
				return nil, fmt.Errorf("invalid feature at row %d, column %d: %w", i+1, j+1, err)
			}
			if scale != 0 {
				v *= float64(scale)
			}
			features[j] = float32(v)
		}
		samples[i] = Sample{Features: features, Label: int32(label)}
	}

	return NewInMemory(samples)
}
