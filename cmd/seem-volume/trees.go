package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"seem/internal/stand"
	"seem/pkg/taper"
)

var requiredColumns = []string{"species", "dbh", "height", "expansion_factor"}

// readTrees parses a tree list with a header row. The period column is
// optional; a positive period selects the tree for harvest in that period.
func readTrees(r io.Reader, name string, units stand.Units) (*stand.Stand, stand.Selection, []int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, nil, errors.New("tree list is empty")
		}
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, nil, nil, fmt.Errorf("tree list missing %q column", col)
		}
	}
	periodColumn, hasPeriod := columns["period"]

	st := stand.NewStand(name)
	selection := stand.Selection{}
	seen := map[int]bool{}
	var periods []int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		line, _ := reader.FieldPos(0)
		species, err := taper.ParseSpecies(record[columns["species"]])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		values := make([]float64, 3)
		for i, col := range requiredColumns[1:] {
			raw := strings.TrimSpace(record[columns[col]])
			if values[i], err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, nil, nil, fmt.Errorf("line %d: %s %q: %w", line, col, raw, err)
			}
		}
		tree := st.TreesOf(species, units).Add(values[0], values[1], values[2])
		if !hasPeriod {
			continue
		}
		raw := strings.TrimSpace(record[periodColumn])
		if raw == "" {
			continue
		}
		period, err := strconv.Atoi(raw)
		if err != nil || period < 0 {
			return nil, nil, nil, fmt.Errorf("line %d: period %q must be a non-negative integer", line, raw)
		}
		if period == 0 {
			continue
		}
		selection.Select(species, tree, period)
		if !seen[period] {
			seen[period] = true
			periods = append(periods, period)
		}
	}
	return st, selection, periods, nil
}

func parsePeriods(raw string) ([]int, error) {
	var periods []int
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		p, err := strconv.Atoi(field)
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("period %q must be a positive integer", field)
		}
		periods = append(periods, p)
	}
	return periods, nil
}
