package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/hupe1980/tsnego/model"
)

// readCSV parses one item per record. With idColumn >= 0 that column holds
// the item ID, otherwise items are numbered from 0.
func readCSV(r io.Reader, header bool, idColumn int) (*model.Collection, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	var items []model.Item
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header && line == 1 {
			continue
		}

		id := model.ID(len(items))
		vec := make([]float64, 0, len(rec))
		for col, field := range rec {
			if col == idColumn {
				v, err := strconv.ParseUint(field, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: id: %w", line, err)
				}
				id = model.ID(v)
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %d: %w", line, col+1, err)
			}
			vec = append(vec, v)
		}
		if idColumn >= len(rec) {
			return nil, fmt.Errorf("line %d: no id column %d", line, idColumn)
		}
		items = append(items, model.Item{ID: id, Vector: vec})
	}

	return model.NewCollection(items)
}

// writeCSV writes one "id,y1,...,yd" record per item.
func writeCSV(w io.Writer, emb *model.Embedding) error {
	cw := csv.NewWriter(w)
	rec := make([]string, emb.Dimension()+1)
	for id, y := range emb.All() {
		rec[0] = strconv.FormatUint(uint64(id), 10)
		for k, v := range y {
			rec[k+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
