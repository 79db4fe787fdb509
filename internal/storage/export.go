package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
)

type ExportData struct {
	Run    RunMetadata `json:"run"`
	Header []string    `json:"header"`
	Times  []float64   `json:"times"`
	Rows   [][]float64 `json:"rows"`
}

// ExportJSON writes the metadata and trace of a run as one JSON document.
func ExportJSON(w io.Writer, meta *RunMetadata, trace *Trace) error {
	data := ExportData{
		Run:    *meta,
		Header: trace.Header,
		Times:  trace.Times,
		Rows:   trace.Rows,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes the trace, optionally restricted to some columns. time
// is always the first column.
func ExportCSV(w io.Writer, trace *Trace, columns []string) error {
	cw := csv.NewWriter(w)

	idx := make([]int, 0, len(trace.Header))
	header := []string{"time"}
	if len(columns) == 0 {
		for i := 1; i < len(trace.Header); i++ {
			idx = append(idx, i-1)
			header = append(header, trace.Header[i])
		}
	} else {
		for _, c := range columns {
			for i := 1; i < len(trace.Header); i++ {
				if trace.Header[i] == c {
					idx = append(idx, i-1)
					header = append(header, c)
					break
				}
			}
		}
	}

	if err := cw.Write(header); err != nil {
		return err
	}
	for r, row := range trace.Rows {
		rec := []string{strconv.FormatFloat(trace.Times[r], 'f', 6, 64)}
		for _, i := range idx {
			rec = append(rec, strconv.FormatFloat(row[i], 'g', 10, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
