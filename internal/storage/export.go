package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/san-kum/rocketland/internal/dynamo"
)

// WriteCSV writes one row per knot: time, the state components x0.. and the
// control components u0... The control cells of the final knot are empty
// when the trajectory has one control less than states.
func WriteCSV(out io.Writer, result *dynamo.Result) error {
	w := csv.NewWriter(out)

	if len(result.States) == 0 {
		w.Flush()
		return w.Error()
	}

	header := []string{"time"}
	for i := range result.States[0] {
		header = append(header, fmt.Sprintf("x%d", i))
	}
	numControls := 0
	if len(result.Controls) > 0 {
		numControls = len(result.Controls[0])
		for i := 0; i < numControls; i++ {
			header = append(header, fmt.Sprintf("u%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		if i < len(result.Controls) {
			for _, val := range result.Controls[i] {
				row = append(row, formatFloat(val))
			}
		} else {
			for j := 0; j < numControls; j++ {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV parses the format written by WriteCSV.
func ReadCSV(in io.Reader) (*dynamo.Result, error) {
	r := csv.NewReader(in)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	result := &dynamo.Result{Metrics: make(map[string]float64)}
	if len(records) == 0 {
		return result, nil
	}

	header := records[0]
	if len(header) == 0 || header[0] != "time" {
		return nil, fmt.Errorf("unexpected header %v", header)
	}
	n := 0
	for _, col := range header[1:] {
		if strings.HasPrefix(col, "x") {
			n++
		}
	}

	for line, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		vals := make([]float64, len(record)-1)
		empty := false
		for j, cell := range record[1:] {
			if cell == "" {
				empty = true
				continue
			}
			if vals[j], err = strconv.ParseFloat(cell, 64); err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line+2, header[j+1], err)
			}
		}
		result.Times = append(result.Times, t)
		result.States = append(result.States, dynamo.State(vals[:n]))
		if len(vals) > n && !empty {
			result.Controls = append(result.Controls, dynamo.Control(vals[n:]))
		}
	}
	return result, nil
}

type ExportData struct {
	RunMetadata
	Steps    int                `json:"steps"`
	Times    []float64          `json:"times"`
	States   [][]float64        `json:"states"`
	Controls [][]float64        `json:"controls"`
	MPC      []StepRecord       `json:"mpc_steps,omitempty"`
	Metrics  map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run and its trajectory as indented JSON.
func ExportJSON(out io.Writer, meta RunMetadata, result *dynamo.Result, steps []StepRecord) error {
	data := ExportData{
		RunMetadata: meta,
		Steps:       len(result.Times),
		Times:       result.Times,
		States:      make([][]float64, len(result.States)),
		Controls:    make([][]float64, len(result.Controls)),
		MPC:         steps,
		Metrics:     finite(result.Metrics),
	}
	for i, s := range result.States {
		data.States[i] = s
	}
	for i, c := range result.Controls {
		data.Controls[i] = c
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
