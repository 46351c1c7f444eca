// Package report renders finalized run reports for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/indexscout/index-scout/internal/analyzer"
)

// Text writes a human-readable report.
func Text(w io.Writer, r *analyzer.Report) error {
	fmt.Fprintf(w, "Run %s in %s\n", r.State, r.Finished.Sub(r.Started).Round(time.Millisecond))
	fmt.Fprintf(w, "  events: %d seen, %d filtered, %d malformed\n",
		r.Stats.EventsSeen, r.Stats.EventsFiltered, r.Stats.EventsMalformed)
	fmt.Fprintf(w, "  shapes: %d matched, %d unmatched",
		r.Stats.EventsMatched, r.Stats.EventsUnmatched)
	if r.Stats.CatalogErrors > 0 {
		fmt.Fprintf(w, " (%d catalog errors)", r.Stats.CatalogErrors)
	}
	fmt.Fprintln(w)

	if len(r.Recommendations) == 0 {
		fmt.Fprintln(w, "\nNo missing indexes found.")
		return nil
	}

	fmt.Fprintf(w, "\nRecommended indexes (%d):\n", len(r.Recommendations))
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  %s %s  seen %d times, avg %s\n",
			rec.NS, rec.KeySpec(), rec.Count, rec.AvgTime().Round(time.Millisecond))
	}

	if len(r.Decisions) > 0 {
		fmt.Fprintf(w, "\nPer-event decisions (%d):\n", len(r.Decisions))
		for _, d := range r.Decisions {
			verdict := "unmatched"
			if d.Matched {
				verdict = "matched"
			}
			fmt.Fprintf(w, "  %-9s %s %s [%s] %s\n", verdict, d.NS, d.Op, d.ShapeKey, d.Elapsed)
		}
	}

	return nil
}

// jsonReport is the wire shape of a rendered report.
type jsonReport struct {
	State           string               `json:"state"`
	Started         time.Time            `json:"started"`
	Finished        time.Time            `json:"finished"`
	Stats           analyzer.RunStats    `json:"stats"`
	Recommendations []jsonRecommendation `json:"recommendations"`
	Decisions       []jsonDecision       `json:"decisions,omitempty"`
}

type jsonRecommendation struct {
	Namespace string `json:"namespace"`
	Index     string `json:"index"`
	ShapeKey  string `json:"shape"`
	Count     int64  `json:"count"`
	TotalMS   int64  `json:"total_ms"`
	AvgMS     int64  `json:"avg_ms"`
}

type jsonDecision struct {
	Namespace string   `json:"namespace"`
	Op        string   `json:"op"`
	ShapeKey  string   `json:"shape"`
	Matched   bool     `json:"matched"`
	Indexes   []string `json:"indexes,omitempty"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

// JSON writes a machine-readable report.
func JSON(w io.Writer, r *analyzer.Report) error {
	out := jsonReport{
		State:           r.State.String(),
		Started:         r.Started,
		Finished:        r.Finished,
		Stats:           r.Stats,
		Recommendations: make([]jsonRecommendation, 0, len(r.Recommendations)),
	}

	for _, rec := range r.Recommendations {
		out.Recommendations = append(out.Recommendations, jsonRecommendation{
			Namespace: rec.NS,
			Index:     rec.KeySpec(),
			ShapeKey:  rec.ShapeKey,
			Count:     rec.Count,
			TotalMS:   rec.TotalTime.Milliseconds(),
			AvgMS:     rec.AvgTime().Milliseconds(),
		})
	}

	for _, d := range r.Decisions {
		out.Decisions = append(out.Decisions, jsonDecision{
			Namespace: d.NS,
			Op:        d.Op,
			ShapeKey:  d.ShapeKey,
			Matched:   d.Matched,
			Indexes:   d.Indexes,
			ElapsedMS: d.Elapsed.Milliseconds(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
