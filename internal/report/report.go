package report

import (
	"fmt"
	"io"
	"time"

	"github.com/stone-age-io/nbtoff/internal/netbios"
)

// Failure is one host that did not complete enforcement
type Failure struct {
	Host string `json:"host"`
	Err  string `json:"err"`
}

// Report aggregates the outcomes of one enforcement run
type Report struct {
	GeneratedAt       string    `json:"generated_at"`
	Hosts             int       `json:"hosts"`
	Succeeded         int       `json:"succeeded"`
	Failed            int       `json:"failed"`
	InterfacesChanged int       `json:"interfaces_changed"`
	Failures          []Failure `json:"failures,omitempty"`
}

// Summarize folds per-host results into a run report. Pure aggregation, no
// side effects.
func Summarize(results []netbios.Result) Report {
	rep := Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hosts:       len(results),
	}

	for _, res := range results {
		if res.OK {
			rep.Succeeded++
		} else {
			rep.Failed++
			rep.Failures = append(rep.Failures, Failure{Host: res.Host, Err: res.Err})
		}
		rep.InterfacesChanged += len(res.Changed)
	}

	return rep
}

// Write renders the report as operator-readable text
func (r Report) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Hosts attempted:    %d\n", r.Hosts); err != nil {
		return err
	}
	fmt.Fprintf(w, "Succeeded:          %d\n", r.Succeeded)
	fmt.Fprintf(w, "Failed:             %d\n", r.Failed)
	fmt.Fprintf(w, "Interfaces changed: %d\n", r.InterfacesChanged)

	if len(r.Failures) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Host, f.Err)
		}
	}
	return nil
}
