package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/phonelink/internal/model"
)

// writeResult renders a batch result as json, yaml, or a text summary.
func writeResult(out io.Writer, format string, res *model.BatchResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "text", "":
		return writeSummary(out, res)
	default:
		return eris.Errorf("unsupported output format: %s", format)
	}
}

func writeSummary(out io.Writer, res *model.BatchResult) error {
	mode := "apply"
	if res.DryRun {
		mode = "dry run"
	}
	_, _ = fmt.Fprintf(out, "Run %s (%s): %d processed in %s\n\n",
		res.RunID, mode, res.Processed, res.Duration.Round(time.Millisecond))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "OUTCOME\tCOUNT")
	for _, kind := range model.OutcomeKinds {
		if n := res.Count(kind); n > 0 {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", kind, n)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "flush summary")
	}

	if res.Failures() == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out, "\nFailures:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UID\tPHONE\tOUTCOME\tDETAIL")
	for _, item := range res.Items {
		if !item.Kind.Failed() {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Phone, item.Kind, item.Detail)
	}
	return w.Flush()
}
