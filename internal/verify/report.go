// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package verify

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/juju/ansiterm"
)

// statusColor maps each result status to its table color.
var statusColor = map[Status]*ansiterm.Context{
	StatusSuccess:  ansiterm.Foreground(ansiterm.Green),
	StatusMismatch: ansiterm.Foreground(ansiterm.BrightRed),
	StatusError:    ansiterm.Foreground(ansiterm.Yellow),
}

// WriteReport renders one table row per result, followed by a one-line
// summary. Color is applied only when w is color capable.
func WriteReport(w io.Writer, results []Result) {
	const (
		minwidth = 0
		tabwidth = 1
		padding  = 2
		padchar  = ' '
		flags    = 0
	)
	tw := ansiterm.NewTabWriter(w, minwidth, tabwidth, padding, padchar, flags)
	fmt.Fprintln(tw, "RESULT\tFILE\tMANIFEST\tDETAILS")
	for _, result := range results {
		statusColor[result.Status].Fprintf(tw, "%s", result.Status)
		fmt.Fprintf(tw, "\t%s\t%s\t%s\n",
			result.File, filepath.Base(result.Manifest), detail(result))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%s\n", Summarize(results))
}

func detail(result Result) string {
	switch result.Status {
	case StatusMismatch:
		return fmt.Sprintf("expected %s, got %s", result.Expected, result.Actual)
	case StatusError:
		return result.Message
	}
	return ""
}

// Summarize produces the one-line outcome summary for a result set.
func Summarize(results []Result) string {
	var matched, mismatched, unreadable int
	var bytes uint64
	for _, result := range results {
		switch result.Status {
		case StatusSuccess:
			matched++
		case StatusMismatch:
			mismatched++
		case StatusError:
			unreadable++
		}
		bytes += uint64(result.Size)
	}
	return fmt.Sprintf("verified %d of %d files (%s read): %d mismatched, %d unreadable",
		matched, len(results), humanize.IBytes(bytes), mismatched, unreadable)
}
