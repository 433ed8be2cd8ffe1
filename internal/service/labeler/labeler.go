// Package labeler turns raw interleaved marker/sample streams into labeled
// fixed-length windows.
//
// A raw stream is a sequence of rows. A row is either a marker naming one of
// the four actions ("Left Click", ...) or a bracketed list of channel
// readings. Every marker is followed by exactly eeg.WindowLength sample rows,
// which form one window labeled with the marker's class:
//
//	Left Click
//	[12.1, 40.2, 33.0, 18.7, 90.0, 71.3]   <- timestep 1
//	...                                     <- timesteps 2..99
//	[15.0, 41.9, 30.2, 17.1, 88.4, 70.0]   <- timestep 100
//	Right Click
//	...
//
// Marker rows never appear in the output. Short runs, orphan sample rows and
// rows with the wrong channel count are rejected rather than skipped.
package labeler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/metrics"
)

// Row is one line of a raw stream.
type Row struct {
	// Marker is non-zero for marker rows.
	Marker eeg.Action
	// Values holds the channel readings of a sample row.
	Values []float64
}

// IsMarker reports whether the row is a marker row.
func (r Row) IsMarker() bool {
	return r.Marker != 0
}

// MarkerRow builds a marker row for a.
func MarkerRow(a eeg.Action) Row {
	return Row{Marker: a}
}

// SampleRow builds a sample row from channel readings.
func SampleRow(values ...float64) Row {
	return Row{Values: values}
}

// ParseRow decodes one raw stream cell: an exact marker name or a bracketed
// list of numbers. "nan" entries decode to NaN.
func ParseRow(s string) (Row, error) {
	s = strings.TrimSpace(s)
	if a, ok := eeg.ParseMarker(s); ok {
		return MarkerRow(a), nil
	}

	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return Row{}, fmt.Errorf("row %q is neither a marker nor a sample list", truncate(s, 40))
	}

	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner == "" {
		return Row{Values: []float64{}}, nil
	}

	parts := strings.Split(inner, ",")
	values := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Row{}, fmt.Errorf("invalid reading %q: %w", strings.TrimSpace(p), err)
		}
		values = append(values, v)
	}
	return Row{Values: values}, nil
}

// FormatSample renders a sample in the bracketed list form ParseRow accepts.
func FormatSample(s eeg.Sample) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// Label segments rows into windows. source names the stream in errors and
// on the emitted windows. rows is not modified.
func Label(source string, rows []Row) (eeg.Dataset, error) {
	var ds eeg.Dataset

	i := 0
	for i < len(rows) {
		marker := rows[i]
		if !marker.IsMarker() {
			return eeg.Dataset{}, &eeg.MalformedStreamError{
				Source:   source,
				Position: i,
				Reason:   "sample row outside a labeled run",
			}
		}

		w := eeg.Window{Class: marker.Marker, Source: source, Offset: i}
		for k := 0; k < eeg.WindowLength; k++ {
			j := i + 1 + k
			if j >= len(rows) {
				return eeg.Dataset{}, &eeg.MalformedStreamError{
					Source:   source,
					Position: i,
					Reason: fmt.Sprintf("marker %q followed by %d sample rows before end of stream, need %d",
						marker.Marker, k, eeg.WindowLength),
				}
			}
			row := rows[j]
			if row.IsMarker() {
				return eeg.Dataset{}, &eeg.MalformedStreamError{
					Source:   source,
					Position: i,
					Reason: fmt.Sprintf("marker %q followed by %d sample rows before next marker at row %d, need %d",
						marker.Marker, k, j, eeg.WindowLength),
				}
			}
			if len(row.Values) != eeg.Channels {
				return eeg.Dataset{}, &eeg.ChannelCountError{Source: source, Position: j, Got: len(row.Values)}
			}
			copy(w.Samples[k][:], row.Values)
		}

		log.Debug().
			Str("source", source).
			Str("class", marker.Marker.String()).
			Int("row", i).
			Msg("Found class marker")

		ds.Windows = append(ds.Windows, w)
		metrics.DefaultMetrics.RecordWindowLabeled(marker.Marker.String())
		i += 1 + eeg.WindowLength
	}

	return ds, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
