package labeler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
)

// DefaultWorkers bounds how many files LabelDir reads concurrently.
const DefaultWorkers = 4

// Labeler reads raw stream files from disk and labels them.
type Labeler struct {
	workers int
	logger  zerolog.Logger
}

// New creates a Labeler reading up to workers files at once.
func New(workers int) *Labeler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Labeler{
		workers: workers,
		logger:  logging.WithComponent("labeler"),
	}
}

// ReadStream decodes a single-column CSV raw stream. Unquoted sample lists
// that the CSV reader splits on commas are joined back together.
func ReadStream(source string, r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}

		row, err := ParseRow(strings.Join(record, ","))
		if err != nil {
			return nil, &eeg.MalformedStreamError{Source: source, Position: len(rows), Reason: err.Error()}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// LabelFile reads and labels one raw stream file.
func (l *Labeler) LabelFile(path string) (eeg.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return eeg.Dataset{}, fmt.Errorf("open stream: %w", err)
	}
	defer f.Close()

	source := filepath.Base(path)
	rows, err := ReadStream(source, f)
	if err != nil {
		return eeg.Dataset{}, err
	}

	ds, err := Label(source, rows)
	if err != nil {
		return eeg.Dataset{}, err
	}

	l.logger.Info().
		Str("source", source).
		Int("rows", len(rows)).
		Int("windows", ds.Len()).
		Msg("Stream labeled")
	return ds, nil
}

// StreamFiles lists the *.csv files of dir in directory enumeration order.
func StreamFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// LabelDir labels every stream file in dir and concatenates the per-file
// datasets in enumeration order. Files are labeled independently, so a run
// must finish inside the file its marker appears in. The first failing file
// in enumeration order aborts the whole batch.
func (l *Labeler) LabelDir(ctx context.Context, dir string) (eeg.Dataset, error) {
	files, err := StreamFiles(dir)
	if err != nil {
		return eeg.Dataset{}, err
	}
	if len(files) == 0 {
		return eeg.Dataset{}, fmt.Errorf("no stream files in %s", dir)
	}

	results := make([]eeg.Dataset, len(files))
	errs := make([]error, len(files))

	p := pool.New().WithMaxGoroutines(l.workers)
	for i, path := range files {
		p.Go(func() {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = l.LabelFile(path)
		})
	}
	p.Wait()

	var ds eeg.Dataset
	for i := range files {
		if errs[i] != nil {
			return eeg.Dataset{}, errs[i]
		}
		ds.Append(results[i])
	}

	l.logger.Info().
		Str("dir", dir).
		Int("files", len(files)).
		Int("windows", ds.Len()).
		Msg("Dataset assembled")
	return ds, nil
}

// DatasetHeader is the column layout of the labeled dataset output.
var DatasetHeader = []string{"ch1", "ch2", "ch3", "ch4", "ch5", "ch6", "Class"}

// WriteDataset writes one CSV row per timestep: six channel values and the
// trailing integer class.
func WriteDataset(w io.Writer, ds eeg.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DatasetHeader); err != nil {
		return err
	}

	record := make([]string, eeg.Channels+1)
	for _, win := range ds.Windows {
		class := strconv.Itoa(int(win.Class))
		for _, s := range win.Samples {
			for c, v := range s {
				record[c] = strconv.FormatFloat(v, 'g', -1, 64)
			}
			record[eeg.Channels] = class
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteStream writes windows back out in the raw stream format: a marker row
// followed by WindowLength sample rows per window. Label(ReadStream(...))
// recovers the same windows.
func WriteStream(w io.Writer, windows []eeg.Window) error {
	cw := csv.NewWriter(w)
	for _, win := range windows {
		if err := cw.Write([]string{win.Class.String()}); err != nil {
			return err
		}
		for _, s := range win.Samples {
			if err := cw.Write([]string{FormatSample(s)}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
