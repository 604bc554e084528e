package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"SessionOverlay/internal/domain/models"
	domrepo "SessionOverlay/internal/domain/repository"
)

var _ domrepo.FlowEventStore = (*FileFlowEventStore)(nil)

const flowTimeLayout = "2006.01.02 15:04:05"

// FileFlowEventStore reads tab separated SYMBOL_FC_YYYY-MM-DD.csv files with
// a DATA, HORA, SINAL header. Timestamps are exchange wall-clock times.
type FileFlowEventStore struct {
	dir string
	loc *time.Location
}

func NewFileFlowEventStore(dir string, loc *time.Location) *FileFlowEventStore {
	if loc == nil {
		loc = time.UTC
	}
	return &FileFlowEventStore{dir: dir, loc: loc}
}

func (s *FileFlowEventStore) path(symbol string, day models.CivilDate) (string, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return "", fmt.Errorf("invalid flow symbol %q", symbol)
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s_FC_%s.csv", symbol, day)), nil
}

// Events returns the rows of the day in file order, nil when there is no file.
func (s *FileFlowEventStore) Events(ctx context.Context, symbol string, day models.CivilDate) ([]models.FlowEvent, error) {
	path, err := s.path(symbol, day)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open flow events: %w", err)
	}
	defer f.Close()

	events, err := s.decode(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return events, nil
}

func (s *FileFlowEventStore) decode(ctx context.Context, r io.Reader) ([]models.FlowEvent, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	dateCol, okDate := cols["DATA"]
	clockCol, okClock := cols["HORA"]
	signalCol, okSignal := cols["SINAL"]
	if !okDate || !okClock || !okSignal {
		return nil, fmt.Errorf("header %v lacks DATA, HORA or SINAL", header)
	}
	width := max(dateCol, clockCol, signalCol) + 1

	var out []models.FlowEvent
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) < width {
			return nil, fmt.Errorf("line %d: %d fields", line, len(rec))
		}
		at, err := time.ParseInLocation(flowTimeLayout, strings.TrimSpace(rec[dateCol])+" "+strings.TrimSpace(rec[clockCol]), s.loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, models.FlowEvent{At: at, Signal: models.FlowSignal(strings.TrimSpace(rec[signalCol]))})
	}
}
