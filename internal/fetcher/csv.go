package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

// StreamCSV reads a CSV stream and sends rows to a channel. The first row is
// the header; each data row is sent keyed by lower-cased header name.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan map[string]string, <-chan error) {
	rowCh := make(chan map[string]string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true

		header, err := reader.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read header")
			return
		}
		for i, h := range header {
			header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		}

		for line := 2; ; line++ {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrapf(err, "csv: read row %d", line)
				return
			}

			row := make(map[string]string, len(header))
			for i, field := range record {
				if i < len(header) {
					row[header[i]] = strings.TrimSpace(field)
				}
			}
			select {
			case rowCh <- row:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadStatCSV parses a table of player stat lines. Stat groups are only set
// when at least one of their columns is filled in.
func ReadStatCSV(ctx context.Context, r io.Reader) ([]model.PlayerStatLine, error) {
	rows, errs := StreamCSV(ctx, r)

	var (
		lines  []model.PlayerStatLine
		rowErr error
		n      int
	)
	for row := range rows {
		n++
		if rowErr != nil {
			continue
		}
		line, err := statLineFromRow(row)
		if err != nil {
			rowErr = eris.Wrapf(err, "csv: row %d", n+1)
			continue
		}
		lines = append(lines, line)
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if rowErr != nil {
		return nil, rowErr
	}
	return lines, nil
}

type rowParser struct {
	row map[string]string
	err error
	set bool
}

func (p *rowParser) str(col string) string { return p.row[col] }

func (p *rowParser) intVal(col string) int {
	v := p.intPtr(col)
	if v == nil {
		return 0
	}
	return *v
}

func (p *rowParser) intPtr(col string) *int {
	s := p.row[col]
	if s == "" || p.err != nil {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		p.err = eris.Errorf("column %s: %q is not an integer", col, s)
		return nil
	}
	p.set = true
	return &n
}

func (p *rowParser) floatVal(col string) float64 {
	v := p.floatPtr(col)
	if v == nil {
		return 0
	}
	return *v
}

func (p *rowParser) floatPtr(col string) *float64 {
	s := p.row[col]
	if s == "" || p.err != nil {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = eris.Errorf("column %s: %q is not a number", col, s)
		return nil
	}
	p.set = true
	return &f
}

// group resets the filled-in marker so each stat group can be tested.
func (p *rowParser) group() { p.set = false }

func statLineFromRow(row map[string]string) (model.PlayerStatLine, error) {
	p := &rowParser{row: row}
	line := model.PlayerStatLine{
		ID:       p.str("id"),
		PlayerID: p.str("player_id"),
		TeamID:   p.str("team_id"),
		GameID:   p.str("game_id"),
		Season:   p.intVal("season"),
		Scope:    model.StatScope(p.str("scope")),
		Source: model.SourceMetadata{
			URL:        p.str("url"),
			ScrapedAt:  p.str("scraped_at"),
			Confidence: p.floatPtr("confidence"),
			Provider:   model.Provider(p.str("provider")),
		},
	}

	p.group()
	batting := model.BattingStats{
		AtBats:     p.intVal("at_bats"),
		Hits:       p.intVal("hits"),
		Runs:       p.intVal("runs"),
		RBI:        p.intVal("rbi"),
		Walks:      p.intVal("walks"),
		HitByPitch: p.intVal("hit_by_pitch"),
		Strikeouts: p.intVal("strikeouts"),
		Avg:        p.floatPtr("batting_avg"),
	}
	if p.set {
		line.Batting = &batting
	}

	p.group()
	pitching := model.PitchingStats{
		InningsPitched: p.floatVal("innings_pitched"),
		EarnedRuns:     p.intVal("earned_runs"),
		ERA:            p.floatPtr("era"),
		PitchCount:     p.intPtr("pitch_count"),
		Strikes:        p.intPtr("strikes"),
	}
	if p.set {
		line.Pitching = &pitching
	}

	p.group()
	tracking := model.PitchTracking{
		Velocity:        p.floatPtr("velocity"),
		SpinRate:        p.floatPtr("spin_rate"),
		ReleaseX:        p.floatPtr("release_x"),
		ReleaseZ:        p.floatPtr("release_z"),
		HorizontalBreak: p.floatPtr("horizontal_break"),
		VerticalBreak:   p.floatPtr("vertical_break"),
		ExitVelocity:    p.floatPtr("exit_velocity"),
	}
	if p.set {
		line.Tracking = &tracking
	}

	if p.err != nil {
		return model.PlayerStatLine{}, p.err
	}
	return line, nil
}
