// Package fetcher loads QC batches from files, stdin and HTTP sources. A
// source holds either a JSON batch, a JSON array of player stat lines or a
// CSV table of player stat lines.
package fetcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// IsURL reports whether src is an http(s) URL.
func IsURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Label derives a data source label from a file name or URL path.
func Label(src string) string {
	if src == "-" {
		return "stdin"
	}
	base := filepath.Base(src)
	if IsURL(src) {
		base = path.Base(strings.SplitN(strings.SplitN(src, "?", 2)[0], "#", 2)[0])
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

// Load reads one source into a batch. "-" reads from stdin. A batch without
// a data source is labeled after the source.
func Load(ctx context.Context, f Fetcher, src string, stdin io.Reader) (model.Batch, error) {
	var rc io.ReadCloser
	switch {
	case src == "-":
		rc = io.NopCloser(stdin)
	case IsURL(src):
		if f == nil {
			return model.Batch{}, eris.Errorf("fetcher: no http fetcher for %s", src)
		}
		body, err := f.Download(ctx, src)
		if err != nil {
			return model.Batch{}, eris.Wrapf(err, "fetcher: download %s", src)
		}
		rc = body
	default:
		file, err := os.Open(src)
		if err != nil {
			return model.Batch{}, eris.Wrapf(err, "fetcher: open %s", src)
		}
		rc = file
	}
	defer rc.Close() //nolint:errcheck

	var (
		b   model.Batch
		err error
	)
	if strings.EqualFold(path.Ext(strings.SplitN(src, "?", 2)[0]), ".csv") {
		b.PlayerStats, err = ReadStatCSV(ctx, rc)
	} else {
		b, err = decodeJSON(ctx, rc)
	}
	if err != nil {
		return model.Batch{}, eris.Wrapf(err, "fetcher: decode %s", src)
	}
	if b.DataSource == "" {
		b.DataSource = Label(src)
	}
	return b, nil
}

// decodeJSON accepts a batch object or a bare array of stat lines.
func decodeJSON(ctx context.Context, r io.Reader) (model.Batch, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return model.Batch{}, err
	}

	if first == '[' {
		lines, errs := DecodeJSONArray[model.PlayerStatLine](ctx, br)
		var b model.Batch
		for l := range lines {
			b.PlayerStats = append(b.PlayerStats, l)
		}
		if err := <-errs; err != nil {
			return model.Batch{}, err
		}
		return b, nil
	}

	var b model.Batch
	if err := json.NewDecoder(br).Decode(&b); err != nil {
		return model.Batch{}, eris.Wrap(err, "json: decode batch")
	}
	return b, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			return 0, eris.New("json: empty input")
		}
		if err != nil {
			return 0, eris.Wrap(err, "json: read")
		}
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c, br.UnreadByte()
	}
}
