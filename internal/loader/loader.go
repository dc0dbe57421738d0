package loader

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dining-cli/internal/fetcher"
	"github.com/sells-group/dining-cli/internal/model"
)

// Source names reported in RecordTable.Source.
const (
	SourceArchive = "archive"
	SourceRemote  = "remote"
)

// Loader produces normalized inspection tables.
type Loader struct {
	remote fetcher.Downloader
}

// New creates a Loader. The downloader is only used for remote sources and
// may be nil when every source is an archive.
func New(remote fetcher.Downloader) *Loader {
	return &Loader{remote: remote}
}

// Load reads the source and returns a normalized table. A failing remote
// source falls back to the archive; a failing archive is returned as a
// *LoadError.
func (l *Loader) Load(ctx context.Context, src Source) (*model.RecordTable, error) {
	src = src.withDefaults()
	log := zap.L().With(zap.String("component", "loader"))

	if src.Remote && src.RemoteURL != "" {
		rows, err := l.fetchRemote(ctx, src)
		if err == nil {
			log.Info("loaded remote rows", zap.Int("rows", len(rows)))
			return normalize(rows, SourceRemote), nil
		}
		log.Warn("remote fetch failed, falling back to archive",
			zap.String("archive", src.ArchivePath),
			zap.Error(err),
		)
	}

	rows, err := readArchive(ctx, src.ArchivePath, src.ArchiveEntry)
	if err != nil {
		return nil, err
	}
	log.Info("loaded archive rows", zap.String("archive", src.ArchivePath), zap.Int("rows", len(rows)))
	return normalize(rows, SourceArchive), nil
}

// readArchive extracts entry from the ZIP at path into a scratch directory,
// decodes it and removes the scratch directory. Entries ending in .csv are
// read as CSV, everything else as JSON.
func readArchive(ctx context.Context, path, entry string) ([]rawRow, error) {
	if path == "" {
		return nil, &LoadError{Source: SourceArchive, Err: eris.New("archive path is empty")}
	}

	var rows []rawRow
	err := fetcher.WithExtractedFile(path, entry, func(extracted string) error {
		f, err := os.Open(extracted)
		if err != nil {
			return eris.Wrap(err, "loader: open extracted payload")
		}
		defer f.Close() //nolint:errcheck

		if strings.EqualFold(filepath.Ext(entry), ".csv") {
			rows, err = decodeCSV(ctx, f)
		} else {
			rows, err = decodePayload(ctx, f)
		}
		return err
	})
	if err != nil {
		return nil, &LoadError{Source: SourceArchive, Err: err}
	}
	return rows, nil
}

// fetchRemote pages through the API with $limit/$offset until an empty page.
func (l *Loader) fetchRemote(ctx context.Context, src Source) ([]rawRow, error) {
	if l.remote == nil {
		return nil, &LoadError{Source: SourceRemote, Err: eris.New("no downloader configured")}
	}

	base, err := url.Parse(src.RemoteURL)
	if err != nil {
		return nil, &LoadError{Source: SourceRemote, Err: eris.Wrap(err, "parse remote url")}
	}

	var all []rawRow
	for offset := 0; ; offset += src.PageSize {
		page, err := l.fetchPage(ctx, base, src.PageSize, offset)
		if err != nil {
			return nil, &LoadError{Source: SourceRemote, Err: err}
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		zap.L().Debug("loader: fetched page",
			zap.Int("offset", offset),
			zap.Int("rows", len(page)),
		)
	}
	return all, nil
}

func (l *Loader) fetchPage(ctx context.Context, base *url.URL, limit, offset int) ([]rawRow, error) {
	u := *base
	q := u.Query()
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	body, err := l.remote.Download(ctx, u.String())
	if err != nil {
		return nil, eris.Wrapf(err, "loader: fetch offset %d", offset)
	}
	defer body.Close() //nolint:errcheck

	rows, err := decodePayload(ctx, body)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: decode offset %d", offset)
	}
	return rows, nil
}
