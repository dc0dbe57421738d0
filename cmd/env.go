package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dining-cli/internal/aggregate"
	"github.com/sells-group/dining-cli/internal/dbscan"
	"github.com/sells-group/dining-cli/internal/fetcher"
	"github.com/sells-group/dining-cli/internal/loader"
	"github.com/sells-group/dining-cli/internal/pipeline"
	"github.com/sells-group/dining-cli/internal/store"
)

// newLoader builds the record loader with a rate-limited, non-retrying
// remote fetcher. A failed remote fetch falls back to the archive.
func newLoader() *loader.Loader {
	remote := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:           cfg.FetchTimeout(),
		MaxRetries:        1,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
	})
	return loader.New(remote)
}

// newPipeline builds the pipeline with the configured result cache.
func newPipeline() *pipeline.Pipeline {
	return pipeline.New(newLoader(), pipeline.NewCache(cfg.Cache.MaxEntries, cfg.CacheTTL()))
}

// initStore opens the configured run store. It returns nil when no driver
// is configured.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// sourceFromFlags applies the --remote override to the configured source.
func sourceFromFlags(remote bool) loader.Source {
	src := cfg.LoaderSource()
	if remote {
		src.Remote = true
	}
	return src
}

// pipelineConfig applies a --metric override to the configured pipeline settings.
func pipelineConfig(metrics []string) (pipeline.Config, error) {
	pc := cfg.Pipeline()
	if len(metrics) == 0 {
		return pc, nil
	}
	pc.Metrics = nil
	for _, m := range metrics {
		parsed, err := dbscan.ParseMetric(m)
		if err != nil {
			return pc, err
		}
		pc.Metrics = append(pc.Metrics, parsed)
	}
	return pc, nil
}

func parseColorsFlag(s string) ([]aggregate.Color, error) {
	return aggregate.ParseColors(strings.TrimSpace(s))
}
