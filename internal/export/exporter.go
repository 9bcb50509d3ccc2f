package export

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/ledger"
	"kharcha/internal/log"
)

// Exporter renders exports and caches them per snapshot generation, so
// repeated downloads of an unchanged ledger are served from memory.
type Exporter struct {
	cache *cache.LRUCache[[]byte]
}

// NewExporter keeps at most a few rendered files, each for at most ttl.
func NewExporter(ttl time.Duration) *Exporter {
	return &Exporter{cache: cache.NewLRUCache[[]byte](8, ttl)}
}

// Cache exposes the underlying cache for registration with a cleanup manager.
func (e *Exporter) Cache() *cache.LRUCache[[]byte] {
	return e.cache
}

// Export returns l rendered in format f. generation identifies l: callers must
// pass a new generation whenever the ledger changes.
func (e *Exporter) Export(ctx context.Context, generation uint64, l ledger.Ledger, f Format) ([]byte, error) {
	key := strconv.FormatUint(generation, 10) + ":" + string(f)
	if b, ok := e.cache.Get(key); ok {
		return b, nil
	}

	start := time.Now()
	b, err := Render(f, Rows(l))
	if err != nil {
		slog.ErrorContext(ctx, "Export failed",
			log.FieldComponent, log.ComponentExport,
			log.FieldOperation, log.OpExport,
			"format", f,
			log.FieldError, err)
		return nil, err
	}
	e.cache.Set(key, b)

	slog.InfoContext(ctx, "Export rendered",
		log.FieldComponent, log.ComponentExport,
		log.FieldOperation, log.OpExport,
		log.FieldGeneration, generation,
		"format", f,
		"bytes", len(b),
		log.FieldDuration, time.Since(start).Milliseconds())
	return b, nil
}
