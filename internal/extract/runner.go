// Package extract wires metadata discovery, cursor state and the
// replication engines into a full extraction run across entities.
package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/aptemsync/internal/config"
	"github.com/dbsmedya/aptemsync/internal/logger"
	"github.com/dbsmedya/aptemsync/internal/metadata"
	"github.com/dbsmedya/aptemsync/internal/replicate"
	"github.com/dbsmedya/aptemsync/internal/state"
)

// MetadataFetcher retrieves the tenant's $metadata XML document.
type MetadataFetcher interface {
	FetchMetadata(ctx context.Context) (string, error)
}

// Emitter consumes extracted records per entity.
type Emitter interface {
	Emit(entity string, record map[string]interface{}) error
}

// Result summarizes one extraction run.
type Result struct {
	RunID    string
	Entities int
	Records  int64
	Duration time.Duration
}

// Runner owns one extraction run: discover entities, then drive one
// replication engine per entity. Entity streams are independent, so they
// may be fanned out across workers; each individual stream stays strictly
// sequential.
type Runner struct {
	cfg     *config.Config
	fetcher interface {
		MetadataFetcher
		replicate.PageFetcher
	}
	store state.Store
	log   *logger.Logger
	emit  Emitter
}

// NewRunner assembles a runner from its collaborators.
func NewRunner(
	cfg *config.Config,
	fetcher interface {
		MetadataFetcher
		replicate.PageFetcher
	},
	store state.Store,
	log *logger.Logger,
	emit Emitter,
) *Runner {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Runner{cfg: cfg, fetcher: fetcher, store: store, log: log, emit: emit}
}

// Discover fetches and parses the metadata document.
func (r *Runner) Discover(ctx context.Context) ([]metadata.DiscoveredEntity, error) {
	doc, err := r.fetcher.FetchMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return metadata.Discover(doc)
}

// Run extracts every discovered entity not excluded by configuration.
// concurrency bounds how many entity streams run at once; values below 1
// mean sequential. only, when non-empty, restricts the run to the named
// collections.
func (r *Runner) Run(ctx context.Context, concurrency int, only []string) (*Result, error) {
	entities, err := r.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	selected := r.selectEntities(entities, only)

	runID := uuid.New().String()
	log := r.log.WithRun(runID)
	log.Infof("Starting extraction run: %d of %d discovered entities selected",
		len(selected), len(entities))

	startTime := time.Now()

	var (
		mu       sync.Mutex
		records  int64
		firstErr error
	)

	if concurrency < 1 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan metadata.DiscoveredEntity)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range work {
				n, err := r.runEntity(runCtx, log, entity)
				mu.Lock()
				records += n
				if err != nil && firstErr == nil {
					firstErr = err
					cancel() // a fatal error aborts the run
				}
				mu.Unlock()
			}
		}()
	}

	for _, entity := range selected {
		select {
		case <-runCtx.Done():
		case work <- entity:
			continue
		}
		break
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:    runID,
		Entities: len(selected),
		Records:  records,
		Duration: time.Since(startTime),
	}
	log.Infof("Extraction run complete: %d entities, %d records, duration: %s",
		result.Entities, result.Records, result.Duration)
	return result, nil
}

// runEntity drives one entity's engine, feeding parent records and any
// selected embedded collections to the emitter.
func (r *Runner) runEntity(ctx context.Context, log *logger.Logger, entity metadata.DiscoveredEntity) (int64, error) {
	entityCfg := r.cfg.GetEntity(entity.Name)

	// Only embedded collections that actually exist on the entity are
	// expanded and unpacked.
	var unpackers []*replicate.EmbeddedEngine
	var expand []string
	for _, embedded := range metadata.EmbeddedEntities(entity) {
		if !containsString(entityCfg.Children, embedded.CollectionName) {
			continue
		}
		expand = append(expand, embedded.CollectionName)
		unpackers = append(unpackers, replicate.NewEmbeddedEngine(embedded, entity.PrimaryKeys))
	}

	engine := replicate.NewEngine(entity, r.fetcher, r.store, log, replicate.Options{
		PageSize:  entityCfg.PageSize,
		Columns:   entityCfg.Columns,
		Expand:    expand,
		StartDate: r.cfg.StartDate,
	})

	var count int64
	handler := func(record map[string]interface{}) error {
		if err := r.emit.Emit(entity.Name, record); err != nil {
			return err
		}
		count++

		for _, unpacker := range unpackers {
			for _, child := range unpacker.Unpack(record) {
				if err := r.emit.Emit(unpacker.CollectionName(), child); err != nil {
					return err
				}
				count++
			}
		}
		return nil
	}

	return count, engine.Run(ctx, handler)
}

// selectEntities filters discovered entities by the exclusion list and the
// optional allow list.
func (r *Runner) selectEntities(entities []metadata.DiscoveredEntity, only []string) []metadata.DiscoveredEntity {
	var out []metadata.DiscoveredEntity
	for _, e := range entities {
		if r.cfg.IsExcluded(e.Name) {
			continue
		}
		if len(only) > 0 && !containsString(only, e.Name) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
