package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/entity"
	esync "github.com/sweldo/sweldo-sync/internal/sync"
)

// Directions accepted by the sync endpoint.
const (
	DirectionPush = "push"
	DirectionPull = "pull"
)

// Resolver returns the syncer for an entity name.
type Resolver func(name string) (esync.Syncer, error)

// Job is a sync run in progress.
type Job struct {
	Entity    string    `json:"entity"`
	Direction string    `json:"direction"`
	StartedAt time.Time `json:"startedAt"`
}

type jobKey struct {
	entity    string
	direction string
}

// Handler runs syncs on request and turns their progress into dashboard
// messages.
type Handler struct {
	server  *Server
	resolve Resolver
	logger  logrus.FieldLogger

	mu   sync.Mutex
	jobs map[jobKey]Job
	wg   sync.WaitGroup
}

// NewHandler creates a handler and mounts its routes on server.
func NewHandler(server *Server, resolve Resolver, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	h := &Handler{
		server:  server,
		resolve: resolve,
		logger:  logger.WithField("component", "dashboard"),
		jobs:    make(map[jobKey]Job),
	}
	server.Handle("POST /api/sync/{entity}/{direction}", h.handleSync)
	server.Handle("GET /api/status", h.handleStatus)
	return h
}

// Run starts a sync in the background. It returns false when the same
// entity and direction is already running.
func (h *Handler) Run(name, direction string) (bool, error) {
	if direction != DirectionPush && direction != DirectionPull {
		return false, errors.New("direction must be push or pull")
	}
	syncer, err := h.resolve(name)
	if err != nil {
		return false, err
	}
	if codec, err := entity.Lookup(name); err == nil {
		name = codec.Name
	}

	key := jobKey{entity: name, direction: direction}
	h.mu.Lock()
	if _, running := h.jobs[key]; running {
		h.mu.Unlock()
		return false, nil
	}
	job := Job{Entity: name, Direction: direction, StartedAt: time.Now()}
	h.jobs[key] = job
	h.wg.Add(1)
	h.mu.Unlock()

	h.server.Broadcast(Message{Type: MessageTypeSyncStarted, Entity: name, Direction: direction})
	go h.run(key, job, syncer)
	return true, nil
}

func (h *Handler) run(key jobKey, job Job, syncer esync.Syncer) {
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		delete(h.jobs, key)
		h.mu.Unlock()
	}()

	progress := func(msg string) {
		h.server.Broadcast(Message{
			Type:      MessageTypeProgress,
			Entity:    job.Entity,
			Direction: job.Direction,
			Message:   msg,
		})
	}

	ctx := h.server.Context()
	var err error
	if job.Direction == DirectionPush {
		err = syncer.SyncToRemote(ctx, progress)
	} else {
		err = syncer.SyncFromRemote(ctx, progress)
	}

	logger := h.logger.WithFields(logrus.Fields{"entity": job.Entity, "direction": job.Direction})
	if err != nil {
		logger.WithError(err).Warn("sync failed")
		h.server.Broadcast(Message{
			Type:      MessageTypeSyncFailed,
			Entity:    job.Entity,
			Direction: job.Direction,
			Error:     err.Error(),
		})
		return
	}
	logger.Info("sync complete")
	h.server.Broadcast(Message{
		Type:       MessageTypeSyncComplete,
		Entity:     job.Entity,
		Direction:  job.Direction,
		DurationMS: time.Since(job.StartedAt).Milliseconds(),
	})
}

// Running returns the jobs in progress ordered by entity then direction.
func (h *Handler) Running() []Job {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Job, 0, len(h.jobs))
	for _, j := range h.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Entity != out[k].Entity {
			return out[i].Entity < out[k].Entity
		}
		return out[i].Direction < out[k].Direction
	})
	return out
}

// Wait blocks until every started job has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("entity")
	direction := r.PathValue("direction")

	started, err := h.Run(name, direction)
	switch {
	case errors.Is(err, entity.ErrUnknownEntity):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case !started:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sync already running"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"running": h.Running(),
		"clients": h.server.ClientCount(),
	})
}

// Shutdown waits for running jobs up to ctx's deadline.
func (h *Handler) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
