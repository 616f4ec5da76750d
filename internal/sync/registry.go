package sync

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sweldo/sweldo-sync/internal/docstore"
	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/ledger"
	"github.com/sweldo/sweldo-sync/internal/localstore"
)

// RegistryOptions configures every adapter built by NewRegistry.
type RegistryOptions struct {
	BatchSize        int
	LedgerMaxEntries int
	SniffDateStrings bool
	Logger           logrus.FieldLogger
}

// Registry holds one adapter per registered entity, all sharing one store.
type Registry struct {
	adapters map[string]*Adapter
	models   map[string]*localstore.FileModel
}

// NewRegistry builds adapters for every entity over the local database at
// dbRoot. opts may be nil.
func NewRegistry(dbRoot string, store docstore.Store, opts *RegistryOptions) *Registry {
	if opts == nil {
		opts = &RegistryOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &Registry{
		adapters: make(map[string]*Adapter),
		models:   make(map[string]*localstore.FileModel),
	}
	for _, base := range entity.All() {
		codec := base.WithSniffing(opts.SniffDateStrings)
		model := localstore.New(dbRoot, codec, &localstore.Options{Logger: logger})
		l := ledger.New(ledger.NewRemoteStore(store, codec), &ledger.Options{
			MaxEntries: opts.LedgerMaxEntries,
			Logger:     logger.WithField("entity", codec.Name),
		})
		r.models[codec.Name] = model
		r.adapters[codec.Name] = New(codec, model, store, &Options{
			BatchSize: opts.BatchSize,
			Ledger:    l,
			Logger:    logger,
		})
	}
	return r
}

// Get returns the adapter for an entity name or collection.
func (r *Registry) Get(name string) (*Adapter, error) {
	codec, err := entity.Lookup(name)
	if err != nil {
		return nil, err
	}
	a, ok := r.adapters[codec.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownEntity, name)
	}
	return a, nil
}

// Model returns the local model for an entity name or collection.
func (r *Registry) Model(name string) (*localstore.FileModel, error) {
	codec, err := entity.Lookup(name)
	if err != nil {
		return nil, err
	}
	return r.models[codec.Name], nil
}

// All returns every adapter ordered by entity name.
func (r *Registry) All() []*Adapter {
	out := make([]*Adapter, 0, len(r.adapters))
	for _, name := range entity.Names() {
		if a, ok := r.adapters[name]; ok {
			out = append(out, a)
		}
	}
	return out
}
