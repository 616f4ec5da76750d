package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/sweldo/sweldo-sync/internal/entity"
	"github.com/sweldo/sweldo-sync/internal/schema"
)

// EventOp is what happened to a document.
type EventOp int

const (
	OpCreate EventOp = iota
	OpModify
	// OpDelete covers removal and renaming away; the new name of a rename
	// arrives as OpCreate.
	OpDelete
)

var opNames = [...]string{OpCreate: "create", OpModify: "modify", OpDelete: "delete"}

func (op EventOp) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "unknown"
	}
	return opNames[op]
}

// FileEvent is a change to one entity document.
type FileEvent struct {
	Path   string
	Entity string // codec name
	Op     EventOp
}

// FileWatcher reports changes to entity documents under a database root.
//
// Layout watched:
//
//	{root}/{area}/                 single documents, new subject folders
//	{root}/{area}/{subject}/       monthly documents
//
// Areas and subject folders created after Start are added as they appear.
type FileWatcher struct {
	fsw  *fsnotify.Watcher
	root string

	out  chan FileEvent
	errs chan error
	quit chan struct{}
	loop sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewFileWatcher returns an idle watcher; call Start to begin.
func NewFileWatcher() (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		fsw:  fsw,
		out:  make(chan FileEvent, 100),
		errs: make(chan error, 10),
		quit: make(chan struct{}),
	}, nil
}

// Start watches root plus every existing entity area and subject folder.
func (fw *FileWatcher) Start(root string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return fmt.Errorf("watcher already running on %s", fw.root)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	fw.root = abs

	if err := fw.fsw.Add(abs); err != nil {
		return fmt.Errorf("failed to watch database root %s: %w", abs, err)
	}
	for _, codec := range entity.All() {
		if err := fw.watchArea(filepath.Join(abs, codec.Area)); err != nil {
			return err
		}
	}

	fw.running = true
	fw.loop.Add(1)
	go fw.run()
	return nil
}

// watchArea adds an area folder and its subject folders. A missing area is
// skipped.
func (fw *FileWatcher) watchArea(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	dirs := []string{dir}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	for _, d := range dirs {
		if err := fw.fsw.Add(d); err != nil {
			return fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	return nil
}

// Stop ends watching and closes the Events and Errors channels once the
// event loop has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	if !wasRunning {
		return fw.fsw.Close()
	}

	close(fw.quit)
	err := fw.fsw.Close()
	fw.loop.Wait()
	close(fw.out)
	close(fw.errs)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Events delivers document changes. Closed by Stop.
func (fw *FileWatcher) Events() <-chan FileEvent { return fw.out }

// Errors delivers watch failures. Closed by Stop.
func (fw *FileWatcher) Errors() <-chan error { return fw.errs }

// IsRunning reports whether Start has been called and Stop has not.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) run() {
	defer fw.loop.Done()
	for {
		select {
		case <-fw.quit:
			return

		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				fw.watchNewDir(ev.Name)
			}
			fe, keep := fw.convertEvent(ev)
			if keep && !fw.emit(fe) {
				return
			}

		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			select {
			case fw.errs <- err:
			case <-fw.quit:
				return
			}
		}
	}
}

// emit blocks until fe is delivered; false means the watcher is stopping.
func (fw *FileWatcher) emit(fe FileEvent) bool {
	select {
	case fw.out <- fe:
		return true
	case <-fw.quit:
		return false
	}
}

// watchNewDir adds a watch for an area or subject folder created after
// Start. Failures are reported on Errors without blocking.
func (fw *FileWatcher) watchNewDir(path string) {
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return
	}
	parts, ok := fw.split(path)
	if !ok || len(parts) > 2 {
		return
	}
	if _, known := entity.ByArea(parts[0]); !known {
		return
	}

	var err error
	if len(parts) == 1 {
		err = fw.watchArea(path)
	} else {
		err = fw.fsw.Add(path)
	}
	if err != nil {
		select {
		case fw.errs <- err:
		default:
		}
	}
}

// split returns path relative to the root, split into its components.
func (fw *FileWatcher) split(path string) ([]string, bool) {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, false
	}
	return strings.Split(filepath.ToSlash(rel), "/"), true
}

// convertEvent keeps only events on entity documents. Backup ledgers,
// legacy CSV files and temp files are ignored.
func (fw *FileWatcher) convertEvent(ev fsnotify.Event) (FileEvent, bool) {
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, schema.BackupSuffix+".json") {
		return FileEvent{}, false
	}
	codec, ok := fw.entityOf(ev.Name)
	if !ok {
		return FileEvent{}, false
	}

	fe := FileEvent{Path: ev.Name, Entity: codec.Name}
	switch {
	case ev.Has(fsnotify.Create):
		fe.Op = OpCreate
	case ev.Has(fsnotify.Write):
		fe.Op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		fe.Op = OpDelete
	default:
		return FileEvent{}, false
	}
	return fe, true
}

// entityOf maps a document path to its entity, checking that the path has
// the depth and file name the entity's layout expects.
func (fw *FileWatcher) entityOf(path string) (*entity.Codec, bool) {
	parts, ok := fw.split(path)
	if !ok || len(parts) < 2 {
		return nil, false
	}
	codec, ok := entity.ByArea(parts[0])
	if !ok {
		return nil, false
	}

	if codec.Grouping == entity.Single {
		return codec, len(parts) == 2
	}
	if len(parts) != 3 {
		return nil, false
	}
	fn, err := schema.ParseMonthlyFileName(parts[2])
	if err != nil || fn.Entity != codec.FileEntity {
		return nil, false
	}
	return codec, true
}
