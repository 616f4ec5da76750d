// Package daemon pushes local changes to the remote store as they happen.
//
// # Architecture
//
//   - FileWatcher: fsnotify over the database root, its entity areas and
//     their subject folders. New areas and subject folders are watched as
//     they appear.
//   - Daemon: maps document events to entities, debounces them per entity
//     and runs one push per quiet entity.
//
// Only current-format documents count. Legacy .csv files, ledger
// (_backup.json) files and the .tmp files of atomic writes are ignored, so
// a pull or a migration running next to the daemon does not trigger
// pushes for ledger writes.
//
// # File Watching
//
//	fw, err := daemon.NewFileWatcher()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fw.Stop()
//
//	if err := fw.Start("/data/sweldo"); err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range fw.Events() {
//	    fmt.Println(ev.Op, ev.Entity, ev.Path)
//	}
//
// # Debouncing
//
// A push is a full SyncToRemote of the entity, so a burst of writes (a
// payroll run touching every employee) must collapse into one push. Each
// event refreshes the entity's timestamp; the entity is pushed once it has
// been quiet for DebounceInterval.
//
// # Errors
//
// Push failures are logged and the daemon keeps running. The next change
// to the entity retries the push.
package daemon
