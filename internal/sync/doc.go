// Package sync pushes local entity records to the remote document store and
// pulls them back.
//
// # Overview
//
// One generic Adapter serves every entity. It is parameterized by an
// entity.Codec (collection, records field, field schema), a LocalModel (the
// on-disk documents) and a docstore.Store (the remote side):
//
//	LocalModel.LoadAll ─▶ group by (subject, year, month) ─▶ batch.Process
//	                                                          │
//	     GetDocument ◀──────── merge (last write wins per key) ┘
//	     SetDocument ◀──────── full document, lastModified refreshed
//	     ledger.AppendBackup ◀ fields that changed
//
// A pull lists the collection, converts every record back to local form,
// and calls LocalModel.SaveOrUpdate once per document.
//
// # Usage
//
//	store, err := docstore.OpenSQLite(ctx, ".sweldo/remote.db", nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	reg := sync.NewRegistry("/data/sweldo", store, nil)
//	adapter, err := reg.Get("attendance")
//	if err != nil {
//	    return err
//	}
//	err = adapter.SyncToRemote(ctx, func(msg string) { fmt.Println(msg) })
//
// # Progress
//
// Progress lines are plain strings:
//
//	Synced EMP001 2024-1 (1/12)
//	Processed batch 1 of 3
//	Saved EMP001 2024-1 (1/12)
//	No local attendance records to sync
//	No attendance data found in remote store
//
// # Error Handling
//
// Sync fails fast. The first error aborts the call and is returned as
//
//	failed to sync attendance to remote store: write EMP001_2024_1: <cause>
//
// Documents written before the failure stay written; there is no rollback.
// Ledger failures are logged and never fail a sync.
//
// # Concurrency
//
// A push writes up to BatchSize documents concurrently. Two concurrent
// calls on the same adapter are not serialised; callers that need that
// (the dashboard) guard it themselves. Remote writes are last write wins,
// so two processes pushing the same document can drop one side's change.
package sync
