// Package schema defines the document-oriented storage format shared by the
// local file store and the remote document store.
//
// # Overview
//
// Every business entity (attendance, loans, leaves, ...) is persisted as a set
// of Monthly Documents: all records for one subject (usually an employee) in
// one calendar month. A few entities (employees, roles, settings, holidays)
// keep one document per subject with no month component.
//
// # Identity
//
// Documents are located without a secondary index. The document id and the
// local file name are both derived from the group key:
//
//	DocID("EMP001", 2024, 1)                  -> "EMP001_2024_1"
//	MonthlyFileName(2024, 1, "attendance", ".json") -> "2024_1_attendance.json"
//	BackupFileName(2024, 1, "attendance", ".json")  -> "2024_1_attendance_backup.json"
//
// Months are never zero padded.
//
// # Document Layout
//
// A document carries a meta block and one entity-specific records map:
//
//	{
//	  "meta": {
//	    "subjectId": "EMP001",
//	    "year": 2024,
//	    "month": 1,
//	    "lastModified": "2024-01-31T08:00:00Z"
//	  },
//	  "days": {
//	    "1": {"timeIn": "09:00", "timeOut": "17:00", "schedule": null}
//	  }
//	}
//
// The records field name ("days" above) belongs to the entity codec, so the
// helpers in this package take it as a parameter.
//
// # Design Principles
//
//   - Flat per-record payloads, last-write-wins per record key
//   - lastModified strictly increases on every write
//   - Files are written atomically (temp file + rename)
//   - Missing files mean "no data yet", never an error for readers that ask
//     for everything
package schema
