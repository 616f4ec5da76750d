// Package migrate converts legacy row-oriented CSV files into the current
// JSON document layout.
//
// Migration is additive. The legacy file is never modified or deleted; the
// JSON document is written next to it:
//
//	attendances/EMP001/2024_1_attendance.csv   ──▶  2024_1_attendance.json
//	attendances/EMP001/2024_1_attendance_backup.csv ──▶ 2024_1_attendance_backup.json
//	employees/employees.csv                    ──▶  employees/{id}.json
//
// Rows are mapped positionally onto the entity's legacy column order. Files
// that are empty, have a name that does not parse, or already have a JSON
// counterpart are skipped with a progress message, so re-running a
// migration only picks up what is left.
//
// Errors in one file are reported through the progress callback and
// collected in Result.Errors; the run moves on to the next file.
package migrate
