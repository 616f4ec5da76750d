package entity

// Attendance holds time-in/time-out per day.
var Attendance = register(&Codec{
	Name:         "attendance",
	Collection:   "attendances",
	Area:         "attendances",
	FileEntity:   "attendance",
	RecordsField: "days",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "timeIn", Kind: String, Default: ""},
		{Name: "timeOut", Kind: String, Default: ""},
		{Name: "schedule", Kind: Any, Default: nil},
	},
	LegacyColumns: []string{"day", "timeIn", "timeOut", "schedule"},
	KeyColumn:     "day",
	NumericKey:    true,
})

// Compensation holds the computed pay for each day.
var Compensation = register(&Codec{
	Name:         "compensation",
	Collection:   "compensations",
	Area:         "compensations",
	FileEntity:   "compensation",
	RecordsField: "days",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "dayType", Kind: String, Default: "Regular"},
		{Name: "dailyRate", Kind: Money, Default: 0.0},
		{Name: "hoursWorked", Kind: Number, Default: 0.0},
		{Name: "overtimeMinutes", Kind: Number, Default: 0.0},
		{Name: "overtimePay", Kind: Money, Default: 0.0},
		{Name: "undertimeMinutes", Kind: Number, Default: 0.0},
		{Name: "undertimeDeduction", Kind: Money, Default: 0.0},
		{Name: "lateMinutes", Kind: Number, Default: 0.0},
		{Name: "lateDeduction", Kind: Money, Default: 0.0},
		{Name: "holidayBonus", Kind: Money, Default: 0.0},
		{Name: "leaveType", Kind: String, Default: "None"},
		{Name: "leavePay", Kind: Money, Default: 0.0},
		{Name: "grossPay", Kind: Money, Default: 0.0},
		{Name: "deductions", Kind: Money, Default: 0.0},
		{Name: "netPay", Kind: Money, Default: 0.0},
		{Name: "manualOverride", Kind: Bool, Default: false},
		{Name: "notes", Kind: String, Default: ""},
	},
	LegacyColumns: []string{
		"day", "dayType", "dailyRate", "hoursWorked",
		"overtimeMinutes", "overtimePay", "undertimeMinutes", "undertimeDeduction",
		"lateMinutes", "lateDeduction", "holidayBonus", "leaveType", "leavePay",
		"grossPay", "deductions", "netPay", "manualOverride", "notes",
	},
	KeyColumn:  "day",
	NumericKey: true,
})

// MissingTime records days where a time-in or time-out was never logged.
var MissingTime = register(&Codec{
	Name:         "missingTime",
	Collection:   "missing_time_logs",
	Area:         "missing_time",
	FileEntity:   "missing_time",
	RecordsField: "logs",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "employeeId", Kind: String, Default: ""},
		{Name: "employeeName", Kind: String, Default: ""},
		{Name: "day", Kind: String, Default: ""},
		{Name: "missingType", Kind: String, Default: "timeOut"},
		{Name: "employmentType", Kind: String, Default: ""},
		{Name: "createdAt", Kind: DateTime, Default: nil},
	},
	LegacyColumns: []string{"id", "employeeId", "employeeName", "day", "missingType", "employmentType", "createdAt"},
	KeyColumn:     "id",
	IDField:       "id",
})

// Leave holds leave requests, filed under the month they start.
var Leave = register(&Codec{
	Name:         "leave",
	Collection:   "leaves",
	Area:         "leaves",
	FileEntity:   "leave",
	RecordsField: "leaves",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "employeeId", Kind: String, Default: ""},
		{Name: "startDate", Kind: Date, Default: nil},
		{Name: "endDate", Kind: Date, Default: nil},
		{Name: "type", Kind: String, Default: "Vacation"},
		{Name: "status", Kind: String, Default: "Pending"},
		{Name: "reason", Kind: String, Default: ""},
	},
	PeriodField:   "startDate",
	LegacyColumns: []string{"id", "employeeId", "startDate", "endDate", "type", "status", "reason"},
	KeyColumn:     "id",
	IDField:       "id",
})
