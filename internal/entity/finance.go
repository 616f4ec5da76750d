package entity

var deductionFields = []Field{
	{Name: "type", Kind: String, Default: ""},
	{Name: "amount", Kind: Money, Default: 0.0},
}

// Loan holds employee loans, filed under the month the loan was granted.
var Loan = register(&Codec{
	Name:         "loan",
	Collection:   "loans",
	Area:         "loans",
	FileEntity:   "loan",
	RecordsField: "loans",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "employeeId", Kind: String, Default: ""},
		{Name: "date", Kind: Date, Default: nil},
		{Name: "amount", Kind: Money, Default: 0.0},
		{Name: "type", Kind: String, Default: "Personal"},
		{Name: "status", Kind: String, Default: "Pending"},
		{Name: "interestRate", Kind: Number, Default: 0.0},
		{Name: "term", Kind: Number, Default: 0.0},
		{Name: "monthlyPayment", Kind: Money, Default: 0.0},
		{Name: "remainingBalance", Kind: Money, Default: 0.0},
		{Name: "deductions", Kind: Any, Default: nil},
	},
	PeriodField: "date",
	LegacyColumns: []string{
		"id", "employeeId", "date", "amount", "type", "status",
		"interestRate", "term", "monthlyPayment", "remainingBalance", "deductions",
	},
	KeyColumn: "id",
	IDField:   "id",
})

// CashAdvance holds cash advances.
var CashAdvance = register(&Codec{
	Name:         "cashAdvance",
	Collection:   "cash_advances",
	Area:         "cashAdvances",
	FileEntity:   "cash_advance",
	RecordsField: "advances",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "employeeId", Kind: String, Default: ""},
		{Name: "date", Kind: Date, Default: nil},
		{Name: "amount", Kind: Money, Default: 0.0},
		{Name: "reason", Kind: String, Default: ""},
		{Name: "approvalStatus", Kind: String, Default: "Pending"},
		{Name: "status", Kind: String, Default: "Unpaid"},
		{Name: "paymentSchedule", Kind: String, Default: "One-time"},
		{Name: "installmentDetails", Kind: Any, Default: nil},
		{Name: "remainingUnpaid", Kind: Money, Default: 0.0},
	},
	PeriodField: "date",
	LegacyColumns: []string{
		"id", "employeeId", "date", "amount", "reason", "approvalStatus",
		"status", "paymentSchedule", "installmentDetails", "remainingUnpaid",
	},
	KeyColumn: "id",
	IDField:   "id",
})

// Shorts holds cash shortages charged to an employee.
var Shorts = register(&Codec{
	Name:         "shorts",
	Collection:   "shorts",
	Area:         "shorts",
	FileEntity:   "shorts",
	RecordsField: "shorts",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "employeeId", Kind: String, Default: ""},
		{Name: "date", Kind: Date, Default: nil},
		{Name: "amount", Kind: Money, Default: 0.0},
		{Name: "reason", Kind: String, Default: ""},
		{Name: "status", Kind: String, Default: "Unpaid"},
		{Name: "remainingUnpaid", Kind: Money, Default: 0.0},
	},
	PeriodField:   "date",
	LegacyColumns: []string{"id", "employeeId", "date", "amount", "reason", "status", "remainingUnpaid"},
	KeyColumn:     "id",
	IDField:       "id",
})

// Payroll holds generated payroll summaries, filed under the month the pay
// period starts.
var Payroll = register(&Codec{
	Name:         "payroll",
	Collection:   "payrolls",
	Area:         "payrolls",
	FileEntity:   "payroll",
	RecordsField: "payrolls",
	Grouping:     Monthly,
	Fields: []Field{
		{Name: "id", Kind: String, Default: ""},
		{Name: "employeeId", Kind: String, Default: ""},
		{Name: "employeeName", Kind: String, Default: ""},
		{Name: "startDate", Kind: Date, Default: nil},
		{Name: "endDate", Kind: Date, Default: nil},
		{Name: "dailyRate", Kind: Money, Default: 0.0},
		{Name: "basicPay", Kind: Money, Default: 0.0},
		{Name: "overtime", Kind: Money, Default: 0.0},
		{Name: "holidayBonus", Kind: Money, Default: 0.0},
		{Name: "undertimeDeduction", Kind: Money, Default: 0.0},
		{Name: "lateDeduction", Kind: Money, Default: 0.0},
		{Name: "grossPay", Kind: Money, Default: 0.0},
		{Name: "deductions", Kind: List, Default: nil, Of: deductionFields},
		{Name: "netPay", Kind: Money, Default: 0.0},
		{Name: "daysWorked", Kind: Number, Default: 0.0},
		{Name: "absences", Kind: Number, Default: 0.0},
		{Name: "paymentDate", Kind: Date, Default: nil},
		{Name: "generatedAt", Kind: DateTime, Default: nil},
	},
	PeriodField: "startDate",
	LegacyColumns: []string{
		"id", "employeeId", "employeeName", "startDate", "endDate", "dailyRate",
		"basicPay", "overtime", "holidayBonus", "undertimeDeduction", "lateDeduction",
		"grossPay", "deductions", "netPay", "daysWorked", "absences", "paymentDate", "generatedAt",
	},
	KeyColumn: "id",
	IDField:   "id",
})
