package memory

import (
	"finance_ledger/internal/repository"
)

var (
	_ repository.LedgerStore             = (*Store)(nil)
	_ repository.AccountRepository       = (*AccountRepository)(nil)
	_ repository.HoldingRepository       = (*HoldingRepository)(nil)
	_ repository.RecordRepository        = (*RecordRepository)(nil)
	_ repository.AutoPaymentRepository   = (*AutoPaymentRepository)(nil)
	_ repository.AutoIncomeRepository    = (*AutoIncomeRepository)(nil)
	_ repository.ScheduledTaskRepository = (*ScheduledTaskRepository)(nil)
	_ repository.ExecutionLogRepository  = (*ExecutionLogRepository)(nil)
)
