package interfaces

// SchedulerInterface drives ping ledger persistence: Restore on start,
// periodic saves between Init and Stop, a final Persist on shutdown.
type SchedulerInterface interface {
	Init()
	Stop()
	Restore() error
	Persist() error
}
