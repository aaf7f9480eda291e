package prisma

// IdentificationRecorder accepts per-database identified counts.
type IdentificationRecorder interface {
	RecordIdentified(database string, count int) error
}

// ScreeningRecorder accepts the screened total.
type ScreeningRecorder interface {
	RecordScreened(count int) error
}

// ExclusionRecorder accepts exclusions grouped by reason.
type ExclusionRecorder interface {
	RecordExcluded(count int, reason string) error
}

// InclusionRecorder accepts the final included total.
type InclusionRecorder interface {
	SetIncluded(total int, bySource Tally) error
}

// FlowRecorder is the full set of flow capabilities an orchestrator needs.
type FlowRecorder interface {
	IdentificationRecorder
	ScreeningRecorder
	ExclusionRecorder
	InclusionRecorder
	Summary() FlowSummary
}

// DecisionLogger records one screening decision per record.
type DecisionLogger interface {
	AddEntry(recordID, database string, decision Decision, opts ...EntryOption) error
}

var (
	_ FlowRecorder   = (*FlowTracker)(nil)
	_ DecisionLogger = (*ScreeningLog)(nil)
)
