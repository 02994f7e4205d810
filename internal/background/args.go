package background

type TriageArgs struct {
	TicketID string `json:"ticket_id"`
}

func (t TriageArgs) Kind() string {
	return "triage"
}

type MineQueueArgs struct{}

func (m MineQueueArgs) Kind() string {
	return "mine_queue"
}

type LedgerRetentionArgs struct {
	RetentionDays int `json:"retention_days"`
}

func (l LedgerRetentionArgs) Kind() string {
	return "ledger_retention"
}

type QueueMaintenanceArgs struct{}

func (q QueueMaintenanceArgs) Kind() string {
	return "queue_maintenance"
}
