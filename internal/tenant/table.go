package tenant

// Table describes how a relation participates in tenant scoping. OrgColumn
// names the column compared against the scoped organization; an empty
// OrgColumn marks a global table that is never filtered.
type Table struct {
	Name       string
	OrgColumn  string
	SoftDelete bool
}

func (t Table) Owned() bool { return t.OrgColumn != "" }

// Trashed selects which soft-deleted rows a query may see.
type Trashed int

const (
	ActiveOnly Trashed = iota
	TrashedOnly
	WithTrashed
)

func ParseTrashed(s string) Trashed {
	switch s {
	case "only":
		return TrashedOnly
	case "with":
		return WithTrashed
	}
	return ActiveOnly
}

var (
	Organizations = Table{Name: "organizations", OrgColumn: "id", SoftDelete: true}
	Users         = Table{Name: "users", OrgColumn: "org_id"}
	Roles         = Table{Name: "roles"}
	Permissions   = Table{Name: "permissions"}

	Properties = Table{Name: "properties", OrgColumn: "org_id", SoftDelete: true}
	Floors     = Table{Name: "floors", OrgColumn: "org_id"}
	Rooms      = Table{Name: "rooms", OrgColumn: "org_id", SoftDelete: true}

	Contracts       = Table{Name: "contracts", OrgColumn: "org_id"}
	ContractMembers = Table{Name: "contract_members", OrgColumn: "org_id"}

	Meters          = Table{Name: "meters", OrgColumn: "org_id"}
	MeterReadings   = Table{Name: "meter_readings", OrgColumn: "org_id"}
	AdjustmentNotes = Table{Name: "adjustment_notes", OrgColumn: "org_id"}

	Invoices     = Table{Name: "invoices", OrgColumn: "org_id"}
	InvoiceItems = Table{Name: "invoice_items", OrgColumn: "org_id"}

	Tickets      = Table{Name: "tickets", OrgColumn: "org_id"}
	TicketEvents = Table{Name: "ticket_events", OrgColumn: "org_id"}
	TicketCosts  = Table{Name: "ticket_costs", OrgColumn: "org_id"}

	Handovers         = Table{Name: "handovers", OrgColumn: "org_id"}
	HandoverItems     = Table{Name: "handover_items", OrgColumn: "org_id"}
	HandoverSnapshots = Table{Name: "handover_meter_snapshots", OrgColumn: "org_id"}

	Services     = Table{Name: "services", OrgColumn: "org_id"}
	ServiceRates = Table{Name: "service_rates", OrgColumn: "org_id"}
	TieredRates  = Table{Name: "tiered_rates", OrgColumn: "org_id"}

	AuditLogs = Table{Name: "audit_logs", OrgColumn: "org_id"}
	Uploads   = Table{Name: "uploads", OrgColumn: "org_id"}
)
