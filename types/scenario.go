package types

// Scenario is a BDD scenario built by the feature parser.
type Scenario struct {
	Description  string
	IsBackground bool
	Groups       []string
	Steps        []*Step
	// Examples is the global table; the scenario runs once per row.
	Examples *DataTable

	Importance             Importance
	KnownToFail            bool
	BugRef                 string
	DropRemainingOnFailure bool

	// Outcomes holds one status per executed example row.
	Outcomes []Status
}

// Step is one line of a scenario.
type Step struct {
	Keyword string
	Text    string
	// Table is the step-local data table.
	Table *DataTable
	// Params are the quoted literals of Text, keyed arg0..argN.
	Params map[string]string
	// Unit is the implementation bound by discovery.
	Unit *UnitDescriptor
}
