package source

// RawLine is one line of an upstream aggregator feed. A line is either an
// account declaration or a realized spend record; which fields are set
// depends on Type.
type RawLine struct {
	Type string `json:"type"`

	// account lines
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name,omitempty"`
	CreditLimit string            `json:"credit_limit,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// spend lines
	AccountID   string `json:"account_id,omitempty"`
	Date        string `json:"date,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Installment bool   `json:"installment,omitempty"`
	Shared      bool   `json:"shared,omitempty"`
}

// Line types understood by the parser.
const (
	TypeAccount = "account"
	TypeSpend   = "spend"
)

// DiscoveredFile is a feed file found during directory scanning.
type DiscoveredFile struct {
	Path    string
	Name    string // file name without the .jsonl extension
	Size    int64
	ModTime int64 // unix nanoseconds
}
