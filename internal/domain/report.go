package domain

// Severity separates blocking findings from advisory ones.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// QualityFinding is a single rule violation with a locator such as "sections[2]" or "metaTitle".
type QualityFinding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Locator  string   `json:"locator,omitempty"`
}

// FixRecord documents one auto-fix applied to the draft.
type FixRecord struct {
	Fix     string `json:"fix"`
	Locator string `json:"locator"`
	Before  string `json:"before"`
	After   string `json:"after"`
}

// QualityReport is the terminal artifact of a pipeline run.
type QualityReport struct {
	Findings     []QualityFinding `json:"findings"`
	FixesApplied []FixRecord      `json:"fixesApplied"`
	Passed       bool             `json:"passed"`
}

// NewReport builds a report whose Passed flag is derived from the findings.
func NewReport(findings []QualityFinding, fixes []FixRecord) QualityReport {
	if findings == nil {
		findings = []QualityFinding{}
	}
	if fixes == nil {
		fixes = []FixRecord{}
	}
	return QualityReport{
		Findings:     findings,
		FixesApplied: fixes,
		Passed:       CountSeverity(findings, SeverityCritical) == 0,
	}
}

// CountSeverity counts findings of the given severity.
func CountSeverity(findings []QualityFinding, severity Severity) int {
	n := 0
	for _, f := range findings {
		if f.Severity == severity {
			n++
		}
	}
	return n
}

// Critical returns only the blocking findings.
func (r QualityReport) Critical() []QualityFinding {
	var out []QualityFinding
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			out = append(out, f)
		}
	}
	return out
}
