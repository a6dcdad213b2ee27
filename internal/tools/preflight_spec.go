package tools

func init() {
	RegisterSpec(SpecEntry{Name: "record_baseline", Group: "preflight", Constructor: NewRecordBaselineToolSpec})
}

// NewRecordBaselineToolSpec creates the specification for the
// record_baseline tool, used during the preflight session to mark a
// pre-existing build/lint/test diagnostic so later pulse verifications
// ignore it instead of treating it as a regression.
func NewRecordBaselineToolSpec() ToolSpec {
	return ToolSpec{
		Name:        "record_baseline",
		Description: "Records a pre-existing diagnostic (build error, lint warning, failing test) to be ignored by later pulses.",
		Parameters: []ToolParameter{
			{Name: "issueType", Type: "string", Description: "One of: error, warning.", Required: true},
			{Name: "source", Type: "string", Description: "One of: build, lint, test.", Required: true},
			{Name: "pattern", Type: "string", Description: "Substring or regex identifying the diagnostic message.", Required: true},
			{Name: "filePath", Type: "string", Description: "File the diagnostic is scoped to, if any.", Required: false},
			{Name: "description", Type: "string", Description: "Human-readable note about why this is pre-existing.", Required: false},
		},
	}
}
