package quality

// Verdict statuses produced by the quality-gate collaborator.
// The core only branches on the verdict, it never computes it.
const (
	StatusPass = "pass"
	StatusFail = "fail"
)

type Issue struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

type Report struct {
	Status string  `json:"status"`
	Issues []Issue `json:"issues"`
}

func (r Report) Failed() bool {
	return r.Status == StatusFail
}

// FirstIssueMessage returns the first reported issue's message, used as the
// conflict message when a section fails its gate.
func (r Report) FirstIssueMessage() string {
	if len(r.Issues) > 0 && r.Issues[0].Message != "" {
		return r.Issues[0].Message
	}
	return "quality gate failed"
}
