package outcomes

const (
	ResultContext = "http://purl.imsglobal.org/ctx/lis/v2/Result"
	ResultType    = "Result"
)

// Result is the LTI 2.0 REST body PUT to a result service.
type Result struct {
	Context     string  `json:"@context"`
	Type        string  `json:"@type"`
	ResultScore float64 `json:"resultScore"`
	Comment     string  `json:"comment"`
}

func NewResult(score float64, comment string) Result {
	return Result{Context: ResultContext, Type: ResultType, ResultScore: score, Comment: comment}
}
