package dispatch

// Endpoint tags the four search modalities the collaborator service exposes.
type Endpoint string

const (
	EndpointText   Endpoint = "text"
	EndpointImage  Endpoint = "image"
	EndpointSketch Endpoint = "sketch"
	EndpointOCR    Endpoint = "ocr"
)

// OCR mode selector values accepted by the collaborator.
const (
	OCRModeStandard = "standard"
	OCRModeLLM      = "llm"
)

// ResultItem is an immutable snapshot of one match from the last successful
// response.
type ResultItem struct {
	ID             string   `json:"id"`
	ImagePath      string   `json:"image_path"`
	Caption        string   `json:"caption,omitempty"`
	Category       string   `json:"category,omitempty"`
	Score          *float64 `json:"score,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
}

// FailureClass distinguishes how a dispatched request went wrong.
type FailureClass string

const (
	FailureTimeout   FailureClass = "timeout"
	FailureServer    FailureClass = "server"
	FailureTransport FailureClass = "transport"
)

// Failure carries the classified error surfaced to the user.
type Failure struct {
	Class   FailureClass `json:"class"`
	Message string       `json:"message"`
	Status  int          `json:"status,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// OcrReview is the recognized-text payload that must be confirmed by the
// user before any search executes.
type OcrReview struct {
	RawText          string `json:"raw_text"`
	CleanedQuery     string `json:"cleaned_query"`
	DetectedCategory string `json:"detected_category"`
}

// OutcomeKind is the terminal classification of a dispatched request.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeReview  OutcomeKind = "review"
	OutcomeFailure OutcomeKind = "failure"
)

// Outcome is the tagged result of a dispatch. Exactly one of Items/Review/
// Failure is meaningful depending on Kind.
type Outcome struct {
	Kind         OutcomeKind  `json:"kind"`
	Items        []ResultItem `json:"items,omitempty"`
	RefinedQuery string       `json:"refined_query,omitempty"`
	Review       *OcrReview   `json:"review,omitempty"`
	Failure      *Failure     `json:"failure,omitempty"`
}

func Success(items []ResultItem, refinedQuery string) Outcome {
	return Outcome{Kind: OutcomeSuccess, Items: items, RefinedQuery: refinedQuery}
}

func ReviewNeeded(review OcrReview) Outcome {
	return Outcome{Kind: OutcomeReview, Review: &review}
}

func Fail(f Failure) Outcome {
	return Outcome{Kind: OutcomeFailure, Failure: &f}
}
