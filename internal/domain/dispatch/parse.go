package dispatch

import (
	"strings"

	"github.com/bytedance/sonic"
)

type textResponse struct {
	Results      []ResultItem `json:"results"`
	RefinedQuery string       `json:"refined_query"`
}

type ocrResponse struct {
	RawText          string `json:"raw_text"`
	CleanedQuery     string `json:"cleaned_query"`
	DetectedCategory string `json:"detected_category"`
}

type transcribeResponse struct {
	Text string `json:"text"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// decodeResultList accepts either a bare result array or an object wrapping
// the array under "results". Anything else normalizes to an empty list; the
// collaborator occasionally returns odd shapes and the UI treats those as
// zero matches rather than an error.
func decodeResultList(data []byte) ([]ResultItem, bool) {
	var bare []ResultItem
	if err := sonic.Unmarshal(data, &bare); err == nil {
		return sanitizeItems(bare), true
	}

	var wrapped textResponse
	if err := sonic.Unmarshal(data, &wrapped); err == nil && wrapped.Results != nil {
		return sanitizeItems(wrapped.Results), true
	}

	return nil, false
}

// sanitizeItems drops entries that cannot be rendered so a single corrupt
// item never takes the whole result sequence down.
func sanitizeItems(items []ResultItem) []ResultItem {
	out := make([]ResultItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" && item.ImagePath == "" {
			continue
		}
		if item.Score != nil && (*item.Score < 0 || *item.Score > 1) {
			item.Score = nil
		}
		out = append(out, item)
	}
	return out
}

// decodeDetail extracts the optional server-supplied detail string from an
// error response body.
func decodeDetail(body []byte) string {
	var d detailResponse
	if err := sonic.Unmarshal(body, &d); err != nil {
		return ""
	}
	return strings.TrimSpace(d.Detail)
}

// RefinedDiffers reports whether the server-proposed refined query should be
// adopted: it must be non-empty and differ from the submitted query after
// trimming and case folding.
func RefinedDiffers(submitted, refined string) bool {
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(submitted), refined)
}
