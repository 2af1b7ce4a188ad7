package moderation

import "encoding/json"

const (
	CategoryAppropriate = "appropriate"
	CategoryError       = "error"
	CategoryUnknown     = "unknown"
)

// Verdict is the oracle's structured output, normalized at the boundary so
// call sites never see a malformed upstream shape.
type Verdict struct {
	Approved   bool     `json:"approved"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Category   string   `json:"category"`
}

// ErrorVerdict is the conservative fallback used whenever the oracle call
// fails: the listing still goes through, it just queues for manual review.
func ErrorVerdict(reason string) Verdict {
	return Verdict{
		Approved:   false,
		Confidence: 0,
		Reasons:    []string{reason},
		Category:   CategoryError,
	}
}

// ImageVerdict distinguishes "no image was submitted" from an actual image
// check. An absent image always contributes a neutral approving verdict, so
// the absence of images can never block auto-approval.
type ImageVerdict struct {
	present bool
	verdict Verdict
}

func AbsentImage() ImageVerdict {
	return ImageVerdict{}
}

func CheckedImage(v Verdict) ImageVerdict {
	return ImageVerdict{present: true, verdict: v}
}

func (iv ImageVerdict) Present() bool {
	return iv.present
}

func (iv ImageVerdict) Verdict() Verdict {
	if !iv.present {
		return Verdict{
			Approved:   true,
			Confidence: 1,
			Reasons:    []string{},
			Category:   CategoryAppropriate,
		}
	}
	return iv.verdict
}

// rawVerdict tolerates whatever shape the model produced; every field is
// coerced before a Verdict leaves this package.
type rawVerdict struct {
	Approved   json.RawMessage `json:"approved"`
	Confidence json.RawMessage `json:"confidence"`
	Reasons    json.RawMessage `json:"reasons"`
	Category   json.RawMessage `json:"category"`
}

func normalizeVerdict(raw rawVerdict) Verdict {
	verdict := Verdict{
		Approved:   coerceBool(raw.Approved),
		Confidence: clamp01(coerceFloat(raw.Confidence)),
		Reasons:    coerceStrings(raw.Reasons),
		Category:   CategoryUnknown,
	}
	if category := coerceString(raw.Category); category != "" {
		verdict.Category = category
	}
	return verdict
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func coerceBool(raw json.RawMessage) bool {
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return false
	}
	return value
}

func coerceFloat(raw json.RawMessage) float64 {
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0
	}
	return value
}

func coerceString(raw json.RawMessage) string {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return value
}

func coerceStrings(raw json.RawMessage) []string {
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return []string{}
	}

	out := make([]string, 0, len(values))
	for _, value := range values {
		if s, ok := value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
