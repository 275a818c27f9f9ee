// Package evaluate scores interview answers offline. It mirrors the remote
// evaluator's shape so practice flows keep working when the backend's model
// pipeline is unreachable.
package evaluate

import (
	"math"
	"strings"
)

// Result carries the evaluation of one answer
type Result struct {
	Question        string  `json:"question"`
	UserAnswer      string  `json:"user_answer"`
	RelevanceScore  float64 `json:"relevance_score"`
	ConfidenceScore float64 `json:"confidence_score"`
	FinalScore      float64 `json:"final_score"`
	FeedbackText    string  `json:"feedback_text"`
}

// hedges are phrases that read as uncertain
var hedges = []string{
	"i guess", "maybe", "not sure", "i think", "probably", "kind of", "sort of",
}

// assertives are phrases that read as confident
var assertives = []string{
	"i led", "i built", "i delivered", "i achieved", "i designed", "i solved",
	"for example", "as a result",
}

// Answer scores a user answer against the question and an ideal-answer
// description. Relevance and confidence are 0-100; the final score weights
// relevance 0.6 and confidence 0.4, matching the remote evaluator.
func Answer(question, idealAnswer, userAnswer string) Result {
	relevance := scoreRelevance(question, idealAnswer, userAnswer)
	confidence := scoreConfidence(userAnswer)
	final := 0.6*relevance + 0.4*confidence

	return Result{
		Question:        question,
		UserAnswer:      userAnswer,
		RelevanceScore:  round2(relevance),
		ConfidenceScore: round2(confidence),
		FinalScore:      round2(final),
		FeedbackText:    buildFeedback(userAnswer, relevance, confidence),
	}
}

// scoreRelevance measures term overlap between the answer and the ideal
// answer, with a smaller contribution from the question itself
func scoreRelevance(question, idealAnswer, userAnswer string) float64 {
	simIdeal := overlap(idealAnswer, userAnswer)
	simQuestion := overlap(question, userAnswer)

	combined := 0.7*simIdeal + 0.3*simQuestion
	return clamp(combined*100.0, 0, 100)
}

// scoreConfidence approximates communication quality from phrasing and
// length. At least 40 words are needed for full length credit.
func scoreConfidence(userAnswer string) float64 {
	lower := strings.ToLower(userAnswer)

	base := 0.65
	for _, h := range hedges {
		if strings.Contains(lower, h) {
			base -= 0.08
		}
	}
	for _, a := range assertives {
		if strings.Contains(lower, a) {
			base += 0.06
		}
	}
	base = clamp(base, 0.2, 1.0)

	words := len(strings.Fields(userAnswer))
	lengthFactor := math.Min(float64(words)/40.0, 1.0)

	return clamp((base*0.6+lengthFactor*0.4)*100.0, 0, 100)
}

// buildFeedback assembles feedback text from the score bands
func buildFeedback(userAnswer string, relevance, confidence float64) string {
	var parts []string

	switch {
	case relevance > 80:
		parts = append(parts, "Your answer is highly relevant to the question.")
	case relevance > 60:
		parts = append(parts, "Your answer is mostly relevant, but you could align it more closely with what the question is asking.")
	default:
		parts = append(parts, "Your answer only partially addresses the question. Try to focus more on what is being asked.")
	}

	switch {
	case confidence > 80:
		parts = append(parts, "You sound confident and clear in your explanation.")
	case confidence > 60:
		parts = append(parts, "Your communication is okay, but you could be more structured and assertive.")
	default:
		parts = append(parts, "Your answer comes across as hesitant or incomplete. Try speaking more clearly and giving concrete examples.")
	}

	if len(strings.Fields(userAnswer)) < 30 {
		parts = append(parts, "Consider expanding your answer with more detail or examples.")
	}

	return strings.Join(parts, " ")
}

// overlap returns the share of reference terms present in the candidate
func overlap(reference, candidate string) float64 {
	ref := termSet(reference)
	cand := termSet(candidate)
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}

	matched := 0
	for term := range ref {
		if _, ok := cand[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(ref))
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "is": {}, "are": {}, "was": {}, "be": {}, "it": {},
	"that": {}, "this": {}, "with": {}, "for": {}, "at": {}, "as": {},
	"i": {}, "my": {}, "me": {}, "you": {}, "your": {}, "we": {},
}

func termSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w == "" {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
