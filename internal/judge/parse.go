package judge

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// parseAnalysis turns a model response into an Analysis, surviving fenced
// output, leading prose, missing fields and out-of-range scores. It never
// fails: an unusable response yields zeroed scores.
func parseAnalysis(raw string) *Analysis {
	doc := extractObject(stripFences(raw))

	analysis := &Analysis{
		ClashPoints:    []string{},
		TurningMoments: []string{},
	}

	// fast path: the whole document decodes cleanly
	var wire wireAnalysis
	if err := json.Unmarshal([]byte(doc), &wire); err == nil {
		analysis.For = sideFromWire(wire.For)
		analysis.Against = sideFromWire(wire.Against)
		analysis.Winner = normalizeWinner(wire.Winner)
		if wire.ClashPoints != nil {
			analysis.ClashPoints = wire.ClashPoints
		}
		if wire.TurningMoments != nil {
			analysis.TurningMoments = wire.TurningMoments
		}
		return analysis
	}

	// salvage path: pull whatever fields survive
	analysis.For = sideFromJSON(gjson.Get(doc, "for"))
	analysis.Against = sideFromJSON(gjson.Get(doc, "against"))
	analysis.Winner = normalizeWinner(gjson.Get(doc, "winner").String())
	for _, v := range gjson.Get(doc, "clash_points").Array() {
		analysis.ClashPoints = append(analysis.ClashPoints, v.String())
	}
	for _, v := range gjson.Get(doc, "turning_moments").Array() {
		analysis.TurningMoments = append(analysis.TurningMoments, v.String())
	}
	return analysis
}

type wireAnalysis struct {
	For            wireSide `json:"for"`
	Against        wireSide `json:"against"`
	Winner         string   `json:"winner"`
	ClashPoints    []string `json:"clash_points"`
	TurningMoments []string `json:"turning_moments"`
}

type wireSide struct {
	Scores     map[string]wireScore `json:"scores"`
	Total      float64              `json:"total"`
	Strengths  []string             `json:"strengths"`
	Weaknesses []string             `json:"weaknesses"`
}

type wireScore struct {
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

func sideFromWire(w wireSide) SideEvaluation {
	side := emptySide()
	for _, c := range rubric {
		entry := side.Scores[c.Key]
		if s, ok := w.Scores[c.Key]; ok {
			entry.Score = clamp(s.Score, c.MaxScore)
			entry.Comment = s.Comment
		}
		side.Scores[c.Key] = entry
		side.Total += entry.Score
	}
	if w.Strengths != nil {
		side.Strengths = w.Strengths
	}
	if w.Weaknesses != nil {
		side.Weaknesses = w.Weaknesses
	}
	return side
}

func sideFromJSON(v gjson.Result) SideEvaluation {
	side := emptySide()
	for _, c := range rubric {
		entry := side.Scores[c.Key]
		entry.Score = clamp(v.Get("scores."+c.Key+".score").Float(), c.MaxScore)
		entry.Comment = v.Get("scores." + c.Key + ".comment").String()
		side.Scores[c.Key] = entry
		side.Total += entry.Score
	}
	for _, s := range v.Get("strengths").Array() {
		side.Strengths = append(side.Strengths, s.String())
	}
	for _, s := range v.Get("weaknesses").Array() {
		side.Weaknesses = append(side.Weaknesses, s.String())
	}
	return side
}

func emptySide() SideEvaluation {
	side := SideEvaluation{
		Scores:     make(map[string]CategoryScore, len(rubric)),
		Strengths:  []string{},
		Weaknesses: []string{},
	}
	for _, c := range rubric {
		side.Scores[c.Key] = CategoryScore{MaxScore: c.MaxScore}
	}
	return side
}

func clamp(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}

func normalizeWinner(w string) string {
	switch strings.ToLower(strings.TrimSpace(w)) {
	case "for":
		return "for"
	case "against":
		return "against"
	default:
		return "tie"
	}
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// extractObject returns the first balanced top-level JSON object in s,
// ignoring braces inside string literals.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return s
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return s[start:]
}
