package extract

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/tenderwatch/internal/analyze"
)

var instructions = []string{
	"You are an expert in Italian public procurement. Extract the requested fields in JSON.",
	"Return ONLY valid JSON with keys: required_qualifications, evaluation_criteria, process_description, delivery_methods, required_documentation, confidence_score (0.0-1.0). If a field is missing, set it to 'Not Found'.",
	"Focus on concrete values: scores, percentages, deadlines, ISO/ SOA certifications, payment terms, submission modalities (platform/PEC), envelope structure (Busta A/B/C), guarantees/anticipi.",
	"Use concise Italian where appropriate. Do not invent data.",
}

// BuildPrompt renders the instruction lines followed by one tagged block per
// section. Missing sections are marked "Not Provided".
func BuildPrompt(in analyze.PromptInput) string {
	parts := append([]string(nil), instructions...)
	parts = append(parts,
		block("qualifications", in.Qualifications),
		block("evaluation", in.Evaluation),
		block("process", in.Process),
		block("delivery", in.Delivery),
		block("raw_text", in.RawText),
	)
	return strings.Join(parts, "\n\n")
}

func block(label, text string) string {
	if text == "" {
		return fmt.Sprintf("<%s>Not Provided</%s>", label, label)
	}
	return fmt.Sprintf("<%s>\n%s\n</%s>", label, text, label)
}
