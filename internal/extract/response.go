package extract

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/TobiSchelling/tenderwatch/internal/llm"
)

const (
	notFound          = "Not Found"
	defaultConfidence = 0.7
)

// ErrMalformedResponse is returned when the model reply is not a JSON object
// of the expected shape.
var ErrMalformedResponse = errors.New("malformed model response")

//go:embed response.schema.json
var responseSchemaJSON string

var responseSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(responseSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid response schema: %v", err))
	}
	return s
}()

// Fields are the clauses parsed from one model reply.
type Fields struct {
	RequiredQualifications string
	EvaluationCriteria     string
	ProcessDescription     string
	DeliveryMethods        string
	RequiredDocumentation  string
	ConfidenceScore        float64
}

// ParseResponse unwraps, validates and normalizes a model reply. Missing
// clauses become "Not Found"; a missing confidence becomes 0.7.
func ParseResponse(reply string) (*Fields, error) {
	data, err := llm.ParseJSONResponse(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	res, err := responseSchema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, strings.Join(msgs, "; "))
	}

	confidence, err := confidenceScore(data["confidence_score"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &Fields{
		RequiredQualifications: clause(data["required_qualifications"]),
		EvaluationCriteria:     clause(data["evaluation_criteria"]),
		ProcessDescription:     clause(data["process_description"]),
		DeliveryMethods:        clause(data["delivery_methods"]),
		RequiredDocumentation:  clause(data["required_documentation"]),
		ConfidenceScore:        confidence,
	}, nil
}

func confidenceScore(v any) (float64, error) {
	var f float64
	switch c := v.(type) {
	case nil:
		return defaultConfidence, nil
	case float64:
		f = c
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return 0, fmt.Errorf("confidence_score %q is not a number", c)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("confidence_score has type %T", v)
	}
	return min(max(f, 0), 1), nil
}

// clause renders one field as plain text. Lists become "- item" lines.
func clause(v any) string {
	var s string
	switch c := v.(type) {
	case string:
		s = plainText(c)
	case float64:
		s = strconv.FormatFloat(c, 'f', -1, 64)
	case []any:
		lines := make([]string, 0, len(c))
		for _, item := range c {
			if t := clause(item); t != notFound {
				lines = append(lines, "- "+t)
			}
		}
		s = strings.Join(lines, "\n")
	}
	if strings.TrimSpace(s) == "" {
		return notFound
	}
	return s
}

var markdown = goldmark.New()

// plainText strips markdown emphasis, headings and links, keeping one line
// per block and "- " for list items.
func plainText(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	newline := func() {
		if buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.ListItem:
			if entering {
				newline()
				buf.WriteString("- ")
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				newline()
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return strings.TrimSpace(src)
	}
	return strings.TrimSpace(buf.String())
}
