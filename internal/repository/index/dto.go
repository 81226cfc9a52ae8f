package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/exphub/searchcore/internal/domain"
)

// Hash field names of an indexed experiment document.
const (
	fieldTitle        = "title"
	fieldPromptText   = "prompt_text"
	fieldDescription  = "description"
	fieldAIModel      = "ai_model"
	fieldTags         = "tags"
	fieldRate         = "reproduction_rate"
	fieldCreatedAt    = "created_at"
	fieldTextProblem  = "text_problem"
	fieldTextTech     = "text_tech"
	fieldTextSolution = "text_solution"
	fieldVecProblem   = "vec_problem"
	fieldVecTech      = "vec_tech"
	fieldVecSolution  = "vec_solution"
)

// tagSeparator joins multi-valued tags inside one hash field.
const tagSeparator = ","

// hitReturnFields are the fields fetched for result hydration.
var hitReturnFields = []string{
	fieldTitle, fieldPromptText, fieldDescription,
	fieldAIModel, fieldTags, fieldRate, fieldCreatedAt,
}

// vectorField maps a perspective slot to its indexed vector field.
func vectorField(slot domain.PerspectiveSlot) string {
	switch slot {
	case domain.SlotProblem:
		return fieldVecProblem
	case domain.SlotTech:
		return fieldVecTech
	case domain.SlotSolution:
		return fieldVecSolution
	}
	return ""
}

// buildHashFields converts a SearchDocument into a flat map for HSET.
// A nil vector is stored as an empty string: the KNN stage skips the
// document while lexical fields stay searchable.
func buildHashFields(doc *domain.SearchDocument) map[string]string {
	return map[string]string{
		fieldTitle:        doc.Title,
		fieldPromptText:   doc.PromptText,
		fieldDescription:  doc.Description,
		fieldAIModel:      doc.AIModel,
		fieldTags:         strings.Join(doc.Tags, tagSeparator),
		fieldRate:         strconv.Itoa(doc.ReproductionRate),
		fieldCreatedAt:    strconv.FormatInt(doc.CreatedAt.Unix(), 10),
		fieldTextProblem:  doc.Perspectives.Problem,
		fieldTextTech:     doc.Perspectives.Tech,
		fieldTextSolution: doc.Perspectives.Solution,
		fieldVecProblem:   vectorToBytes(doc.ProblemVector),
		fieldVecTech:      vectorToBytes(doc.TechVector),
		fieldVecSolution:  vectorToBytes(doc.SolutionVector),
	}
}

// parseHashFields converts a flat hash back into a SearchDocument.
func parseHashFields(id string, m map[string]string) *domain.SearchDocument {
	doc := &domain.SearchDocument{
		ID:          id,
		Title:       m[fieldTitle],
		PromptText:  m[fieldPromptText],
		Description: m[fieldDescription],
		AIModel:     m[fieldAIModel],
		Tags:        splitTags(m[fieldTags]),
		Perspectives: domain.Perspectives{
			Problem:  m[fieldTextProblem],
			Tech:     m[fieldTextTech],
			Solution: m[fieldTextSolution],
		},
		ProblemVector:  bytesToVector(m[fieldVecProblem]),
		TechVector:     bytesToVector(m[fieldVecTech]),
		SolutionVector: bytesToVector(m[fieldVecSolution]),
	}
	if rate, err := strconv.Atoi(m[fieldRate]); err == nil {
		doc.ReproductionRate = rate
	}
	if sec, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64); err == nil {
		doc.CreatedAt = time.Unix(sec, 0).UTC()
	}
	return doc
}

// parseHit converts returned hash fields into a SearchHit with a raw score.
func parseHit(id string, score float64, fields map[string]string) domain.SearchHit {
	hit := domain.SearchHit{
		ID:          id,
		Title:       fields[fieldTitle],
		Description: fields[fieldDescription],
		PromptText:  fields[fieldPromptText],
		AIModel:     fields[fieldAIModel],
		Tags:        splitTags(fields[fieldTags]),
		Score:       score,
	}
	if rate, err := strconv.Atoi(fields[fieldRate]); err == nil {
		hit.ReproductionRate = rate
	}
	if sec, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64); err == nil {
		hit.CreatedAt = time.Unix(sec, 0).UTC()
	}
	return hit
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, tagSeparator)
}

// --- Filter building ---

// buildFilter translates a SearchFilter into an FT.SEARCH pre-filter
// expression. Filters gate admission only and never contribute to scores.
func buildFilter(f domain.SearchFilter) string {
	var parts []string

	if f.AIModel != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldAIModel, escapeTag(f.AIModel)))
	}
	if f.Tag != "" {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", fieldTags, escapeTag(f.Tag)))
	}
	if f.MinRate > 0 {
		parts = append(parts, fmt.Sprintf("@%s:[%d +inf]", fieldRate, f.MinRate))
	}

	return strings.Join(parts, " ")
}

// --- Lexical query building ---

// allTextFields spans every lexically searchable field, perspectives included.
const allTextFields = fieldTitle + "|" + fieldTags + "|" + fieldPromptText + "|" +
	fieldDescription + "|" + fieldTextProblem + "|" + fieldTextTech + "|" + fieldTextSolution

const bodyTextFields = fieldTags + "|" + fieldPromptText + "|" + fieldDescription

// titleHeavyBoost is how much the title outweighs tags/body in keyword mode.
const titleHeavyBoost = 10.0

// buildLexicalQuery renders a LexicalQuery into an FT.SEARCH expression.
// The two tiers are OR-combined so either the extracted keywords or the raw
// query can surface a hit; $weight attributes carry the tier boosts.
func buildLexicalQuery(q domain.LexicalQuery, filter string) string {
	var tiers []string

	if clause := lexicalTier(q.Primary, q.PrimaryWeight, q.TitleHeavy); clause != "" {
		tiers = append(tiers, clause)
	}
	if clause := lexicalTier(q.Secondary, q.SecondaryWeight, q.TitleHeavy); clause != "" {
		tiers = append(tiers, clause)
	}
	if len(tiers) == 0 {
		return ""
	}

	expr := "(" + strings.Join(tiers, " | ") + ")"
	if filter != "" {
		expr = filter + " " + expr
	}
	return expr
}

func lexicalTier(terms string, weight float64, titleHeavy bool) string {
	escaped := escapeQuery(strings.TrimSpace(terms))
	if escaped == "" {
		return ""
	}
	if weight <= 0 {
		weight = 1.0
	}

	if titleHeavy {
		title := fmt.Sprintf("(@%s:(%s))=>{$weight:%s;}",
			fieldTitle, escaped, formatWeight(weight*titleHeavyBoost))
		body := fmt.Sprintf("(@%s:(%s))=>{$weight:%s;}",
			bodyTextFields, escaped, formatWeight(weight))
		return "(" + title + " | " + body + ")"
	}

	return fmt.Sprintf("(@%s:(%s))=>{$weight:%s;}", allTextFields, escaped, formatWeight(weight))
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// --- Escaping ---

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "\"", "\\\"", "'", "\\'",
	":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
	"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)",
	"-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`, `'`, `\'`, `"`, `\"`, `@`, `\@`,
	`{`, `\{`, `}`, `\}`, `(`, `\(`, `)`, `\)`,
	`|`, `\|`, `-`, `\-`, `~`, `\~`, `*`, `\*`,
	`[`, `\[`, `]`, `\]`, `!`, `\!`, `%`, `\%`,
	`^`, `\^`, `$`, `\$`, `<`, `\<`, `>`, `\>`,
	`=`, `\=`, `;`, `\;`, `+`, `\+`, `:`, `\:`,
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

// --- Vector serialization ---

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian). nil becomes "" (vector absent).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
