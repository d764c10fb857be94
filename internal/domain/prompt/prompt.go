// Package prompt builds the text sent to the generation model.
package prompt

import (
	"strings"

	"github.com/matiasleandrokruk/hubrag/internal/domain/knowledge"
)

const (
	retrievedHeader = "\nRetrieved information:\n "
	passageSep      = "\n\n"
	questionHeader  = "\n\nQuestion: "
)

// Assemble lays out instruction, retrieved passage texts and question:
//
//	<instruction>
//	Retrieved information:
//	 <p1>\n\n<p2>...
//
//	Question: <question>
//
// With no passages the prompt is the question alone. The function is pure.
func Assemble(instruction string, retrieved []knowledge.Passage, question string) string {
	if len(retrieved) == 0 {
		return question
	}
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString(retrievedHeader)
	b.WriteString(strings.Join(knowledge.Result(retrieved).Texts(), passageSep))
	b.WriteString(questionHeader)
	b.WriteString(question)
	return b.String()
}

// Assembler applies a fixed instruction and an optional size bound.
type Assembler struct {
	Instruction string
	// MaxChars bounds the prompt length in bytes; 0 disables the bound.
	MaxChars int
}

// Build assembles the prompt. When it would exceed MaxChars, passages are
// dropped from the lowest-ranked end until it fits; the question is never cut.
// If no passage fits, the result is the question-only prompt. The second
// return value is the passages actually included.
func (a Assembler) Build(retrieved []knowledge.Passage, question string) (string, []knowledge.Passage) {
	kept := retrieved
	for {
		p := Assemble(a.Instruction, kept, question)
		if a.MaxChars <= 0 || len(p) <= a.MaxChars || len(kept) == 0 {
			return p, kept
		}
		kept = kept[:len(kept)-1]
	}
}
