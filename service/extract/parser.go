package extract

import (
	"errors"
	"strings"

	"github.com/viant/parsly"
)

// Outcome classifies a scanned reply.
type Outcome int

const (
	// NotFound means the text contains no fence at all.
	NotFound Outcome = iota
	// Found means a language-tagged, closed block was located.
	Found
	// Malformed means fences exist but no usable block could be extracted.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "not_found"
	}
}

var (
	// ErrMissingLanguage is reported when fences exist but none carries a
	// language tag.
	ErrMissingLanguage = errors.New("extract: code fence without language tag")
	// ErrUnterminatedFence is reported when a tagged block is never closed.
	ErrUnterminatedFence = errors.New("extract: unterminated code fence")
)

// Block is an extracted code block.
type Block struct {
	Language string `json:"language"`
	// Code is the exact text between the language tag and the closing fence.
	Code  string `json:"code"`
	Start int    `json:"start"` // offset of the opening fence
	End   int    `json:"end"`   // offset just past the closing fence
}

// Lang returns the lower-cased language tag.
func (b *Block) Lang() string {
	if b == nil {
		return ""
	}
	return strings.ToLower(b.Language)
}

// Result is the typed outcome of Scan.
type Result struct {
	Outcome Outcome
	Block   *Block
	Err     error
}

// HasFence reports whether the text looked like an execution request, that is
// whether any fence was seen.
func (r Result) HasFence() bool {
	return r.Outcome != NotFound
}

// Scan looks for the first language-tagged fenced block in text.
func Scan(text string) Result {
	cursor := parsly.NewCursor("", []byte(text), 0)
	sawFence := false

	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAny(fenceToken, proseToken)
		switch matched.Code {
		case proseCode:
			continue
		case fenceCode:
			sawFence = true
			start := cursor.Pos - len(fence)
			tag := cursor.MatchOne(languageToken)
			if tag.Code != languageCode {
				// untagged block: skip its body and closing fence so the
				// closer is never read as an opener
				cursor.MatchOne(bodyToken)
				if closing := cursor.MatchOne(fenceToken); closing.Code != fenceCode {
					cursor.Pos = cursor.InputSize
				}
				continue
			}
			block := &Block{Language: tag.Text(cursor), Start: start}
			if body := cursor.MatchOne(bodyToken); body.Code == bodyCode {
				block.Code = body.Text(cursor)
			}
			if closing := cursor.MatchOne(fenceToken); closing.Code != fenceCode {
				return Result{Outcome: Malformed, Err: ErrUnterminatedFence}
			}
			block.End = cursor.Pos
			return Result{Outcome: Found, Block: block}
		default:
			// a bare fence at the very end leaves nothing to match
			cursor.Pos = cursor.InputSize
		}
	}
	if sawFence {
		return Result{Outcome: Malformed, Err: ErrMissingLanguage}
	}
	return Result{Outcome: NotFound}
}

// Code is a convenience wrapper returning the block code and whether a block
// was found.
func Code(text string) (string, bool) {
	result := Scan(text)
	if result.Outcome != Found {
		return "", false
	}
	return result.Block.Code, true
}
