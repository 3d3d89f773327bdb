// Package chunk splits normalized text into bounded, overlapping retrieval
// units. Output is deterministic for identical input and parameters.
package chunk

import (
	"regexp"
	"strings"
	"unicode"
)

// Config controls segmentation bounds.
type Config struct {
	// ChunkSize is the target maximum chunk length in characters.
	ChunkSize int
	// Overlap is the tail length carried from one chunk into the next.
	Overlap int
	// MinChunkChars discards chunks whose trimmed length falls below it.
	MinChunkChars int
}

// DefaultConfig provides the segmentation defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     500,
		Overlap:       50,
		MinChunkChars: 50,
	}
}

// Segmenter splits text on paragraph boundaries, greedily packing paragraphs
// into chunks and seeding each chunk with an overlap tail of its predecessor.
type Segmenter struct {
	cfg Config
}

// NewSegmenter creates a Segmenter with the given configuration.
// Zero or negative fields fall back to defaults.
func NewSegmenter(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = def.Overlap
	}
	if cfg.MinChunkChars <= 0 {
		cfg.MinChunkChars = def.MinChunkChars
	}
	return &Segmenter{cfg: cfg}
}

var (
	paragraphRe        = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundaryRe = regexp.MustCompile(`[.!?]\s+`)
)

// Split segments text into chunks. Empty or whitespace input yields nil.
func (s *Segmenter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := paragraphRe.Split(text, -1)

	var chunks []string
	current := ""

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if runeLen(current)+runeLen(paragraph)+1 <= s.cfg.ChunkSize {
			current = join(current, paragraph, "\n\n")
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
			current = s.overlapTail(current)
		}

		if runeLen(paragraph) > s.cfg.ChunkSize {
			// Oversized paragraph: split by sentence with the same greedy
			// accumulation, no overlap seeding between the internal pieces.
			sentenceChunks := s.splitLargeParagraph(paragraph)
			chunks = append(chunks, sentenceChunks...)

			last := ""
			if len(sentenceChunks) > 0 {
				last = sentenceChunks[len(sentenceChunks)-1]
			}
			current = s.overlapTail(last)
		} else {
			current = join(current, paragraph, "\n\n")
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, current)
	}

	kept := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if runeLen(strings.TrimSpace(c)) >= s.cfg.MinChunkChars {
			kept = append(kept, c)
		}
	}
	return kept
}

// splitLargeParagraph greedily packs sentences of an oversized paragraph.
func (s *Segmenter) splitLargeParagraph(paragraph string) []string {
	sentences := splitSentences(paragraph)

	var chunks []string
	current := ""

	for _, sentence := range sentences {
		if runeLen(current)+runeLen(sentence)+1 <= s.cfg.ChunkSize {
			current = join(current, sentence, " ")
		} else {
			if current != "" {
				chunks = append(chunks, current)
			}
			current = sentence
		}
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}

// overlapTail returns the seed text carried from a committed chunk into the
// next one: the last sentence start within a 2x overlap window when it is
// punctuation-free, else the first word boundary within the overlap window,
// else the raw overlap tail.
func (s *Segmenter) overlapTail(text string) string {
	runes := []rune(text)
	if len(runes) <= s.cfg.Overlap {
		return text
	}

	window := string(lastN(runes, 2*s.cfg.Overlap))
	if m := sentenceBoundaryRe.FindAllStringIndex(window, -1); len(m) > 0 {
		candidate := window[m[len(m)-1][1]:]
		if candidate != "" && !strings.ContainsAny(candidate, ".!?") {
			return candidate
		}
	}

	tail := string(lastN(runes, s.cfg.Overlap))
	if idx := strings.IndexFunc(tail, unicode.IsSpace); idx >= 0 {
		after := strings.TrimLeftFunc(tail[idx:], unicode.IsSpace)
		if after != "" {
			return after
		}
	}

	return tail
}

// splitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceBoundaryRe.FindAllStringIndex(text, -1) {
		end := loc[0] + 1
		out = append(out, text[start:end])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func join(current, next, sep string) string {
	if current == "" {
		return next
	}
	return current + sep + next
}

func runeLen(s string) int {
	return len([]rune(s))
}

func lastN(runes []rune, n int) []rune {
	if len(runes) <= n {
		return runes
	}
	return runes[len(runes)-n:]
}
