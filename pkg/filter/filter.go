package filter

import "strings"

// Delimiters bounding a marked reasoning region.
const (
	openTag  = "<think>"
	closeTag = "</think>"
)

// State tracks a streaming filter across fragment boundaries. It holds the
// two pieces of information that must survive between fragments: whether the
// stream is currently inside a marked region, and any partial delimiter seen
// at the end of the previous fragment. The partial delimiter is always a
// strict prefix of the delimiter currently being matched, so the buffer never
// exceeds len("</think>") bytes.
//
// A State belongs to exactly one stream and is not safe for concurrent use.
type State struct {
	inside  bool
	pending string
	regions int
}

// New returns a fresh filter state positioned outside any marked region.
func New() *State {
	return &State{}
}

// Feed runs fragment through the filter and returns the bytes that may be
// released to the client. The concatenated output over any sequence of calls
// equals the output of filtering the concatenated input in one call: chunk
// boundaries are invisible to the result.
func (s *State) Feed(fragment string) string {
	if fragment == "" {
		return ""
	}
	var out strings.Builder
	for i := 0; i < len(fragment); i++ {
		s.step(fragment[i], &out)
	}
	return out.String()
}

// step advances the machine by one byte. The delimiters are plain ASCII and
// ASCII bytes never occur inside multi-byte UTF-8 sequences, so byte-wise
// processing cannot mistake part of a rune for a delimiter.
func (s *State) step(c byte, out *strings.Builder) {
	for {
		delim := openTag
		if s.inside {
			delim = closeTag
		}

		if s.pending != "" {
			if delim[len(s.pending)] == c {
				if len(s.pending)+1 == len(delim) {
					// Completed delimiter: it is never emitted.
					s.inside = !s.inside
					if !s.inside {
						s.regions++
					}
					s.pending = ""
				} else {
					s.pending = delim[:len(s.pending)+1]
				}
				return
			}

			// The candidate can no longer form a delimiter. Outside a region
			// it was ordinary text and is released; inside it was reasoning
			// and is dropped. The current byte is then reprocessed, since it
			// may itself begin a new candidate.
			if !s.inside {
				out.WriteString(s.pending)
			}
			s.pending = ""
			continue
		}

		if c == '<' {
			s.pending = delim[:1]
			return
		}
		if !s.inside {
			out.WriteByte(c)
		}
		return
	}
}

// Flush terminates the stream. A candidate still pending outside a region is
// ordinary text that never completed a delimiter and is returned so it is not
// lost. Inside a region both the candidate and all unseen region content
// belong to a truncated chain of thought and are discarded.
func (s *State) Flush() string {
	tail := ""
	if !s.inside && s.pending != "" {
		tail = s.pending
	}
	s.pending = ""
	return tail
}

// Inside reports whether the stream is currently within a marked region.
func (s *State) Inside() bool {
	return s.inside
}

// Regions returns the number of complete marked regions elided so far.
func (s *State) Regions() int {
	return s.regions
}
