package vocab

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Reserved token ids shared by every model in an ensemble. The decoder
// relies on these conventions: 0 terminates a hypothesis, 1 is the
// out-of-vocabulary fallback, and -1 is a pseudo-token fed to the first
// decode step only. -1 never appears inside a vocabulary.
const (
	EOS       = 0
	Unk       = 1
	BOSMarker = -1
)

const (
	EOSToken = "</s>"
	UnkToken = "<unk>"
)

// Vocab maps surface tokens to vocabulary indices and back.
type Vocab struct {
	TokenToID map[string]int
	IDToToken map[int]string

	// Shortlist caps the usable vocabulary; ids at or above it are
	// replaced with Unk during encoding. Zero means no limit.
	Shortlist int
}

// Load reads a word -> id dictionary from a JSON file. The reserved
// entries for EOS and Unk are forced regardless of the file contents.
func Load(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dictionary %s: %w", path, err)
	}

	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse dictionary %s: %w", path, err)
	}

	return New(raw), nil
}

// New builds a Vocab from a token -> id mapping.
func New(tokens map[string]int) *Vocab {
	v := &Vocab{
		TokenToID: make(map[string]int, len(tokens)+2),
		IDToToken: make(map[int]string, len(tokens)+2),
	}
	for tok, id := range tokens {
		v.TokenToID[tok] = id
	}
	v.TokenToID[EOSToken] = EOS
	v.TokenToID[UnkToken] = Unk
	for tok, id := range v.TokenToID {
		v.IDToToken[id] = tok
	}
	// A dictionary may alias several tokens onto a reserved id; the
	// canonical surface form wins on the inverse mapping.
	v.IDToToken[EOS] = EOSToken
	v.IDToToken[Unk] = UnkToken
	return v
}

// Size returns the number of distinct ids, shortlist applied.
func (v *Vocab) Size() int {
	n := len(v.IDToToken)
	if v.Shortlist > 0 && v.Shortlist < n {
		return v.Shortlist
	}
	return n
}

// Encode maps words to ids, substituting Unk for unknown or
// out-of-shortlist words, and terminates the sequence with EOS.
func (v *Vocab) Encode(words []string) []int {
	ids := make([]int, 0, len(words)+1)
	for _, w := range words {
		id, ok := v.TokenToID[w]
		if !ok || (v.Shortlist > 0 && id >= v.Shortlist) {
			id = Unk
		}
		ids = append(ids, id)
	}
	return append(ids, EOS)
}

// EncodeLine splits a line on whitespace and encodes it.
func (v *Vocab) EncodeLine(line string) []int {
	return v.Encode(strings.Fields(line))
}

// Decode maps ids back to words. EOS is dropped, unknown ids render as
// the Unk surface form.
func (v *Vocab) Decode(ids []int) []string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == EOS {
			continue
		}
		tok, ok := v.IDToToken[id]
		if !ok {
			tok = UnkToken
		}
		words = append(words, tok)
	}
	return words
}

// DecodeLine decodes ids into a space-joined sentence.
func (v *Vocab) DecodeLine(ids []int) string {
	return strings.Join(v.Decode(ids), " ")
}
