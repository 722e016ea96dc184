package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() *Vocab {
	return New(map[string]int{
		"the": 2,
		"cat": 3,
		"sat": 4,
		"mat": 5,
	})
}

func TestEncodeDecode(t *testing.T) {
	v := testVocab()

	ids := v.EncodeLine("the cat sat")
	assert.Equal(t, []int{2, 3, 4, EOS}, ids, "encoding must terminate with eos")

	assert.Equal(t, "the cat sat", v.DecodeLine(ids), "decode drops eos")
}

func TestEncodeUnknownWords(t *testing.T) {
	v := testVocab()
	ids := v.Encode([]string{"the", "dog", "sat"})
	assert.Equal(t, []int{2, Unk, 4, EOS}, ids)
}

func TestShortlist(t *testing.T) {
	v := testVocab()
	v.Shortlist = 4

	// "sat" (4) and "mat" (5) fall outside the shortlist
	ids := v.EncodeLine("the sat mat")
	assert.Equal(t, []int{2, Unk, Unk, EOS}, ids)
	assert.Equal(t, 4, v.Size())

	v.Shortlist = 0
	assert.Equal(t, 6, v.Size(), "reserved ids count toward the full size")
}

func TestDecodeUnknownIDs(t *testing.T) {
	v := testVocab()
	assert.Equal(t, []string{"the", UnkToken}, v.Decode([]int{2, 99}))
}

func TestReservedEntriesForced(t *testing.T) {
	// a dictionary that aliases words onto the reserved ids
	v := New(map[string]int{"stop": EOS, "oov": Unk, "word": 2})
	assert.Equal(t, EOSToken, v.IDToToken[EOS])
	assert.Equal(t, UnkToken, v.IDToToken[Unk])
	assert.Equal(t, EOS, v.TokenToID[EOSToken])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hello": 2, "world": 3}`), 0o644))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, EOS}, v.EncodeLine("hello world"))

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
