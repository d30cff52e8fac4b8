package settings_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hz.tools/daq/settings"
)

func TestParseGetSet(t *testing.T) {
	text := "[StateHistory]\n" +
		"start_index = \"0\"\n" +
		"end_index = \"9\"\n" +
		"[UserData]\n" +
		"operator = \"jdoe\"\n"

	s := settings.Parse(text)

	v, ok := s.Get("StateHistory", "start_index")
	require.True(t, ok)
	assert.Equal(t, "0", v)

	v, ok = s.Get("UserData", "operator")
	require.True(t, ok)
	assert.Equal(t, "jdoe", v)

	_, ok = s.Get("StateHistory", "missing")
	assert.False(t, ok)
}

func TestRoundTripIdentity(t *testing.T) {
	text := "[a]\nfoo = \"bar\"\nbaz = \"quux\"\n[b]\nx = \"1\"\n"

	s1 := settings.Parse(text)
	marshaled := s1.Marshal()
	s2 := settings.Parse(marshaled)

	for _, sec := range s1.Sections() {
		for _, key := range s1.Keys(sec) {
			want, _ := s1.Get(sec, key)
			got, ok := s2.Get(sec, key)
			require.True(t, ok)
			assert.Equal(t, want, got)
		}
	}
}

func TestPreservesUnknownLines(t *testing.T) {
	text := "[a]\n; a hand-written comment\nfoo = \"bar\"\n"
	s := settings.Parse(text)
	out := s.Marshal()
	assert.Contains(t, out, "; a hand-written comment")
	assert.Contains(t, out, "foo = \"bar\"")
}

func TestSetCreatesSection(t *testing.T) {
	s := settings.New()
	s.Set("new", "k", "v")
	v, ok := s.Get("new", "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, []string{"new"}, s.Sections())
}

// vim: foldmethod=marker
