// Package settings implements the INI-shaped text grammar of the DSD/NDS
// stream footer. The daemon's own configuration is YAML and does not go
// through this package.
package settings

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sectionRe = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	kvRe      = regexp.MustCompile(`^\s*([A-Za-z0-9./_]+)\s*=\s*"?([^\r\n="]*)"?\s*$`)
)

// Settings is a parsed INI-grammar document: an ordered list of sections,
// each an ordered list of key/value pairs, plus verbatim passthrough for
// every line the grammar doesn't recognize as a section header or
// key/value pair.
type Settings struct {
	order []string
	data  map[string]*section
}

type section struct {
	keys   []string
	values map[string]string
}

// New returns an empty Settings document.
func New() *Settings {
	return &Settings{data: make(map[string]*section)}
}

// Get returns the value for key within section, and whether it was
// present.
func (s *Settings) Get(sectionName, key string) (string, bool) {
	sec, ok := s.data[sectionName]
	if !ok {
		return "", false
	}
	v, ok := sec.values[key]
	return v, ok
}

// Set stores key=value within section, creating the section if it
// doesn't already exist. Re-setting an existing key updates its value in
// place without disturbing its position.
func (s *Settings) Set(sectionName, key, value string) {
	sec, ok := s.data[sectionName]
	if !ok {
		sec = &section{values: make(map[string]string)}
		s.data[sectionName] = sec
		s.order = append(s.order, sectionName)
	}
	if _, exists := sec.values[key]; !exists {
		sec.keys = append(sec.keys, key)
	}
	sec.values[key] = value
}

// Sections returns the section names in the order they were first seen
// (or first Set).
func (s *Settings) Sections() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Keys returns the keys of sectionName in the order they were first seen.
func (s *Settings) Keys(sectionName string) []string {
	sec, ok := s.data[sectionName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(sec.keys))
	for _, k := range sec.keys {
		if !strings.HasPrefix(k, verbatimPrefix) {
			out = append(out, k)
		}
	}
	return out
}

// Parse reads an INI-grammar document. Lines matching neither the
// section-header nor the key/value regex are preserved verbatim and
// replayed at the same position on Marshal, so round-tripping a
// hand-edited file doesn't churn lines this package doesn't understand.
func Parse(text string) *Settings {
	s := New()
	current := ""
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for _, line := range lines {
		if m := sectionRe.FindStringSubmatch(line); m != nil {
			current = m[1]
			if _, ok := s.data[current]; !ok {
				s.data[current] = &section{values: make(map[string]string)}
				s.order = append(s.order, current)
			}
			continue
		}
		if m := kvRe.FindStringSubmatch(line); m != nil {
			key, value := m[1], m[2]
			if current == "" {
				current = ""
			}
			s.Set(current, key, value)
			continue
		}
		s.appendVerbatim(current, line)
	}
	return s
}

// appendVerbatim records an unrecognized line so Marshal can replay it in
// its original position.
func (s *Settings) appendVerbatim(sectionName, line string) {
	sec, ok := s.data[sectionName]
	if !ok {
		sec = &section{values: make(map[string]string)}
		s.data[sectionName] = sec
		s.order = append(s.order, sectionName)
	}
	sec.keys = append(sec.keys, verbatimPrefix+line)
}

// verbatimPrefix marks a key slot in section.keys that's really a
// passthrough line, not a key/value pair; chosen so it can never collide
// with a real key, since keys are restricted to [A-Za-z0-9./_] by kvRe.
const verbatimPrefix = "\x00verbatim\x00"

// Marshal serializes the document back to INI-grammar text, replaying
// unrecognized lines verbatim in their original position.
func (s *Settings) Marshal() string {
	var b strings.Builder
	for _, name := range s.order {
		if name != "" {
			fmt.Fprintf(&b, "[%s]\n", name)
		}
		sec := s.data[name]
		for _, k := range sec.keys {
			if strings.HasPrefix(k, verbatimPrefix) {
				b.WriteString(strings.TrimPrefix(k, verbatimPrefix))
				b.WriteString("\n")
				continue
			}
			fmt.Fprintf(&b, "%s = \"%s\"\n", k, sec.values[k])
		}
	}
	return b.String()
}

// vim: foldmethod=marker
