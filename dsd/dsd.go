// Package dsd implements the DSD/NDS self-describing stream format: an
// instruction-interleaved sequence of typed scalar samples with a
// serialized metadata footer, supporting mid-stream mask/rate changes,
// dropped-scan tracking, user metadata, and defensive recovery of a file
// whose footer never got written.
package dsd

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"hz.tools/daq"
	"hz.tools/daq/settings"
	"hz.tools/rf"
)

// Magic is the four-byte little-endian tag that opens and closes every
// DSD/NDS file.
const Magic uint32 = 0x0000f117

// DataType selects the width of the scalars making up the sample stream.
type DataType uint32

const (
	// Float32 stores every scalar as an IEEE-754 binary32 value.
	Float32 DataType = 0
	// Float64 stores every scalar as an IEEE-754 binary64 value.
	Float64 DataType = 1
)

func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("DataType(%d)", uint32(dt))
	}
}

const (
	instrMaskChanged  uint32 = 1
	instrRateChanged  uint32 = 2
	instrIndexChanged uint32 = 3
	instrUserData     uint32 = 4
)

// Canonical instruction NaN bit patterns: exponent all-ones, quiet-NaN bit
// set, mantissa otherwise zero. A scalar read from the stream is an
// instruction iff its bits equal exactly one of these; any other NaN
// bit pattern is read as ordinary data. SanitizeData32/SanitizeData64
// keep data scalars from carrying these exact patterns.
const (
	nan32Bits uint32 = 0x7fc00000
	nan64Bits uint64 = 0x7ff8000000000000
)

var (
	// ErrOutOfOrder is returned by Writer.WriteSample when a sample's
	// scan_index is less than the scan currently being written.
	ErrOutOfOrder = fmt.Errorf("dsd: sample out of order")

	// ErrFileCorrupt is returned when the stream body cannot be parsed
	// (bad prelude magic, an empty channel mask, an instruction where a
	// scan's data scalar is expected).
	ErrFileCorrupt = fmt.Errorf("dsd: file corrupt")

	// ErrFileCorruptNoFooter is returned when the prelude and magic are
	// valid but the trailing footer is missing or its magic doesn't
	// match; the file is still recoverable via Repair.
	ErrFileCorruptNoFooter = fmt.Errorf("dsd: file corrupt: missing or invalid footer")

	// ErrUnknownInstruction is returned when an instruction code isn't
	// one this reader understands — typically a newer file format.
	ErrUnknownInstruction = fmt.Errorf("dsd: unknown instruction")
)

// SanitizeData32 and SanitizeData64 replace any bit pattern that would be
// misread as an in-band instruction (a canonical, zero-mantissa-besides-
// the-quiet-bit NaN) with positive infinity, so arithmetic producing a
// NaN on the producer side can never corrupt the stream's self-framing.
func SanitizeData32(bits uint32) uint32 {
	if bits == nan32Bits {
		return math.Float32bits(float32(math.Inf(1)))
	}
	return bits
}

func SanitizeData64(bits uint64) uint64 {
	if bits == nan64Bits {
		return math.Float64bits(math.Inf(1))
	}
	return bits
}

// MaskState records a period during which the channel mask was constant.
type MaskState struct {
	Mask       daq.Mask
	StartIndex uint64
	EndIndex   uint64
}

// ChannelsOn returns the ordered channel-ids enabled during this period.
func (ms MaskState) ChannelsOn() []uint8 {
	return ms.Mask.ChannelsOn()
}

// IDToPos returns the dense position of chanID within ChannelsOn, and
// whether chanID was on at all.
func (ms MaskState) IDToPos(chanID uint8) (int, bool) {
	for i, c := range ms.ChannelsOn() {
		if c == chanID {
			return i, true
		}
	}
	return 0, false
}

// RateState records a period during which the sampling rate was constant.
type RateState struct {
	RateHz     uint32
	StartIndex uint64
	EndIndex   uint64
}

// SkippedRange is an inclusive range of scan indices the producer
// dropped.
type SkippedRange struct {
	From uint64
	To   uint64
}

func (r SkippedRange) Len() uint64 {
	return r.To - r.From + 1
}

// StateHistory is the stream-level metadata accumulated across a DSD/NDS
// file's lifetime: every mask/rate period, every skipped range, and
// summary counters. It's mutated only on mask/rate/skip events and on
// each scan close, and serialized once into the footer at Writer.End.
type StateHistory struct {
	StartIndex           uint64
	EndIndex             uint64
	SampleCount          uint64
	ScanCount            uint64
	MaxUniqueChannelsUsed int

	MaskStates    []MaskState
	RateStates    []RateState
	SkippedRanges []SkippedRange
}

// MaskStateAt returns the mask state covering scan index i, if any.
func (h *StateHistory) MaskStateAt(i uint64) (MaskState, bool) {
	for _, ms := range h.MaskStates {
		if i >= ms.StartIndex && i <= ms.EndIndex {
			return ms, true
		}
	}
	return MaskState{}, false
}

// RateAt returns the sampling rate in effect at scan index i.
func (h *StateHistory) RateAt(i uint64) (rf.Hz, bool) {
	for _, rs := range h.RateStates {
		if i >= rs.StartIndex && i <= rs.EndIndex {
			return rf.Hz(rs.RateHz), true
		}
	}
	return 0, false
}

// RatesBetween returns every distinct rate state overlapping [from, to].
func (h *StateHistory) RatesBetween(from, to uint64) []RateState {
	var out []RateState
	for _, rs := range h.RateStates {
		if rs.EndIndex >= from && rs.StartIndex <= to {
			out = append(out, rs)
		}
	}
	return out
}

// ChannelsOnBetween returns the union of channels_on across every mask
// state overlapping [from, to].
func (h *StateHistory) ChannelsOnBetween(from, to uint64) []uint8 {
	var mask daq.Mask
	for _, ms := range h.MaskStates {
		if ms.EndIndex >= from && ms.StartIndex <= to {
			for _, c := range ms.ChannelsOn() {
				mask.Set(c)
			}
		}
	}
	return mask.ChannelsOn()
}

// IsSkipped reports whether scan index i falls within a skipped range.
func (h *StateHistory) IsSkipped(i uint64) bool {
	for _, sr := range h.SkippedRanges {
		if i >= sr.From && i <= sr.To {
			return true
		}
	}
	return false
}

// ScanCountBetween counts scan indices in [from, to] that aren't
// skipped.
func (h *StateHistory) ScanCountBetween(from, to uint64) uint64 {
	total := to - from + 1
	var skipped uint64
	for _, sr := range h.SkippedRanges {
		lo, hi := sr.From, sr.To
		if lo < from {
			lo = from
		}
		if hi > to {
			hi = to
		}
		if lo <= hi {
			skipped += hi - lo + 1
		}
	}
	return total - skipped
}

// TimeAt computes the elapsed time from StartIndex to scan index i,
// summing region_len/region_rate over every rate region in [StartIndex, i].
func (h *StateHistory) TimeAt(i uint64) float64 {
	var total float64
	for _, rs := range h.RateStates {
		if rs.RateHz == 0 {
			continue
		}
		lo, hi := rs.StartIndex, rs.EndIndex
		if lo < h.StartIndex {
			lo = h.StartIndex
		}
		if hi > i {
			hi = i
		}
		if lo > hi {
			continue
		}
		total += float64(hi-lo+1) / float64(rs.RateHz)
	}
	return total
}

// MarshalSettings serializes h and the accompanying user metadata map
// into the INI-grammar footer text.
func MarshalSettings(h *StateHistory, userData map[string][]byte) string {
	s := settings.New()

	s.Set("StateHistory", "start_index", strconv.FormatUint(h.StartIndex, 10))
	s.Set("StateHistory", "end_index", strconv.FormatUint(h.EndIndex, 10))
	s.Set("StateHistory", "sample_count", strconv.FormatUint(h.SampleCount, 10))
	s.Set("StateHistory", "scan_count", strconv.FormatUint(h.ScanCount, 10))
	s.Set("StateHistory", "max_unique_channels_used", strconv.Itoa(h.MaxUniqueChannelsUsed))
	s.Set("StateHistory", "mask_state_count", strconv.Itoa(len(h.MaskStates)))
	s.Set("StateHistory", "rate_state_count", strconv.Itoa(len(h.RateStates)))
	s.Set("StateHistory", "skipped_range_count", strconv.Itoa(len(h.SkippedRanges)))

	for i, ms := range h.MaskStates {
		sec := fmt.Sprintf("MaskState.%d", i)
		buf := make([]byte, len(ms.Mask)*8)
		for w, word := range ms.Mask {
			for b := 0; b < 8; b++ {
				buf[w*8+b] = byte(word >> (8 * b))
			}
		}
		s.Set(sec, "mask", hex.EncodeToString(buf))
		s.Set(sec, "start_index", strconv.FormatUint(ms.StartIndex, 10))
		s.Set(sec, "end_index", strconv.FormatUint(ms.EndIndex, 10))
	}

	for i, rs := range h.RateStates {
		sec := fmt.Sprintf("RateState.%d", i)
		s.Set(sec, "rate_hz", strconv.FormatUint(uint64(rs.RateHz), 10))
		s.Set(sec, "start_index", strconv.FormatUint(rs.StartIndex, 10))
		s.Set(sec, "end_index", strconv.FormatUint(rs.EndIndex, 10))
	}

	for i, sr := range h.SkippedRanges {
		sec := fmt.Sprintf("SkippedRange.%d", i)
		s.Set(sec, "from", strconv.FormatUint(sr.From, 10))
		s.Set(sec, "to", strconv.FormatUint(sr.To, 10))
	}

	names := make([]string, 0, len(userData))
	for name := range userData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.Set("UserData", name, base64.RawStdEncoding.EncodeToString(userData[name]))
	}

	return s.Marshal()
}

// UnmarshalSettings parses footer text back into a StateHistory and user
// metadata map.
func UnmarshalSettings(text string) (*StateHistory, map[string][]byte, error) {
	s := settings.Parse(text)
	h := &StateHistory{}

	get := func(sec, key string) string {
		v, _ := s.Get(sec, key)
		return v
	}
	mustUint := func(sec, key string) (uint64, error) {
		v, ok := s.Get(sec, key)
		if !ok {
			return 0, fmt.Errorf("dsd: footer missing %s.%s", sec, key)
		}
		return strconv.ParseUint(v, 10, 64)
	}

	var err error
	if h.StartIndex, err = mustUint("StateHistory", "start_index"); err != nil {
		return nil, nil, err
	}
	if h.EndIndex, err = mustUint("StateHistory", "end_index"); err != nil {
		return nil, nil, err
	}
	if h.SampleCount, err = mustUint("StateHistory", "sample_count"); err != nil {
		return nil, nil, err
	}
	if h.ScanCount, err = mustUint("StateHistory", "scan_count"); err != nil {
		return nil, nil, err
	}
	if v := get("StateHistory", "max_unique_channels_used"); v != "" {
		n, _ := strconv.Atoi(v)
		h.MaxUniqueChannelsUsed = n
	}

	maskCount, _ := strconv.Atoi(get("StateHistory", "mask_state_count"))
	for i := 0; i < maskCount; i++ {
		sec := fmt.Sprintf("MaskState.%d", i)
		raw, err := hex.DecodeString(get(sec, "mask"))
		if err != nil {
			return nil, nil, fmt.Errorf("dsd: footer mask state %d: %w", i, err)
		}
		var ms MaskState
		for w := 0; w*8 < len(raw); w++ {
			var word uint64
			for b := 0; b < 8 && w*8+b < len(raw); b++ {
				word |= uint64(raw[w*8+b]) << (8 * b)
			}
			if w < len(ms.Mask) {
				ms.Mask[w] = word
			}
		}
		ms.StartIndex, _ = strconv.ParseUint(get(sec, "start_index"), 10, 64)
		ms.EndIndex, _ = strconv.ParseUint(get(sec, "end_index"), 10, 64)
		h.MaskStates = append(h.MaskStates, ms)
	}

	rateCount, _ := strconv.Atoi(get("StateHistory", "rate_state_count"))
	for i := 0; i < rateCount; i++ {
		sec := fmt.Sprintf("RateState.%d", i)
		var rs RateState
		rateHz, _ := strconv.ParseUint(get(sec, "rate_hz"), 10, 32)
		rs.RateHz = uint32(rateHz)
		rs.StartIndex, _ = strconv.ParseUint(get(sec, "start_index"), 10, 64)
		rs.EndIndex, _ = strconv.ParseUint(get(sec, "end_index"), 10, 64)
		h.RateStates = append(h.RateStates, rs)
	}

	skipCount, _ := strconv.Atoi(get("StateHistory", "skipped_range_count"))
	for i := 0; i < skipCount; i++ {
		sec := fmt.Sprintf("SkippedRange.%d", i)
		var sr SkippedRange
		sr.From, _ = strconv.ParseUint(get(sec, "from"), 10, 64)
		sr.To, _ = strconv.ParseUint(get(sec, "to"), 10, 64)
		h.SkippedRanges = append(h.SkippedRanges, sr)
	}

	userData := make(map[string][]byte)
	for _, key := range s.Keys("UserData") {
		if strings.Contains(key, "\x00") {
			continue
		}
		v, _ := s.Get("UserData", key)
		decoded, err := base64.RawStdEncoding.DecodeString(v)
		if err != nil {
			return nil, nil, fmt.Errorf("dsd: footer user data %q: %w", key, err)
		}
		userData[key] = decoded
	}

	return h, userData, nil
}

// vim: foldmethod=marker
