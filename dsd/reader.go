package dsd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"hz.tools/daq"
	"hz.tools/rf"
)

// Reader decodes a DSD/NDS stream: it executes embedded instructions to
// reconstruct the channel mask, sampling rate, and scan index as it
// goes, and exposes both sequential iteration and footer-backed queries.
type Reader struct {
	r   io.ReadSeeker
	dt  DataType
	log *log.Logger

	bodyStart int64

	history  *StateHistory
	userData map[string][]byte

	currentMask  daq.Mask
	channelsOn   []uint8
	currentRate  rf.Hz
	currentIndex uint64
	started      bool

	scanCache    map[uint8]daq.Sample
	scanCacheIdx uint64
	cachePos     int

	eof bool
}

// NewReader opens r, validates the prelude, and loads the footer. If the
// footer is missing or its trailing magic doesn't match,
// ErrFileCorruptNoFooter is returned (the stream is still recoverable
// via Repair).
func NewReader(r io.ReadSeeker) (*Reader, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("dsd: reading prelude: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad prelude magic", ErrFileCorrupt)
	}
	var dtRaw uint32
	if err := binary.Read(r, binary.LittleEndian, &dtRaw); err != nil {
		return nil, fmt.Errorf("dsd: reading prelude: %w", err)
	}

	bodyStart, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("dsd: %w", err)
	}

	history, userData, err := readFooter(r)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(bodyStart, io.SeekStart); err != nil {
		return nil, fmt.Errorf("dsd: %w", err)
	}

	return &Reader{
		r:            r,
		dt:           DataType(dtRaw),
		log:          log.Default(),
		bodyStart:    bodyStart,
		history:      history,
		userData:     userData,
		currentIndex: history.StartIndex,
	}, nil
}

func readFooter(r io.ReadSeeker) (*StateHistory, map[string][]byte, error) {
	const trailerFixed = 4 + 4 // footer_byte_length + trailing MAGIC
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("dsd: %w", err)
	}
	if size < trailerFixed {
		return nil, nil, ErrFileCorruptNoFooter
	}

	if _, err := r.Seek(-4, io.SeekEnd); err != nil {
		return nil, nil, fmt.Errorf("dsd: %w", err)
	}
	var trailingMagic uint32
	if err := binary.Read(r, binary.LittleEndian, &trailingMagic); err != nil {
		return nil, nil, fmt.Errorf("dsd: %w", err)
	}
	if trailingMagic != Magic {
		return nil, nil, ErrFileCorruptNoFooter
	}

	// footer_byte_length precedes the footer text, so walk back from the
	// trailing magic to the u32 that counts exactly the bytes between
	// itself and the magic.
	var footerLen uint32
	footerStart := int64(-1)
	for p := size - 8; p >= 8 && footerStart < 0; p-- {
		if _, err := r.Seek(p, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("dsd: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &footerLen); err != nil {
			return nil, nil, fmt.Errorf("dsd: %w", err)
		}
		if int64(footerLen) == size-p-8 {
			footerStart = p + 4
		}
	}
	if footerStart < 0 {
		return nil, nil, ErrFileCorruptNoFooter
	}
	if _, err := r.Seek(footerStart, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("dsd: %w", err)
	}
	buf := make([]byte, footerLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, nil, ErrFileCorruptNoFooter
	}

	history, userData, err := UnmarshalSettings(string(buf))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrFileCorruptNoFooter, err)
	}
	return history, userData, nil
}

// History returns the footer-derived StateHistory.
func (r *Reader) History() *StateHistory {
	return r.history
}

// UserData returns the footer's persistent user-metadata map.
func (r *Reader) UserData() map[string][]byte {
	return r.userData
}

// ReadNextSample returns the next sample in the stream, applying any
// instructions encountered along the way. It returns io.EOF once the
// stream is exhausted or the current scan index exceeds the footer's
// end index.
func (r *Reader) ReadNextSample() (daq.Sample, error) {
	if r.eof {
		return daq.Sample{}, io.EOF
	}

	if r.scanCache != nil && r.cachePos < len(r.channelsOn) {
		return r.nextFromCache()
	}

	for {
		bits, isInstr, value, err := r.readScalar()
		if err == io.EOF {
			r.eof = true
			return daq.Sample{}, io.EOF
		}
		if err != nil {
			return daq.Sample{}, err
		}

		if isInstr {
			if err := r.applyInstruction(); err != nil {
				return daq.Sample{}, err
			}
			continue
		}

		// First scalar of a new scan.
		r.started = true
		r.cachePos = 0
		r.scanCache = make(map[uint8]daq.Sample, len(r.channelsOn))
		if len(r.channelsOn) == 0 {
			return daq.Sample{}, fmt.Errorf("%w: sample with empty channel mask", ErrFileCorrupt)
		}
		_ = bits
		r.scanCache[r.channelsOn[0]] = daq.Sample{
			ChannelID: r.channelsOn[0],
			ScanIndex: r.currentIndex,
			Data:      uint32(value),
		}
		for i := 1; i < len(r.channelsOn); i++ {
			_, isInstr2, v2, err := r.readScalar()
			if err != nil {
				return daq.Sample{}, err
			}
			if isInstr2 {
				return daq.Sample{}, fmt.Errorf("%w: instruction mid-scan", ErrFileCorrupt)
			}
			r.scanCache[r.channelsOn[i]] = daq.Sample{
				ChannelID: r.channelsOn[i],
				ScanIndex: r.currentIndex,
				Data:      uint32(v2),
			}
		}
		return r.nextFromCache()
	}
}

func (r *Reader) nextFromCache() (daq.Sample, error) {
	c := r.channelsOn[r.cachePos]
	s := r.scanCache[c]
	r.cachePos++
	if r.cachePos >= len(r.channelsOn) {
		if r.history != nil && r.currentIndex >= r.history.EndIndex {
			r.eof = true
		}
		r.currentIndex++
		r.scanCache = nil
	}
	return s, nil
}

// ReadNextScan reads samples until a full scan is assembled and returns
// it keyed by channel-id.
func (r *Reader) ReadNextScan() (map[uint8]daq.Sample, error) {
	out := make(map[uint8]daq.Sample)
	startIdx := r.currentIndex
	for {
		s, err := r.ReadNextSample()
		if err == io.EOF {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out[s.ChannelID] = s
		if len(out) == len(r.channelsOn) && s.ScanIndex == startIdx {
			return out, nil
		}
	}
}

// Seek repositions the reader so the next ReadNextSample returns the
// first sample of targetScanIndex. Moving forward iterates scans;
// moving backward resets to the prelude and iterates forward, since the
// NaN-interleaved format isn't otherwise randomly addressable.
func (r *Reader) Seek(targetScanIndex uint64) error {
	if r.started && targetScanIndex >= r.currentIndex {
		for r.currentIndex < targetScanIndex && !r.eof {
			if _, err := r.ReadNextScan(); err != nil && err != io.EOF {
				return err
			}
		}
		return nil
	}

	if _, err := r.r.Seek(r.bodyStart, io.SeekStart); err != nil {
		return fmt.Errorf("dsd: %w", err)
	}
	r.currentMask = daq.Mask{}
	r.channelsOn = nil
	r.currentRate = 0
	r.currentIndex = r.history.StartIndex
	r.started = false
	r.scanCache = nil
	r.cachePos = 0
	r.eof = false

	for r.currentIndex < targetScanIndex && !r.eof {
		if _, err := r.ReadNextScan(); err != nil && err != io.EOF {
			return err
		}
	}
	return nil
}

// ScanCount reports the number of non-skipped scan indices in [from, to].
func (r *Reader) ScanCount(from, to uint64) uint64 {
	return r.history.ScanCountBetween(from, to)
}

// SampleCount reports the total number of samples in the stream.
func (r *Reader) SampleCount() uint64 {
	return r.history.SampleCount
}

// ChannelsOn returns the union of channels enabled at any point in
// [from, to].
func (r *Reader) ChannelsOn(from, to uint64) []uint8 {
	return r.history.ChannelsOnBetween(from, to)
}

// RateAt returns the sampling rate in effect at scan index i.
func (r *Reader) RateAt(i uint64) rf.Hz {
	rate, _ := r.history.RateAt(i)
	return rate
}

// RatesBetween returns every rate state overlapping [from, to].
func (r *Reader) RatesBetween(from, to uint64) []RateState {
	return r.history.RatesBetween(from, to)
}

// TimeAt returns the elapsed time, in seconds, from the stream's start
// index to scan index i.
func (r *Reader) TimeAt(i uint64) float64 {
	return r.history.TimeAt(i)
}

// readScalar reads one scalar of the stream's configured width and
// reports whether its bits match the canonical instruction NaN pattern.
func (r *Reader) readScalar() (bits uint64, isInstr bool, value float64, err error) {
	switch r.dt {
	case Float64:
		var b uint64
		if err := binary.Read(r.r, binary.LittleEndian, &b); err != nil {
			return 0, false, 0, err
		}
		if b == nan64Bits {
			return b, true, 0, nil
		}
		return b, false, math.Float64frombits(b), nil
	default:
		var b uint32
		if err := binary.Read(r.r, binary.LittleEndian, &b); err != nil {
			return 0, false, 0, err
		}
		if b == nan32Bits {
			return uint64(b), true, 0, nil
		}
		return uint64(b), false, float64(math.Float32frombits(b)), nil
	}
}

// applyInstruction reads an instruction code (the NaN header scalar has
// already been consumed by readScalar) and its payload, mutating reader
// state accordingly.
func (r *Reader) applyInstruction() error {
	var code uint32
	if err := binary.Read(r.r, binary.LittleEndian, &code); err != nil {
		return fmt.Errorf("dsd: reading instruction code: %w", err)
	}

	switch code {
	case instrMaskChanged:
		var lengthBits uint32
		if err := binary.Read(r.r, binary.LittleEndian, &lengthBits); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		if lengthBits != uint32(daq.MaxChannels) {
			return fmt.Errorf("%w: unsupported mask length %d bits", ErrUnknownInstruction, lengthBits)
		}
		var mask daq.Mask
		if err := binary.Read(r.r, binary.LittleEndian, &mask); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		var count uint32
		if err := binary.Read(r.r, binary.LittleEndian, &count); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		r.currentMask = mask
		r.channelsOn = mask.ChannelsOn()

	case instrRateChanged:
		var rate uint32
		if err := binary.Read(r.r, binary.LittleEndian, &rate); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		r.currentRate = rf.Hz(rate)

	case instrIndexChanged:
		var idx uint64
		if err := binary.Read(r.r, binary.LittleEndian, &idx); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		// The Writer only ever rejects backward jumps at write time; a
		// remapped/edited stream can still carry one here. Reader
		// tolerates it (the scenario this is read back from is recovery
		// and inspection, not acquisition) but logs it, since a caller
		// correlating ScanIndex across channels should know.
		if r.started && idx < r.currentIndex {
			r.log.Warn("dsd: index change moves backward", "from", r.currentIndex, "to", idx)
		}
		r.currentIndex = idx

	case instrUserData:
		var nameLen uint32
		if err := binary.Read(r.r, binary.LittleEndian, &nameLen); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r.r, nameBuf); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		var dataLen uint32
		if err := binary.Read(r.r, binary.LittleEndian, &dataLen); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		dataBuf := make([]byte, dataLen)
		if _, err := io.ReadFull(r.r, dataBuf); err != nil {
			return fmt.Errorf("dsd: %w", err)
		}
		if r.userData == nil {
			r.userData = make(map[string][]byte)
		}
		r.userData[string(nameBuf)] = dataBuf

	default:
		return fmt.Errorf("%w: code %d", ErrUnknownInstruction, code)
	}

	return nil
}

// vim: foldmethod=marker
