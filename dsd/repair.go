package dsd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"hz.tools/daq"
)

// Repair reads a possibly-corrupt DSD/NDS stream from src — one whose
// footer is missing or truncated because the writer never called End —
// using the same instruction/scalar decoder as Reader but without
// relying on the footer at all. Every sample it can recover is written
// to a fresh, well-formed stream on dst. It returns the number of
// samples recovered.
func Repair(src io.Reader, dst io.Writer) (int, error) {
	br := bufio.NewReader(src)

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return 0, fmt.Errorf("dsd: repair: reading prelude: %w", err)
	}
	if magic != Magic {
		return 0, fmt.Errorf("%w: bad prelude magic", ErrFileCorrupt)
	}
	var dtRaw uint32
	if err := binary.Read(br, binary.LittleEndian, &dtRaw); err != nil {
		return 0, fmt.Errorf("dsd: repair: reading prelude: %w", err)
	}
	dt := DataType(dtRaw)

	w, err := NewWriter(dst, dt)
	if err != nil {
		return 0, err
	}

	rep := &repairState{r: br, dt: dt}

	recovered := 0
	for {
		s, ok, err := rep.next()
		if err != nil {
			break // defensive: stop at first unreadable point, keep what we recovered
		}
		if !ok {
			break
		}
		if werr := w.WriteSample(s); werr != nil {
			break
		}
		recovered++
	}

	if err := w.End(); err != nil {
		return recovered, err
	}
	return recovered, nil
}

// repairState is a minimal, footer-free twin of Reader's decode loop: it
// replays instructions and scalars from the prelude to the first error
// or EOF, with no expectation of ever reaching a valid footer.
type repairState struct {
	r  io.Reader
	dt DataType

	mask         daq.Mask
	channelsOn   []uint8
	currentIndex uint64
	started      bool

	scanCache map[uint8]daq.Sample
	cachePos  int
}

func (s *repairState) next() (daq.Sample, bool, error) {
	if s.scanCache != nil && s.cachePos < len(s.channelsOn) {
		return s.fromCache()
	}

	for {
		bits, isInstr, value, err := s.readScalar()
		if err == io.EOF {
			return daq.Sample{}, false, nil
		}
		if err != nil {
			return daq.Sample{}, false, err
		}

		if isInstr {
			if err := s.apply(); err != nil {
				return daq.Sample{}, false, nil
			}
			continue
		}
		_ = bits

		if len(s.channelsOn) == 0 {
			return daq.Sample{}, false, nil
		}

		s.started = true
		s.cachePos = 0
		s.scanCache = make(map[uint8]daq.Sample, len(s.channelsOn))
		s.scanCache[s.channelsOn[0]] = daq.Sample{
			ChannelID: s.channelsOn[0],
			ScanIndex: s.currentIndex,
			Data:      uint32(value),
		}
		for i := 1; i < len(s.channelsOn); i++ {
			_, isInstr2, v2, err := s.readScalar()
			if err != nil || isInstr2 {
				// Incomplete trailing scan: the crash cut the stream off
				// mid-tuple. Discard it rather than emit a partial scan.
				return daq.Sample{}, false, nil
			}
			s.scanCache[s.channelsOn[i]] = daq.Sample{
				ChannelID: s.channelsOn[i],
				ScanIndex: s.currentIndex,
				Data:      uint32(v2),
			}
		}
		return s.fromCache()
	}
}

func (s *repairState) fromCache() (daq.Sample, bool, error) {
	c := s.channelsOn[s.cachePos]
	sample := s.scanCache[c]
	s.cachePos++
	if s.cachePos >= len(s.channelsOn) {
		s.currentIndex++
		s.scanCache = nil
	}
	return sample, true, nil
}

func (s *repairState) readScalar() (bits uint64, isInstr bool, value float64, err error) {
	switch s.dt {
	case Float64:
		var b uint64
		if err := binary.Read(s.r, binary.LittleEndian, &b); err != nil {
			return 0, false, 0, err
		}
		if b == nan64Bits {
			return b, true, 0, nil
		}
		return b, false, math.Float64frombits(b), nil
	default:
		var b uint32
		if err := binary.Read(s.r, binary.LittleEndian, &b); err != nil {
			return 0, false, 0, err
		}
		if b == nan32Bits {
			return uint64(b), true, 0, nil
		}
		return uint64(b), false, float64(math.Float32frombits(b)), nil
	}
}

func (s *repairState) apply() error {
	var code uint32
	if err := binary.Read(s.r, binary.LittleEndian, &code); err != nil {
		return err
	}
	switch code {
	case instrMaskChanged:
		var lengthBits uint32
		if err := binary.Read(s.r, binary.LittleEndian, &lengthBits); err != nil {
			return err
		}
		if lengthBits != uint32(daq.MaxChannels) {
			return fmt.Errorf("%w: unsupported mask length", ErrUnknownInstruction)
		}
		var mask daq.Mask
		if err := binary.Read(s.r, binary.LittleEndian, &mask); err != nil {
			return err
		}
		var count uint32
		if err := binary.Read(s.r, binary.LittleEndian, &count); err != nil {
			return err
		}
		s.mask = mask
		s.channelsOn = mask.ChannelsOn()

	case instrRateChanged:
		var rate uint32
		return binary.Read(s.r, binary.LittleEndian, &rate)

	case instrIndexChanged:
		var idx uint64
		if err := binary.Read(s.r, binary.LittleEndian, &idx); err != nil {
			return err
		}
		s.currentIndex = idx

	case instrUserData:
		var nameLen uint32
		if err := binary.Read(s.r, binary.LittleEndian, &nameLen); err != nil {
			return err
		}
		if _, err := io.CopyN(io.Discard, s.r, int64(nameLen)); err != nil {
			return err
		}
		var dataLen uint32
		if err := binary.Read(s.r, binary.LittleEndian, &dataLen); err != nil {
			return err
		}
		_, err := io.CopyN(io.Discard, s.r, int64(dataLen))
		return err

	default:
		return fmt.Errorf("%w: code %d", ErrUnknownInstruction, code)
	}
	return nil
}

// vim: foldmethod=marker
