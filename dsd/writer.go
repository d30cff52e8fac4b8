package dsd

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"hz.tools/daq"
	"hz.tools/rf"
)

type userDataEntry struct {
	name string
	data []byte
}

// Writer encodes scans into the DSD/NDS format: it interleaves control
// instructions with typed scalar samples, and serializes a metadata
// footer on End.
type Writer struct {
	w  io.Writer
	dt DataType

	history  StateHistory
	userData map[string][]byte

	started      bool
	currentIndex uint64
	currentMask  daq.Mask
	channelsOn   []uint8
	idToPos      map[uint8]int
	currentRate  rf.Hz

	// pendingRate stages a rate requested by SetSamplingRate while a scan
	// is still being written. The scan presently pending keeps the old
	// rate; pendingRate is applied, and RATE_CHANGED queued, only once
	// writing actually advances to the next scan.
	pendingRate *rf.Hz

	pendingScan map[uint8]uint32

	// removeAfter schedules a channel to leave the mask once the scan
	// being written passes a future index. An explicit WriteSample for
	// that channel before the removal takes effect cancels it: the most
	// recent explicit operation on a channel wins, matching this
	// module's decision on the upstream "removeChannelAfter" ambiguity.
	removeAfter map[uint8]uint64

	queuedMaskChanged  bool
	queuedRateChanged  bool
	queuedIndexChanged bool
	queuedUserData     []userDataEntry

	ended bool
	err   error
}

// NewWriter opens w for writing a DSD/NDS stream of the given scalar
// width, and writes the MAGIC + data-type prelude immediately.
func NewWriter(w io.Writer, dt DataType) (*Writer, error) {
	wr := &Writer{
		w:        w,
		dt:       dt,
		userData: make(map[string][]byte),
	}
	if err := binary.Write(w, binary.LittleEndian, Magic); err != nil {
		return nil, fmt.Errorf("dsd: writing prelude: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(dt)); err != nil {
		return nil, fmt.Errorf("dsd: writing prelude: %w", err)
	}
	return wr, nil
}

// ScheduleRemoveChannel schedules chanID to leave the channel mask once
// writing advances past afterScanIndex. Calling it again for the same
// channel replaces the earlier schedule, and writing an explicit sample
// for chanID before the removal takes effect cancels it outright.
func (w *Writer) ScheduleRemoveChannel(chanID uint8, afterScanIndex uint64) {
	if w.removeAfter == nil {
		w.removeAfter = make(map[uint8]uint64)
	}
	w.removeAfter[chanID] = afterScanIndex
}

func (w *Writer) applyScheduledRemovals() {
	if len(w.removeAfter) == 0 {
		return
	}
	for chanID, after := range w.removeAfter {
		if w.currentIndex <= after || !w.currentMask.IsSet(chanID) {
			continue
		}
		w.closeMaskState()
		w.currentMask.Clear(chanID)
		w.rebuildChannelsOn()
		w.queuedMaskChanged = true
		delete(w.removeAfter, chanID)
	}
}

func (w *Writer) rebuildChannelsOn() {
	w.channelsOn = w.currentMask.ChannelsOn()
	w.idToPos = make(map[uint8]int, len(w.channelsOn))
	for i, c := range w.channelsOn {
		w.idToPos[c] = i
	}
}

// closeMaskState closes the outgoing MaskState once per scan: if an
// earlier mutation already closed it for w.currentIndex,
// queuedMaskChanged is already set and there's nothing left to close.
func (w *Writer) closeMaskState() {
	if w.queuedMaskChanged || w.currentMask.Count() == 0 {
		return
	}
	end := w.currentIndex
	if end > 0 {
		end--
	}
	w.history.MaskStates = append(w.history.MaskStates, MaskState{
		Mask:       w.currentMask,
		StartIndex: w.maskStateStart(),
		EndIndex:   end,
	})
}

// SetSamplingRate requests a rate change. Before the first sample it sets
// the stream's initial rate directly; afterward it only stages the
// change — the scan currently pending was already being written under
// the old rate, so the switch is deferred until writing moves on to the
// next scan (see applyPendingRateChange).
func (w *Writer) SetSamplingRate(rate rf.Hz) {
	if !w.started {
		w.currentRate = rate
		return
	}
	if rate == w.currentRate {
		w.pendingRate = nil
		return
	}
	next := rate
	w.pendingRate = &next
}

// applyPendingRateChange closes out the old RateState at closedAt — the
// index of the scan that just finished, which still belongs to the old
// rate — and switches currentRate so the new RateState (implicitly
// starting at closedAt+1, via rateStateStart) and its RATE_CHANGED
// instruction apply to the scan now starting. Called only when writing
// has just advanced past closedAt, so the deferred instruction lands
// ahead of that next scan's own scalars rather than the one that was
// pending when SetSamplingRate was called.
func (w *Writer) applyPendingRateChange(closedAt uint64) {
	if w.pendingRate == nil {
		return
	}
	if n := len(w.history.RateStates); n == 0 || w.history.RateStates[n-1].EndIndex < closedAt {
		w.history.RateStates = append(w.history.RateStates, RateState{
			RateHz:     uint32(w.currentRate),
			StartIndex: w.rateStateStart(),
			EndIndex:   closedAt,
		})
	}
	w.currentRate = *w.pendingRate
	w.pendingRate = nil
	w.queuedRateChanged = true
}

func (w *Writer) rateStateStart() uint64 {
	if n := len(w.history.RateStates); n > 0 {
		return w.history.RateStates[n-1].EndIndex + 1
	}
	return w.history.StartIndex
}

// WriteUserData stages a USER_DATA instruction to be emitted immediately
// before the next scan's scalars, and records name/bytes in the
// persistent metadata map serialized into the footer.
func (w *Writer) WriteUserData(name string, data []byte) error {
	w.queuedUserData = append(w.queuedUserData, userDataEntry{name: name, data: data})
	cp := make([]byte, len(data))
	copy(cp, data)
	w.userData[name] = cp
	return nil
}

// WriteSample appends one channel-scalar to the stream, per the
// write_sample contract: out-of-order scan indices fail, a higher scan
// index flushes the pending scan and advances, and a channel outside the
// current mask extends it.
func (w *Writer) WriteSample(s daq.Sample) error {
	if w.ended {
		return fmt.Errorf("dsd: write after End")
	}
	if w.err != nil {
		return w.err
	}

	if !w.started {
		w.started = true
		w.currentIndex = s.ScanIndex
		w.history.StartIndex = s.ScanIndex
		w.pendingScan = make(map[uint8]uint32)
		w.idToPos = make(map[uint8]int)
		w.history.RateStates = append(w.history.RateStates, RateState{
			RateHz:     uint32(w.currentRate),
			StartIndex: s.ScanIndex,
			EndIndex:   s.ScanIndex,
		})
	}

	if s.ScanIndex < w.currentIndex {
		w.err = ErrOutOfOrder
		return ErrOutOfOrder
	}

	if s.ScanIndex > w.currentIndex {
		if err := w.flushScan(); err != nil {
			w.err = err
			return err
		}
		prevIndex := w.currentIndex
		gap := s.ScanIndex - w.currentIndex
		if gap > 1 {
			w.history.SkippedRanges = append(w.history.SkippedRanges, SkippedRange{
				From: w.currentIndex + 1,
				To:   s.ScanIndex - 1,
			})
			w.queuedIndexChanged = true
		}
		w.currentIndex = s.ScanIndex
		w.pendingScan = make(map[uint8]uint32)
		w.applyScheduledRemovals()
		w.applyPendingRateChange(prevIndex)
	}

	delete(w.removeAfter, s.ChannelID)

	if !w.currentMask.IsSet(s.ChannelID) {
		w.addChannel(s.ChannelID)
	}

	w.pendingScan[s.ChannelID] = s.Data
	return nil
}

func (w *Writer) addChannel(chanID uint8) {
	w.closeMaskState()
	w.currentMask.Set(chanID)
	w.rebuildChannelsOn()
	if len(w.channelsOn) > w.history.MaxUniqueChannelsUsed {
		w.history.MaxUniqueChannelsUsed = len(w.channelsOn)
	}
	w.queuedMaskChanged = true
}

func (w *Writer) maskStateStart() uint64 {
	if n := len(w.history.MaskStates); n > 0 {
		return w.history.MaskStates[n-1].EndIndex + 1
	}
	return w.history.StartIndex
}

// flushScan writes any instructions queued for the scan currently
// pending, then its dense tuple of scalars, and advances the summary
// counters.
func (w *Writer) flushScan() error {
	if !w.started {
		return nil
	}

	if w.queuedMaskChanged {
		if err := w.writeMaskChanged(); err != nil {
			return err
		}
		w.queuedMaskChanged = false
	}
	if w.queuedRateChanged {
		if err := w.writeRateChanged(); err != nil {
			return err
		}
		w.queuedRateChanged = false
	}
	if w.queuedIndexChanged {
		if err := w.writeIndexChanged(w.currentIndex); err != nil {
			return err
		}
		w.queuedIndexChanged = false
	}
	for _, ud := range w.queuedUserData {
		if err := w.writeUserDataInstr(ud); err != nil {
			return err
		}
	}
	w.queuedUserData = nil

	for _, c := range w.channelsOn {
		if err := w.writeDataScalar(w.pendingScan[c]); err != nil {
			return err
		}
	}

	w.history.ScanCount++
	w.history.SampleCount += uint64(len(w.channelsOn))
	if w.currentIndex > w.history.EndIndex {
		w.history.EndIndex = w.currentIndex
	}
	return nil
}

func (w *Writer) writeDataScalar(data uint32) error {
	switch w.dt {
	case Float64:
		bits := math.Float64bits(float64(data))
		bits = SanitizeData64(bits)
		return binary.Write(w.w, binary.LittleEndian, bits)
	default:
		bits := math.Float32bits(float32(data))
		bits = SanitizeData32(bits)
		return binary.Write(w.w, binary.LittleEndian, bits)
	}
}

func (w *Writer) writeInstrHeader(code uint32) error {
	switch w.dt {
	case Float64:
		if err := binary.Write(w.w, binary.LittleEndian, nan64Bits); err != nil {
			return err
		}
	default:
		if err := binary.Write(w.w, binary.LittleEndian, nan32Bits); err != nil {
			return err
		}
	}
	return binary.Write(w.w, binary.LittleEndian, code)
}

func (w *Writer) writeMaskChanged() error {
	if err := w.writeInstrHeader(instrMaskChanged); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, uint32(daq.MaxChannels)); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, w.currentMask); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, uint32(w.currentMask.Count()))
}

func (w *Writer) writeRateChanged() error {
	if err := w.writeInstrHeader(instrRateChanged); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, uint32(w.currentRate))
}

func (w *Writer) writeIndexChanged(idx uint64) error {
	if err := w.writeInstrHeader(instrIndexChanged); err != nil {
		return err
	}
	return binary.Write(w.w, binary.LittleEndian, idx)
}

func (w *Writer) writeUserDataInstr(ud userDataEntry) error {
	if err := w.writeInstrHeader(instrUserData); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(ud.name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, ud.name); err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(ud.data))); err != nil {
		return err
	}
	_, err := w.w.Write(ud.data)
	return err
}

// End flushes the final pending scan, serializes the footer, and
// finishes the stream. The underlying writer is left open for the caller
// to close.
func (w *Writer) End() error {
	if w.ended {
		return nil
	}
	w.ended = true

	if err := w.flushScan(); err != nil {
		return err
	}

	end := w.currentIndex
	if len(w.history.MaskStates) == 0 || w.history.MaskStates[len(w.history.MaskStates)-1].EndIndex < end {
		w.history.MaskStates = append(w.history.MaskStates, MaskState{
			Mask:       w.currentMask,
			StartIndex: w.maskStateStart(),
			EndIndex:   end,
		})
	}
	if len(w.history.RateStates) == 0 || w.history.RateStates[len(w.history.RateStates)-1].EndIndex < end {
		w.history.RateStates = append(w.history.RateStates, RateState{
			RateHz:     uint32(w.currentRate),
			StartIndex: w.rateStateStart(),
			EndIndex:   end,
		})
	}

	footer := MarshalSettings(&w.history, w.userData)
	footerBytes := []byte(footer)

	if err := binary.Write(w.w, binary.LittleEndian, uint32(len(footerBytes))); err != nil {
		return fmt.Errorf("dsd: writing footer length: %w", err)
	}
	if _, err := w.w.Write(footerBytes); err != nil {
		return fmt.Errorf("dsd: writing footer: %w", err)
	}
	if err := binary.Write(w.w, binary.LittleEndian, Magic); err != nil {
		return fmt.Errorf("dsd: writing trailing magic: %w", err)
	}
	return nil
}

// vim: foldmethod=marker
