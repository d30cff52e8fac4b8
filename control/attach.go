package control

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"hz.tools/daq"
	"hz.tools/rf"
)

// layoutSize is the byte size of the mapped region's fixed header: a
// version u32, padding to align the scan index, the scan index (u64,
// producer-owned, single-word, tear-free by layout), the sampling rate
// (u32), the enabled-channel mask ([]u64 words), one u32 range-id slot
// per channel, and one u32 aref-id slot per channel.
const layoutSize = 4 + 4 + 8 + 4 + (daq.MaxChannels/64)*8 + daq.MaxChannels*4 + daq.MaxChannels*4

const (
	offVersion  = 0
	offScan     = 8
	offRate     = 16
	offMask     = 20
	offRangeTab = offMask + (daq.MaxChannels/64)*8
	offArefTab  = offRangeTab + daq.MaxChannels*4
)

// attached is the Attach backend: a Block view over a memory-mapped
// region written by an out-of-process producer using the layout above.
type attached struct {
	data []byte
	f    *os.File

	mu    sync.Mutex
	spike [daq.MaxChannels]SpikeParams
}

// Attach opens and memory-maps the shared-memory-style file at path,
// validating the version header and region size before returning a
// Block. Fails with ErrUnavailable, ErrVersionMismatch, or
// ErrSizeMismatch exactly as the spec's Control Block attach contract
// requires; these are fatal to the core, since the Reader Loop cannot
// start without a valid Control Block.
func Attach(path string) (Block, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	if fi.Size() < int64(layoutSize) {
		f.Close()
		return nil, fmt.Errorf("%w: region is %d bytes, want at least %d", ErrSizeMismatch, fi.Size(), layoutSize)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, layoutSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap: %s", ErrUnavailable, err)
	}

	version := binary.LittleEndian.Uint32(data[offVersion:])
	if version != Version {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("%w: region reports 0x%08x, want 0x%08x", ErrVersionMismatch, version, Version)
	}

	return &attached{data: data, f: f}, nil
}

// Close unmaps the region and closes the backing file descriptor.
func (b *attached) Close() error {
	if err := unix.Munmap(b.data); err != nil {
		return err
	}
	return b.f.Close()
}

func (b *attached) maskWord(i int) *uint64 {
	return (*uint64)(unsafe.Pointer(&b.data[offMask+i*8]))
}

func (b *attached) IsChannelEnabled(chanID uint8) bool {
	word := atomicLoadUint64(b.maskWord(int(chanID) / 64))
	return word&(1<<(chanID%64)) != 0
}

func (b *attached) SetChannelEnabled(chanID uint8, enabled bool) {
	ptr := b.maskWord(int(chanID) / 64)
	for {
		old := atomicLoadUint64(ptr)
		next := old
		if enabled {
			next |= 1 << (chanID % 64)
		} else {
			next &^= 1 << (chanID % 64)
		}
		if atomicCompareAndSwapUint64(ptr, old, next) {
			return
		}
	}
}

func (b *attached) Mask() daq.Mask {
	var m daq.Mask
	for i := range m {
		m[i] = atomicLoadUint64(b.maskWord(i))
	}
	return m
}

func (b *attached) ChannelRange(chanID uint8) uint32 {
	off := offRangeTab + int(chanID)*4
	return binary.LittleEndian.Uint32(b.data[off:])
}

func (b *attached) SetChannelRange(chanID uint8, rangeID uint32) {
	off := offRangeTab + int(chanID)*4
	binary.LittleEndian.PutUint32(b.data[off:], rangeID)
}

func (b *attached) ChannelAref(chanID uint8) uint32 {
	off := offArefTab + int(chanID)*4
	return binary.LittleEndian.Uint32(b.data[off:])
}

func (b *attached) SetChannelAref(chanID uint8, arefID uint32) {
	off := offArefTab + int(chanID)*4
	binary.LittleEndian.PutUint32(b.data[off:], arefID)
}

func (b *attached) SamplingRate() rf.Hz {
	return rf.Hz(binary.LittleEndian.Uint32(b.data[offRate:]))
}

func (b *attached) SetSamplingRate(rate rf.Hz) {
	binary.LittleEndian.PutUint32(b.data[offRate:], uint32(rate))
}

func (b *attached) SpikeConfig(chanID uint8) SpikeParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spike[chanID]
}

func (b *attached) SetSpikeConfig(chanID uint8, p SpikeParams) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spike[chanID] = p
}

func (b *attached) ScanIndex() uint64 {
	return atomicLoadUint64((*uint64)(unsafe.Pointer(&b.data[offScan])))
}

func (b *attached) AdvanceScanIndex(idx uint64) {
	atomicStoreUint64((*uint64)(unsafe.Pointer(&b.data[offScan])), idx)
}

// vim: foldmethod=marker
