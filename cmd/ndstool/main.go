// Command ndstool inspects, splits, and repairs DSD/NDS files: the
// repair/split/info tool from this module's external interfaces.
//
// Usage follows dd(1)'s key=value argv grammar rather than GNU-style
// flags, since the underlying operations are closer to dd's than to a
// typical flag-driven CLI:
//
//	ndstool help
//	ndstool info if=FILE
//	ndstool split if=FILE of=OUT [start=N] [count=M]
//	ndstool repair if=FILE [of=RECOVERED.nds]
package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"hz.tools/daq/dsd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return int(unix.EINVAL)
	}

	cmd := args[0]
	kv := parseArgs(args[1:])

	switch cmd {
	case "help":
		usage()
		return int(unix.EINVAL)
	case "info":
		return cmdInfo(kv)
	case "split":
		return cmdSplit(kv)
	case "repair":
		return cmdRepair(kv)
	default:
		fmt.Fprintf(os.Stderr, "ndstool: unknown command %q\n", cmd)
		usage()
		return int(unix.EINVAL)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  ndstool help
  ndstool info if=FILE
  ndstool split if=FILE of=OUT [start=N] [count=M]
  ndstool repair if=FILE [of=RECOVERED.nds]`)
}

// parseArgs tokenizes dd(1)-style key=value arguments into a map. Tokens
// without an '=' are ignored, matching dd's own lenient behavior.
func parseArgs(args []string) map[string]string {
	out := make(map[string]string, len(args))
	for _, a := range args {
		for i := 0; i < len(a); i++ {
			if a[i] == '=' {
				out[a[:i]] = a[i+1:]
				break
			}
		}
	}
	return out
}

func cmdInfo(kv map[string]string) int {
	in := kv["if"]
	if in == "" {
		fmt.Fprintln(os.Stderr, "ndstool: info requires if=FILE")
		return int(unix.EINVAL)
	}

	f, err := os.Open(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}
	defer f.Close()

	r, err := dsd.NewReader(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}

	h := r.History()
	st, _ := f.Stat()
	fmt.Printf("size:          %d bytes\n", st.Size())
	fmt.Printf("start_index:   %d\n", h.StartIndex)
	fmt.Printf("end_index:     %d\n", h.EndIndex)
	fmt.Printf("scan_count:    %d\n", h.ScanCount)
	fmt.Printf("sample_count:  %d\n", h.SampleCount)
	fmt.Printf("duration(s):   %g\n", r.TimeAt(h.EndIndex))
	if rate, ok := h.RateAt(h.StartIndex); ok {
		fmt.Printf("initial rate:  %d Hz\n", uint32(rate))
	}
	return 0
}

func cmdSplit(kv map[string]string) int {
	in, out := kv["if"], kv["of"]
	if in == "" || out == "" {
		fmt.Fprintln(os.Stderr, "ndstool: split requires if=FILE of=OUT")
		return int(unix.EINVAL)
	}

	start, count, err := parseRange(kv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EINVAL)
	}

	src, err := os.Open(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}
	defer src.Close()

	r, err := dsd.NewReader(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}

	end := r.History().EndIndex
	if count > 0 && start+count-1 < end {
		end = start + count - 1
	}

	dst, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}
	defer dst.Close()

	w, err := dsd.NewWriter(dst, dsd.Float32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}

	if err := r.Seek(start); err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}

	for {
		s, err := r.ReadNextSample()
		if err != nil {
			break
		}
		if s.ScanIndex > end {
			break
		}
		if err := w.WriteSample(s); err != nil {
			fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
			return int(unix.EIO)
		}
	}

	if err := w.End(); err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}
	return 0
}

func parseRange(kv map[string]string) (start, count uint64, err error) {
	if v, ok := kv["start"]; ok {
		if _, err := fmt.Sscanf(v, "%d", &start); err != nil {
			return 0, 0, fmt.Errorf("invalid start=%s", v)
		}
	}
	if v, ok := kv["count"]; ok {
		if _, err := fmt.Sscanf(v, "%d", &count); err != nil {
			return 0, 0, fmt.Errorf("invalid count=%s", v)
		}
	}
	return start, count, nil
}

func cmdRepair(kv map[string]string) int {
	in := kv["if"]
	if in == "" {
		fmt.Fprintln(os.Stderr, "ndstool: repair requires if=FILE")
		return int(unix.EINVAL)
	}
	out := kv["of"]
	if out == "" {
		out = in + ".recovered.nds"
	}

	src, err := os.Open(in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}
	defer dst.Close()

	n, err := dsd.Repair(src, dst)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ndstool: %s\n", err)
		return int(unix.EIO)
	}

	fmt.Printf("recovered %d samples into %s\n", n, out)
	return 0
}

// vim: foldmethod=marker
