package spool

import (
	"os"

	"golang.org/x/sys/unix"
)

// Network filesystem type magic numbers, as reported by statfs(2)'s
// f_type. The Temp Spooler avoids these in favor of local disk, since an
// unbounded on-disk queue over a network mount risks both latency spikes
// and partial-write corruption under a flaky link.
const (
	nfsSuperMagic      = 0x6969
	nfs4SuperMagic     = 0x6a656a62
	smbSuperMagic      = 0x517b
	cifsMagicNumber    = 0xff534d42
	afsSuperMagic      = 0x5346414f
	overlayFSSuperMagic = 0x794c7630
)

var networkFSMagic = map[int64]bool{
	nfsSuperMagic:       true,
	nfs4SuperMagic:      true,
	smbSuperMagic:       true,
	cifsMagicNumber:     true,
	afsSuperMagic:       true,
	overlayFSSuperMagic: true,
}

// isLocalFS reports whether dir sits on a filesystem this module
// considers safe for the spool's unbounded write volume. A Statfs
// failure (missing directory, permission denied) is treated as "not
// usable" rather than "local", so pickSpoolDir moves on to the next
// candidate.
func isLocalFS(dir string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return false
	}
	return !networkFSMagic[int64(st.Type)]
}

// pickSpoolDir chooses a spool directory from, in order: an explicit
// path, the DAQ_SPOOL_DIR environment variable, TMPDIR, then /tmp,
// preferring whichever of these resolves to a local (non-network)
// filesystem. If none can be confirmed local, the last candidate is
// still returned so spooling is never refused outright — disk selection
// is a preference, not a correctness requirement.
func pickSpoolDir(explicit string) string {
	var candidates []string
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if v := os.Getenv("DAQ_SPOOL_DIR"); v != "" {
		candidates = append(candidates, v)
	}
	if v := os.Getenv("TMPDIR"); v != "" {
		candidates = append(candidates, v)
	}
	candidates = append(candidates, "/tmp")

	for _, c := range candidates {
		if isLocalFS(c) {
			return c
		}
	}
	return candidates[len(candidates)-1]
}

// vim: foldmethod=marker
