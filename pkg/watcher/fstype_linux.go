//go:build linux

package watcher

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Magic numbers from statfs(2).
const (
	nfsSuperMagic   = 0x6969
	smbSuperMagic   = 0x517b
	cifsMagicNumber = 0xff534d42
	smb2MagicNumber = 0xfe534d42
	fuseSuperMagic  = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		if err := unix.Statfs(p, &st); err == nil {
			break
		}
		if parent := filepath.Dir(p); parent == p {
			return FSTypeUnknown
		}
	}

	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagicNumber, smb2MagicNumber:
		return FSTypeSMB
	case fuseSuperMagic:
		// sshfs cannot be told apart from other FUSE mounts here.
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}
