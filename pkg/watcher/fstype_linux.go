//go:build linux

package watcher

import "golang.org/x/sys/unix"

// Magic numbers from statfs(2).
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517B
	cifsMagic      = 0xFF534D42
	smb2MagicNum   = 0xFE534D42
	fuseSuperMagic = 0x65735546
)

func statFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagic, smb2MagicNum:
		return FSTypeSMB
	case fuseSuperMagic:
		// sshfs is FUSE-backed and indistinguishable from statfs alone.
		return FSTypeFUSE
	}
	return FSTypeLocal
}
