//go:build windows

package mixer

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

// processNames snapshots running processes into a PID -> exe name map.
func processNames() (map[uint32]string, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, err
	}

	names := make(map[uint32]string, 256)
	for {
		names[entry.ProcessID] = windows.UTF16ToString(entry.ExeFile[:])
		if err := windows.Process32Next(snap, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, err
		}
	}
	return names, nil
}
