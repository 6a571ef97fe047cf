// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import "syscall"

// ERROR_TOO_MANY_OPEN_FILES, ERROR_INVALID_HANDLE (watched dir removed) and
// ERROR_NOT_ENOUGH_MEMORY (ReadDirectoryChangesW buffer).
var fatalErrnos = []syscall.Errno{4, 6, 8}
