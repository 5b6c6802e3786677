// Package dispatcher implements the fixed function-id table of spec §4.9:
// each request's function id selects an expected payload length and an
// operation; a length mismatch yields INVALID_PARAMETER, and a response is
// suppressed when the request's response_expected flag is clear.
package dispatcher

// Function ids are grouped by object kind, exactly as enumerated in spec
// §6. The numeric assignment below is this daemon's own and, once
// shipped, must never be renumbered — callers rely on it being stable.
const (
	// Object table group: operations available on any inventory entry.
	// release is the kind-agnostic release(o) of §4.2, shared by every
	// object kind rather than each declaring its own (grounded in the
	// original protocol's single RED_FUNCTION_RELEASE_OBJECT id).
	FuncObjectGetType uint8 = iota + 1
	FuncObjectNextEntry
	FuncObjectRewind
	FuncObjectRelease

	// String group.
	FuncStringAcquire
	FuncStringTruncate
	FuncStringLength
	FuncStringSetChunk
	FuncStringGetChunk

	// List group.
	FuncListAllocate
	FuncListLength
	FuncListItem
	FuncListAppend
	FuncListRemove

	// File group plus its two async callbacks.
	FuncFileOpen
	FuncFileClose
	FuncFileName
	FuncFileRead
	FuncFileReadAsync
	FuncFileAbortAsyncRead
	FuncFileWrite
	FuncFileWriteUnchecked
	FuncFileWriteAsync
	FuncFileSetPosition
	FuncFileGetPosition
	FuncFileInfo
	FuncFileSymlinkTarget
	FuncFileAsyncReadCallback
	FuncFileAsyncWriteCallback

	// Directory group.
	FuncDirectoryOpen
	FuncDirectoryName
	FuncDirectoryNextEntry
	FuncDirectoryRewind
	FuncDirectoryCreate

	// Process group plus its state-change callback.
	FuncProcessSpawn
	FuncProcessKill
	FuncProcessCommand
	FuncProcessIdentity
	FuncProcessStdio
	FuncProcessState
	FuncProcessStateChangeCallback

	// Program group plus its two callbacks.
	FuncProgramDefine
	FuncProgramUndefine
	FuncProgramIdentifier
	FuncProgramDirectory
	FuncProgramCommand
	FuncProgramStdioRedirection
	FuncProgramSchedule
	FuncProgramLastSpawned
	FuncProgramSchedulerError
	FuncProgramCustomOptions
	FuncProgramCustomOptionsSet
	FuncProgramSchedulerStateCallback
	FuncProgramProcessSpawnedCallback

	// Session group.
	FuncSessionCreate
	FuncSessionExpire
	FuncSessionKeepAlive

	// Identity group (§C.1/§C.2 of the expanded spec: identity plus an
	// echo/ping opcode recovered from original_source/).
	FuncIdentityGet
	FuncIdentityEcho
)
