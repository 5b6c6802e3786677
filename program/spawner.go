package program

import (
	"os"
	"path/filepath"

	apierrors "redapid/errors"
	"redapid/inventory"
	"redapid/object"
	"redapid/process"
	"redapid/value"
	"redapid/vfs"
)

// NewDefaultSpawner builds the Spawner a Program drives its scheduler
// with: it turns a Config's plain strings back into the String/List
// objects process.Spawn expects, and resolves each stdio redirection
// slot to an open File, then calls process.Spawn.
//
// Pipe redirection needs the reactor's async-read plumbing to drain a
// live pipe's far end; until a peer actually issues read_async against
// it, a plain opened file descriptor (individual_log/continuous_log/file)
// or /dev/null (everything else) serves fine, since nothing reads from
// the child's side except what openStdio itself opened.
//
// watch, if non-nil, is called with every Process this Spawner launches
// so the caller (the dispatcher) can register its wake pipe with the
// reactor; without that registration the process's waiter goroutine
// would signal a pipe nobody drains and its spawn references would never
// be released.
func NewDefaultSpawner(inv *inventory.Table, watch func(*process.Process)) Spawner {
	return func(cfg *Config, onStateChange process.StateChangeFunc) (*process.Process, error) {
		executable, err := newString(inv, cfg.Executable)
		if err != nil {
			return nil, err
		}
		arguments, err := newStringList(inv, cfg.Arguments)
		if err != nil {
			return nil, err
		}
		environment, err := newStringList(inv, cfg.Environment)
		if err != nil {
			return nil, err
		}
		workingDir, err := newString(inv, cfg.WorkingDirectory)
		if err != nil {
			return nil, err
		}

		stdin, err := openStdio(inv, cfg.Stdin, cfg.WorkingDirectory, os.O_RDONLY)
		if err != nil {
			return nil, err
		}
		stdout, err := openStdio(inv, cfg.Stdout, cfg.WorkingDirectory, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
		if err != nil {
			return nil, err
		}
		stderr, err := openStdio(inv, cfg.Stderr, cfg.WorkingDirectory, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
		if err != nil {
			return nil, err
		}

		spec := process.Spec{
			Executable:  executable,
			Arguments:   arguments,
			Environment: environment,
			WorkingDir:  workingDir,
			Stdio: process.StdioRefs{
				Stdin:  stdin,
				Stdout: stdout,
				Stderr: stderr,
			},
		}
		proc, err := process.Spawn(inv, spec, onStateChange)
		if err != nil {
			return nil, err
		}
		if watch != nil {
			watch(proc)
		}
		return proc, nil
	}
}

// BuildString allocates a String object holding text, for read-back
// operations (directory(), command(), custom_options()) that hand a
// peer-visible copy of a Config field back over the wire.
func BuildString(inv *inventory.Table, text string) (*value.String, error) {
	return newString(inv, text)
}

func newString(inv *inventory.Table, text string) (*value.String, error) {
	s, err := value.NewString(inv, uint32(len(text)))
	if err != nil {
		return nil, err
	}
	for off := 0; off < len(text); off += value.SetChunkSize {
		end := off + value.SetChunkSize
		if end > len(text) {
			end = len(text)
		}
		if err := s.SetChunk(uint32(off), []byte(text[off:end])); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// BuildStringList allocates a List of Strings holding items, for the same
// read-back operations BuildString serves.
func BuildStringList(inv *inventory.Table, items []string) (*value.List, error) {
	return newStringList(inv, items)
}

func newStringList(inv *inventory.Table, items []string) (*value.List, error) {
	l, err := value.NewList(inv, uint32(len(items)))
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		s, err := newString(inv, item)
		if err != nil {
			return nil, err
		}
		if err := l.Append(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// openStdio resolves one stdio redirection slot to an open File object,
// wrapped the same way an anonymous pipe end would be (vfs.NewPipe): the
// spawned process.Spec only needs something that satisfies object.Object
// and exposes Fd(), and a plain opened descriptor qualifies without the
// name-locking vfs.Open does for peer-visible files.
func openStdio(inv *inventory.Table, r StdioRedirection, workingDir string, flags int) (object.Object, error) {
	path := os.DevNull
	openFlags := os.O_RDWR
	switch r.Mode {
	case StdioFile, StdioIndividualLog, StdioContinuousLog:
		path = r.FileName
		if !filepath.IsAbs(path) {
			path = filepath.Join(workingDir, path)
		}
		openFlags = flags
	}
	osFile, err := os.OpenFile(path, openFlags, 0644)
	if err != nil {
		return nil, apierrors.WrapErrno(err, "program.spawn")
	}
	f, err := vfs.NewPipe(inv, osFile)
	if err != nil {
		osFile.Close()
		return nil, err
	}
	return f, nil
}
