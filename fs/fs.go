// Package fs is the filesystem collaborator named in spec.md §6: a
// minimal but real stand-in for "the filesystem (provides read/write by
// inode and offset, and transactional begin/end brackets)" that spec.md
// §1 explicitly places out of scope for this module's core, yet which
// the mmap manager and its tests need a concrete implementation of.
//
// Grounded in original_source/sysfile.c's fileread/writei/filedup/
// fileclose and the teacher's fs package's block-locking discipline
// (biscuit/src/fs/blk.go).
package fs

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// File is an open, refcounted file usable by the mmap manager. Reads and
// writes are positional (ReadAt/WriteAt) rather than seek-based — this is
// the divergence spec.md §9's "Open question — mmap offset semantics"
// asks a reimplementer to make, since the original's seek-then-read is
// "likely a bug."
type File struct {
	mu       sync.Mutex
	backing  *os.File
	readable bool
	writable bool
	refs     *int32
}

// Collaborator is the subset of *File's behavior the mmap manager
// calls, implemented by *File and by internal/mocks.MockCollaborator.
// mmapmgr.Manager takes a concrete *File, so a mock cannot be passed to
// it in place of a real file on disk.
type Collaborator interface {
	Readable() bool
	Writable() bool
	ReadAt(buf []byte, off int) (int, error)
	WriteAt(buf []byte, off int) (int, error)
}

var _ Collaborator = (*File)(nil)

// Open opens path for the given access and returns a File with a refcount
// of 1.
func Open(path string, readable, writable bool) (*File, error) {
	flag := os.O_RDONLY
	switch {
	case readable && writable:
		flag = os.O_RDWR
	case writable:
		flag = os.O_WRONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "fs: open %s", path)
	}
	n := int32(1)
	return &File{backing: f, readable: readable, writable: writable, refs: &n}, nil
}

// Readable reports whether the file was opened for reading.
func (f *File) Readable() bool { return f.readable }

// Writable reports whether the file was opened for writing.
func (f *File) Writable() bool { return f.writable }

// ReadAt reads len(buf) bytes starting at off, analogous to the
// original's readi(ip, buf, off, n) positional read.
func (f *File) ReadAt(buf []byte, off int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.backing.ReadAt(buf, int64(off))
	if err != nil && err != io.EOF {
		return n, errors.Wrap(err, "fs: readat")
	}
	return n, nil
}

// WriteAt writes buf at off, analogous to the original's writei.
// Callers are responsible for wrapping this in BeginOp/EndOp, per
// spec.md §4.4's write-back transaction requirement.
func (f *File) WriteAt(buf []byte, off int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.backing.WriteAt(buf, int64(off))
	if err != nil {
		return n, errors.Wrap(err, "fs: writeat")
	}
	return n, nil
}

// Dup increments the file's refcount and returns the same *File, the way
// original_source/sysfile.c's filedup does — mmap regions hold a dup'd
// reference so the underlying file stays alive for the region's lifetime
// (spec.md §3's invariant on regions).
func (f *File) Dup() *File {
	atomic.AddInt32(f.refs, 1)
	return f
}

// Close drops a reference; when the last reference is dropped the
// backing descriptor is closed.
func (f *File) Close() error {
	if atomic.AddInt32(f.refs, -1) == 0 {
		return f.backing.Close()
	}
	return nil
}

// BeginOp marks the start of a filesystem transaction, per spec.md §5:
// "wrapped in begin_op/end_op transactions so a crash mid-write-back is
// recoverable by the log." Real crash recovery is out of scope for this
// module (spec.md §1); the bracketing discipline itself is preserved so
// callers cannot forget it, backed by a journal stub rather than nothing.
type Txn struct {
	j *Journal
}

// Journal is a minimal write-ahead log stub: it only exists to give
// BeginOp/EndOp a real object to serialize on, the way the teacher's
// filesystem package's log package does for real disk transactions.
type Journal struct {
	mu sync.Mutex
}

// NewJournal constructs an empty journal.
func NewJournal() *Journal { return &Journal{} }

// BeginOp opens a transaction, serializing concurrent write-back
// sequences through the journal the way the real filesystem's log
// subsystem would.
func (j *Journal) BeginOp() *Txn {
	j.mu.Lock()
	return &Txn{j: j}
}

// EndOp closes the transaction.
func (t *Txn) EndOp() {
	t.j.mu.Unlock()
}
