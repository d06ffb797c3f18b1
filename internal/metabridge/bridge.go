// Package metabridge implements the metadata callback bridge of §4.F: the
// coordinator's only way to reach the canonical XLocList of a file. The
// coordinator never holds metadata locks itself; Install enqueues an install
// request for the bridge's processing stage, which takes the per-file lock,
// and waits on a reply channel, the way the design note in §9 describes
// replacing the source's nested callbacks with a typed future.
//
// The real metadata database is an out-of-scope external collaborator
// (spec.md §1); this package stands in a concrete, testable one backed by
// scribble, the same embedded JSON-document store the teacher uses for its
// own download-job bookkeeping (downloader/db.go).
package metabridge

import (
	"context"
	"os"
	"sync"

	"github.com/sdomino/scribble"

	"github.com/leusonmario/xtreemfs/cmn"
	"github.com/leusonmario/xtreemfs/internal/xlog"
)

const collectionXLocSets = "xlocsets"

// record is the on-disk shape of a file's canonical XLocSet: one JSON
// document per file-id in the xlocsets collection.
type record struct {
	FileID  string       `json:"file_id"`
	XLocSet *cmn.XLocSet `json:"xloc_set"`
}

// GuardFunc lets a caller simulate metadata-layer denial (NOT_ALLOWED, §7
// PermissionDenied) without wiring a real authorization subsystem.
type GuardFunc func(fileID string, ext *cmn.XLocSet) error

type installRequest struct {
	fileID string
	ext    *cmn.XLocSet
	reply  chan installResult
}

type installResult struct {
	installed *cmn.XLocSet
	err       error
}

// Bridge is the metadata callback bridge. Installs are single-writer-per-file:
// concurrent installs for different files proceed independently, concurrent
// installs for the same file serialize on a per-file mutex.
type Bridge struct {
	driver *scribble.Driver
	reqCh  chan installRequest

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// Guard, when set, is consulted before every install and can fail it
	// with any *cmn.ErrorWithErrno (tests use it to simulate NOT_ALLOWED).
	Guard GuardFunc
}

// NewBridge opens (creating if necessary) a scribble-backed store rooted at
// dir and starts its dispatcher goroutine.
func NewBridge(dir string) (*Bridge, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cmn.NewInternalError(err)
	}
	driver, err := scribble.New(dir, nil)
	if err != nil {
		return nil, cmn.NewInternalError(err)
	}
	b := &Bridge{
		driver: driver,
		reqCh:  make(chan installRequest, 64),
		locks:  make(map[string]*sync.Mutex),
	}
	go b.run()
	return b, nil
}

func (b *Bridge) run() {
	for req := range b.reqCh {
		go b.process(req)
	}
}

func (b *Bridge) lockFor(fileID string) *sync.Mutex {
	b.locksMu.Lock()
	defer b.locksMu.Unlock()
	l, ok := b.locks[fileID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[fileID] = l
	}
	return l
}

// process mirrors ais/prxtxn.go's lock -> clone -> mutate -> unlock shape,
// minus the cluster bcast begin/commit round trip: the store is local, so
// the per-file mutex alone gives single-writer-per-file.
func (b *Bridge) process(req installRequest) {
	lock := b.lockFor(req.fileID)
	lock.Lock()
	defer lock.Unlock()

	installed, err := b.installLocked(req.fileID, req.ext)
	req.reply <- installResult{installed: installed, err: err}
}

func (b *Bridge) installLocked(fileID string, ext *cmn.XLocSet) (*cmn.XLocSet, error) {
	if b.Guard != nil {
		if err := b.Guard(fileID, ext); err != nil {
			return nil, err
		}
	}

	current, err := b.load(fileID)
	if err != nil {
		return nil, err
	}

	var currentVersion int64
	if current != nil {
		currentVersion = current.Version
	}
	if ext.Version != currentVersion {
		return nil, cmn.NewInsufficientQuorum(
			"install %s: extended set version %d does not match canonical version %d",
			fileID, ext.Version, currentVersion)
	}

	installed := ext.Clone()
	installed.Version = currentVersion + 1

	if err := b.driver.Write(collectionXLocSets, fileID, &record{FileID: fileID, XLocSet: installed}); err != nil {
		return nil, cmn.NewInternalError(err)
	}
	xlog.Infof("metabridge: installed xlocset file=%s version=%d replicas=%d", fileID, installed.Version, installed.ReplicaCount())
	return installed, nil
}

func (b *Bridge) load(fileID string) (*cmn.XLocSet, error) {
	var rec record
	if err := b.driver.Read(collectionXLocSets, fileID, &rec); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, cmn.NewInternalError(err)
	}
	return rec.XLocSet, nil
}

// Install enqueues the internal callback request and blocks for the
// processing stage's completion, per §4.F. The context bounds both the
// enqueue and the wait so a shutdown coordinator is never stuck here.
func (b *Bridge) Install(ctx context.Context, fileID string, ext *cmn.XLocSet) (*cmn.XLocSet, error) {
	reply := make(chan installResult, 1)
	select {
	case b.reqCh <- installRequest{fileID: fileID, ext: ext, reply: reply}:
	case <-ctx.Done():
		return nil, cmn.NewShutdownError()
	}

	select {
	case res := <-reply:
		return res.installed, res.err
	case <-ctx.Done():
		return nil, cmn.NewShutdownError()
	}
}

// Lookup returns the canonical XLocSet for fileID, or nil if the file has no
// record yet.
func (b *Bridge) Lookup(fileID string) (*cmn.XLocSet, error) {
	return b.load(fileID)
}

// Close stops accepting new install requests. Requests already queued still
// complete: run() only returns after reqCh is closed and drained.
func (b *Bridge) Close() {
	close(b.reqCh)
}
