package state

import (
	"sync"
	"time"
)

// Kind identifies a tracked artifact.
type Kind string

const (
	KindManifest      Kind = "manifest"
	KindAssets        Kind = "assets"
	KindServiceWorker Kind = "serviceWorker"
	KindScript        Kind = "script"
	KindStyle         Kind = "style"
	KindDocument      Kind = "document"
)

// Kinds lists every tracked kind in dashboard order.
var Kinds = []Kind{
	KindManifest,
	KindAssets,
	KindServiceWorker,
	KindScript,
	KindStyle,
	KindDocument,
}

// Valid reports whether k is one of the tracked kinds.
func (k Kind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an artifact.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// EmptyTimestamp is shown until an artifact has been built once.
const EmptyTimestamp = "        "

// TimeFormat is the layout of ArtifactRecord.Timestamp.
const TimeFormat = "15:04:05"

// ArtifactRecord is the dashboard row for one kind.
type ArtifactRecord struct {
	Name      Kind
	Progress  int
	Timestamp string
	Size      int
	Status    Status
	Done      bool
}

// Pending returns the initial record for kind.
func Pending(kind Kind) *ArtifactRecord {
	return &ArtifactRecord{
		Name:      kind,
		Timestamp: EmptyTimestamp,
		Status:    StatusPending,
	}
}

// Completed returns a done record for kind stamped with now. Size is
// filled in later through BuildState.SetSize.
func Completed(kind Kind, now time.Time) *ArtifactRecord {
	return &ArtifactRecord{
		Name:      kind,
		Progress:  100,
		Timestamp: now.Format(TimeFormat),
		Status:    StatusDone,
		Done:      true,
	}
}

// BuildState is the single source of truth for the dashboard. It is safe
// for concurrent use.
type BuildState struct {
	mu    sync.RWMutex
	files map[Kind]*ArtifactRecord
	err   string
	url   string
}

// New returns a BuildState with every kind pending.
func New() *BuildState {
	s := &BuildState{files: make(map[Kind]*ArtifactRecord, len(Kinds))}
	for _, kind := range Kinds {
		s.files[kind] = Pending(kind)
	}
	return s
}

// Replace swaps the record for rec.Name. Records for unknown kinds are
// dropped and Replace returns false.
func (s *BuildState) Replace(rec *ArtifactRecord) bool {
	if !rec.Name.Valid() {
		return false
	}
	s.mu.Lock()
	s.files[rec.Name] = rec
	s.mu.Unlock()
	return true
}

// SetSize sets the size of rec. rec may already have been replaced, in
// which case the update is invisible.
func (s *BuildState) SetSize(rec *ArtifactRecord, size int) {
	s.mu.Lock()
	rec.Size = size
	s.mu.Unlock()
}

// Record returns a copy of the current record for kind.
func (s *BuildState) Record(kind Kind) (ArtifactRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.files[kind]
	if !ok {
		return ArtifactRecord{}, false
	}
	return *rec, true
}

// SetError records the last fatal error text.
func (s *BuildState) SetError(text string) {
	s.mu.Lock()
	s.err = text
	s.mu.Unlock()
}

// ClearError removes the error text.
func (s *BuildState) ClearError() {
	s.SetError("")
}

// Error returns the last fatal error text, or "".
func (s *BuildState) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// SetURL records the address the server is listening on.
func (s *BuildState) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

// URL returns the listening address, or "" before the server is bound.
func (s *BuildState) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// Snapshot is a point-in-time copy of a BuildState.
type Snapshot struct {
	Files map[Kind]ArtifactRecord
	Error string
	URL   string
}

// Snapshot copies the current state.
func (s *BuildState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make(map[Kind]ArtifactRecord, len(s.files))
	for kind, rec := range s.files {
		files[kind] = *rec
	}
	return Snapshot{Files: files, Error: s.err, URL: s.url}
}

// TotalSize sums the sizes of every record.
func (s Snapshot) TotalSize() int {
	total := 0
	for _, rec := range s.Files {
		total += rec.Size
	}
	return total
}
