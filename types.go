package mangashark

import (
	"math"
	"time"

	"github.com/franciscasao/manga-shark-sub000/mangashark_errors"
)

// ContentUnit is one discrete readable segment (a chapter). Immutable
// once fetched from the source.
type ContentUnit struct {
	ID          string
	SeriesID    string
	DisplayName string
}

// SubItem is one page of a content unit. Key addresses the heavy
// payload (pixels) in whatever cache holds it.
type SubItem struct {
	Key   string
	Index int
}

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	return []string{"Forward", "Backward"}[d]
}

type LoadState int

const (
	NotLoaded LoadState = iota
	Loading
	Loaded
	Unloaded
)

func (s LoadState) String() string {
	return []string{"NotLoaded", "Loading", "Loaded", "Unloaded"}[s]
}

// LastIndexMax is the sentinel "fully consumed" page index.
const LastIndexMax = math.MaxInt32

// ProgressRecord is the durable reading position for one unit.
type ProgressRecord struct {
	UnitKey   string
	SeriesKey string
	Fraction  float64
	UpdatedAt time.Time
	Complete  bool
	LastIndex int
}

func (r *ProgressRecord) Validate() error {
	if r.Fraction < 0 || r.Fraction > 1 {
		return mangashark_errors.ErrBadFraction
	}
	// the codec narrows the index to uint32, a negative would wrap
	if r.LastIndex < 0 || r.LastIndex > LastIndexMax {
		return mangashark_errors.ErrBadIndex
	}
	return nil
}

// PendingUpdate is an in-flight, not-yet-durable position mutation.
// At most one exists per unit key; a newer update replaces it.
type PendingUpdate struct {
	UnitKey   string
	SeriesKey string
	Fraction  float64
	LastIndex int
	Complete  bool
	Stamp     time.Time
}

func (p *PendingUpdate) Record() *ProgressRecord {
	return &ProgressRecord{
		UnitKey:   p.UnitKey,
		SeriesKey: p.SeriesKey,
		Fraction:  p.Fraction,
		UpdatedAt: p.Stamp,
		Complete:  p.Complete,
		LastIndex: p.LastIndex,
	}
}

// Clock abstracts update timestamping so tests control the order of
// writes exactly.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
