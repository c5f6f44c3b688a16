package mangashark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rec(key string, at time.Time, fraction float64) *ProgressRecord {
	return &ProgressRecord{
		UnitKey:   key,
		SeriesKey: "series",
		Fraction:  fraction,
		UpdatedAt: at,
	}
}

func TestResolveNewerWins(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	older := rec("42", t0, 0.3)
	newer := rec("42", t0.Add(time.Second), 0.7)

	assert.Same(t, newer, Resolve(older, newer))
	assert.Same(t, newer, Resolve(newer, older))
}

func TestResolveOrderIndependence(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	a := rec("42", t0, 0.1)
	b := rec("42", t0.Add(time.Millisecond), 0.9)

	// whichever call order, the record implied by the later
	// timestamp is the survivor
	assert.Equal(t, 0.9, Resolve(a, b).Fraction)
	assert.Equal(t, 0.9, Resolve(b, a).Fraction)
}

func TestResolveTieKeepsExisting(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	existing := rec("42", t0, 0.2)
	incoming := rec("42", t0, 0.8)

	assert.Same(t, existing, Resolve(existing, incoming))
}

func TestResolveNil(t *testing.T) {
	r := rec("42", time.Unix(1700000000, 0), 0.5)
	assert.Same(t, r, Resolve(nil, r))
	assert.Same(t, r, Resolve(r, nil))
	assert.Nil(t, Resolve(nil, nil))
}

func TestMergeProgressPicksNewest(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	old := appendProgress(nil, rec("42", t0, 0.1))
	mid := appendProgress(nil, rec("42", t0.Add(time.Second), 0.5))
	new_ := appendProgress(nil, rec("42", t0.Add(2*time.Second), 0.9))

	win, err := parseProgress(mergeProgress([][]byte{old, new_, mid}))
	assert.Nil(t, err)
	assert.Equal(t, 0.9, win.Fraction)
}

func TestMergeProgressTieFavorsFirstWriter(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	first := appendProgress(nil, rec("42", t0, 0.2))
	second := appendProgress(nil, rec("42", t0, 0.8))

	// operands are ordered old to new; the earlier writer keeps the slot
	win, err := parseProgress(mergeProgress([][]byte{first, second}))
	assert.Nil(t, err)
	assert.Equal(t, 0.2, win.Fraction)
}

func TestMergeProgressSkipsGarbage(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	good := appendProgress(nil, rec("42", t0, 0.4))

	win, err := parseProgress(mergeProgress([][]byte{{0x01, 0x02}, good}))
	assert.Nil(t, err)
	assert.Equal(t, 0.4, win.Fraction)
}

func TestProgressCodecRejectsMalformed(t *testing.T) {
	good := appendProgress(nil, rec("42", time.Unix(1700000000, 0), 0.5))

	_, err := parseProgress(good[:len(good)-3]) // truncated envelope
	assert.NotNil(t, err)

	trailing := append(append([]byte{}, good...), 0x00)
	_, err = parseProgress(trailing)
	assert.NotNil(t, err)

	_, err = parseProgress(nil)
	assert.NotNil(t, err)
}

func TestProgressCodecRoundtrip(t *testing.T) {
	r := &ProgressRecord{
		UnitKey:   "unit-42",
		SeriesKey: "series-7",
		Fraction:  0.625,
		UpdatedAt: time.Unix(1700000000, 123456789),
		Complete:  true,
		LastIndex: LastIndexMax,
	}
	got, err := parseProgress(appendProgress(nil, r))
	assert.Nil(t, err)
	assert.Equal(t, r.UnitKey, got.UnitKey)
	assert.Equal(t, r.SeriesKey, got.SeriesKey)
	assert.Equal(t, r.Fraction, got.Fraction)
	assert.True(t, r.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, r.Complete, got.Complete)
	assert.Equal(t, r.LastIndex, got.LastIndex)
}
