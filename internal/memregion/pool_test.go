package memregion

import "testing"

func TestClassForSelectsSmallestFit(t *testing.T) {
	cases := []struct {
		size, want int
	}{
		{1, 0}, {4, 0}, {5, 1}, {16, 2}, {17, 3}, {100, 5}, {256, 6}, {257, -1},
	}

	for _, c := range cases {
		if got := classFor(c.size); got != c.want {
			t.Errorf("classFor(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, headerSize)
	want := blockHeader{size: 48, poolIndex: 4, flags: flagZeroed}

	writeHeader(buf, want)

	if got := readHeader(buf); got != want {
		t.Errorf("readHeader = %+v, want %+v", got, want)
	}
}

func TestPoolStatsCountGetsAndPuts(t *testing.T) {
	p := newSizeClassPool(sizeClassC)

	buf := p.get()
	p.put(buf)

	allocated, freed, _ := p.stats()
	if allocated != 1 || freed != 1 {
		t.Errorf("stats = (%d allocated, %d freed), want (1, 1)", allocated, freed)
	}
}
