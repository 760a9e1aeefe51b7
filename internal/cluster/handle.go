package cluster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

var (
	// ErrStaleHandle is returned when a handle minted by one index build is
	// used against another. It signals a synchronisation bug in the caller.
	ErrStaleHandle = errors.New("cluster handle belongs to a superseded index generation")

	// ErrUnknownCluster is returned when a handle of the current generation
	// does not name a cluster.
	ErrUnknownCluster = errors.New("no cluster with the specified id")
)

// Generation identifies one Build call. Generations are unique per process
// and strictly increasing.
type Generation uint64

var lastGeneration atomic.Uint64

func nextGeneration() Generation {
	return Generation(lastGeneration.Add(1))
}

// Handle refers to one cluster of one index generation. The zero Handle
// refers to nothing.
type Handle struct {
	gen Generation
	id  int
}

// Generation returns the index generation that minted h.
func (h Handle) Generation() Generation { return h.gen }

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string {
	if h.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d-%d", h.gen, h.id)
}

// ParseHandle parses the form produced by Handle.String.
func ParseHandle(s string) (Handle, error) {
	gen, id, ok := strings.Cut(s, "-")
	if !ok {
		return Handle{}, fmt.Errorf("parse cluster handle %q: missing separator", s)
	}
	g, err := strconv.ParseUint(gen, 10, 64)
	if err != nil || g == 0 {
		return Handle{}, fmt.Errorf("parse cluster handle %q: bad generation", s)
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return Handle{}, fmt.Errorf("parse cluster handle %q: bad id", s)
	}
	return Handle{gen: Generation(g), id: n}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handle) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*h = Handle{}
		return nil
	}
	parsed, err := ParseHandle(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Cluster ids pack the index of the originating node with the zoom level of
// the tree that node lives in.
func packID(origin, zoom int) int { return origin<<5 + zoom }

func unpackID(id int) (origin, zoom int) { return id >> 5, id % 32 }
