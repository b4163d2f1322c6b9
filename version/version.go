// Package version defines the version token used for optimistic concurrency and
// the contract an entity must satisfy for the command dispatcher to detect
// write-write conflicts on it.
package version

import (
	"fmt"
	"strings"
	"sync"

	"github.com/code19m/errx"
)

// CodeInvalidVersion is returned when a version cannot be constructed.
const CodeInvalidVersion = "INVALID_VERSION"

// Version is an opaque, strictly ordered token.
type Version interface {
	// Next returns the version that follows this one.
	Next() Version
	// Equals reports whether other denotes the same version.
	Equals(other Version) bool
	String() string
}

// Integer is the default Version: a non-negative counter.
type Integer struct {
	n uint64
}

// Zero is the version every new entity starts at.
//
//nolint:gochecknoglobals // immutable value
var Zero = Integer{}

// NewInteger builds an Integer version from n. Negative values are rejected.
func NewInteger(n int64) (Integer, error) {
	if n < 0 {
		return Integer{}, errx.New(
			"version must be a non-negative integer",
			errx.WithCode(CodeInvalidVersion),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"value": n}),
		)
	}
	return Integer{n: uint64(n)}, nil
}

// Next implements Version.
func (v Integer) Next() Version {
	return Integer{n: v.n + 1}
}

// Equals implements Version.
func (v Integer) Equals(other Version) bool {
	o, ok := other.(Integer)
	return ok && o.n == v.n
}

// Uint64 returns the raw counter.
func (v Integer) Uint64() uint64 {
	return v.n
}

func (v Integer) String() string {
	return fmt.Sprintf("v%d", v.n)
}

// Entity is an aggregate whose version the command dispatcher compares before
// and after a handler runs. The dispatcher only reads the version and calls
// VersionUp after a conflict-free attempt.
type Entity interface {
	Version() Version
	VersionUp()
}

// Named is implemented by entities that want a stable name in conflict
// diagnostics and errors.
type Named interface {
	EntityName() string
}

// BaseEntity is an embeddable Entity starting at v0. It is safe for concurrent use.
type BaseEntity struct {
	mu      sync.RWMutex
	current Version
}

// Version implements Entity.
func (b *BaseEntity) Version() Version {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.current == nil {
		return Zero
	}
	return b.current
}

// VersionUp implements Entity.
func (b *BaseEntity) VersionUp() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		b.current = Zero
	}
	b.current = b.current.Next()
}

// NameOf returns the diagnostic name of e: its EntityName when it implements
// Named, otherwise its dynamic type name without package path.
func NameOf(e Entity) string {
	if n, ok := e.(Named); ok {
		if name := n.EntityName(); name != "" {
			return name
		}
	}

	fullType := strings.TrimPrefix(fmt.Sprintf("%T", e), "*")
	if i := strings.LastIndex(fullType, "."); i >= 0 {
		return fullType[i+1:]
	}
	return fullType
}
