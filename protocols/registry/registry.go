package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxAPYBps caps the nominal rate an administrator can configure (100%).
const MaxAPYBps = 10_000

var (
	ErrUnknownProtocol   = errors.New("protocol: not registered")
	ErrProtocolInactive  = errors.New("protocol: inactive")
	ErrDuplicateProtocol = errors.New("protocol: already registered")
	ErrDuplicateRef      = errors.New("protocol: external reference already bound to another name")
	ErrInvalidProtocol   = errors.New("protocol: invalid definition")
	ErrInvalidKind       = errors.New("protocol: unsupported strategy kind")
)

// ProtocolView represents the data for a single registered yield source.
type ProtocolView struct {
	Name         string         `json:"name"`
	Ref          common.Address `json:"ref"`
	Kind         Kind           `json:"kind"`
	APYBps       uint64         `json:"apyBps"`
	Active       bool           `json:"active"`
	RegisteredAt time.Time      `json:"registeredAt"`
	RateSince    time.Time      `json:"rateSince"`
}

// Registry is the whitelist of external yield sources keyed by name.
//
// A name is registered exactly once: its kind and external reference are
// immutable for the lifetime of the registry, so positions recorded against
// a name always resolve to the same adapter shape. An external reference
// serves one name only; every name owns the whole custody position it holds
// at its reference.
//
// Names are compared after trimming surrounding whitespace.
type Registry struct {
	byName map[string]*ProtocolView
	byRef  map[common.Address]string
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*ProtocolView),
		byRef:  make(map[common.Address]string),
	}
}

// Canonical returns the form under which name is registered.
func Canonical(name string) string {
	return strings.TrimSpace(name)
}

// Restore rebuilds a registry from a previously listed set of protocols.
func Restore(protocols []ProtocolView) (*Registry, error) {
	r := NewRegistry()
	for _, p := range protocols {
		if err := r.Register(p.Name, p.Ref, p.Kind, p.APYBps, p.RegisteredAt); err != nil {
			return nil, err
		}
		view := r.byName[p.Name]
		view.Active = p.Active
		view.RateSince = p.RateSince
	}
	return r, nil
}

// Register adds an active protocol.
func (r *Registry) Register(name string, ref common.Address, kind Kind, apyBps uint64, at time.Time) error {
	name = Canonical(name)
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidProtocol)
	case ref == (common.Address{}):
		return fmt.Errorf("%w: zero external reference", ErrInvalidProtocol)
	case !kind.Valid():
		return fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	case apyBps > MaxAPYBps:
		return fmt.Errorf("%w: apy %d bps above %d", ErrInvalidProtocol, apyBps, MaxAPYBps)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProtocol, name)
	}
	if owner, ok := r.byRef[ref]; ok {
		return fmt.Errorf("%w: %s serves %s", ErrDuplicateRef, ref.Hex(), owner)
	}

	r.byName[name] = &ProtocolView{
		Name:         name,
		Ref:          ref,
		Kind:         kind,
		APYBps:       apyBps,
		Active:       true,
		RegisteredAt: at,
		RateSince:    at,
	}
	r.byRef[ref] = name
	r.order = append(r.order, name)
	return nil
}

// SetActive toggles whether new deposits into the protocol are accepted.
func (r *Registry) SetActive(name string, active bool) error {
	name = Canonical(name)
	p, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	p.Active = active
	return nil
}

// UpdateAPY changes the nominal rate and restarts its accrual clock.
func (r *Registry) UpdateAPY(name string, apyBps uint64, at time.Time) error {
	name = Canonical(name)
	p, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	if apyBps > MaxAPYBps {
		return fmt.Errorf("%w: apy %d bps above %d", ErrInvalidProtocol, apyBps, MaxAPYBps)
	}
	p.APYBps = apyBps
	p.RateSince = at
	return nil
}

// Get retrieves a protocol by name.
func (r *Registry) Get(name string) (ProtocolView, bool) {
	p, ok := r.byName[Canonical(name)]
	if !ok {
		return ProtocolView{}, false
	}
	return *p, true
}

// Require returns the protocol regardless of its activity flag.
func (r *Registry) Require(name string) (ProtocolView, error) {
	p, ok := r.Get(name)
	if !ok {
		return ProtocolView{}, fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	return p, nil
}

// RequireActive returns the protocol if it is registered and active.
func (r *Registry) RequireActive(name string) (ProtocolView, error) {
	p, err := r.Require(name)
	if err != nil {
		return ProtocolView{}, err
	}
	if !p.Active {
		return ProtocolView{}, fmt.Errorf("%w: %s", ErrProtocolInactive, name)
	}
	return p, nil
}

// All returns a copy of every protocol in registration order.
func (r *Registry) All() []ProtocolView {
	all := make([]ProtocolView, 0, len(r.order))
	for _, name := range r.order {
		all = append(all, *r.byName[name])
	}
	return all
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	c := &Registry{
		byName: make(map[string]*ProtocolView, len(r.byName)),
		byRef:  make(map[common.Address]string, len(r.byRef)),
		order:  make([]string, len(r.order)),
	}
	copy(c.order, r.order)
	for ref, name := range r.byRef {
		c.byRef[ref] = name
	}
	for name, p := range r.byName {
		cp := *p
		c.byName[name] = &cp
	}
	return c
}
