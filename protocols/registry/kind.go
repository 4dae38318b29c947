package registry

import (
	"fmt"
	"strings"
)

// Kind is the strategy category of an external yield source. It selects the
// call shape the dispatch layer uses against the protocol.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLiquid
	KindLending
	KindLPStaking
	KindCompound
)

var kindNames = map[Kind]string{
	KindLiquid:    "liquid",
	KindLending:   "lending",
	KindLPStaking: "lp",
	KindCompound:  "compound",
}

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindLiquid, KindLending, KindLPStaking, KindCompound}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind accepts the canonical names plus a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "liquid", "liquid-staking":
		return KindLiquid, nil
	case "lending":
		return KindLending, nil
	case "lp", "lp-staking", "lpstaking":
		return KindLPStaking, nil
	case "compound":
		return KindCompound, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(data []byte) error {
	parsed, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
