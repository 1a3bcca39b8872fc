package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormKey is returned when a form key string is malformed.
var ErrInvalidFormKey = errors.New("invalid form key")

// FormKey identifies a record: a 24-bit local ID inside the plugin that owns it.
// Value type, comparable, usable as a map key.
type FormKey struct {
	ID  uint32
	Mod string
}

// NullFormKey означает отсутствие ссылки.
var NullFormKey = FormKey{}

// NewFormKey creates a FormKey, masking the ID to 24 bits.
func NewFormKey(id uint32, mod string) FormKey {
	return FormKey{ID: id & 0x00FFFFFF, Mod: mod}
}

// IsNull reports whether the key refers to nothing.
func (k FormKey) IsNull() bool {
	return k.Mod == "" && k.ID == 0
}

// String formats the key as "00003C:Skyrim.esm".
func (k FormKey) String() string {
	return fmt.Sprintf("%06X:%s", k.ID, k.Mod)
}

// ParseFormKey parses the "ID:Plugin" form produced by String.
// Plugin names compare case-sensitively after parsing; callers normalize if needed.
func ParseFormKey(s string) (FormKey, error) {
	idPart, mod, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || idPart == "" || mod == "" {
		return NullFormKey, fmt.Errorf("%w: %q", ErrInvalidFormKey, s)
	}
	if len(idPart) > 6 {
		return NullFormKey, fmt.Errorf("%w: %q: id wider than 24 bits", ErrInvalidFormKey, s)
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return NullFormKey, fmt.Errorf("%w: %q: %v", ErrInvalidFormKey, s, err)
	}
	return FormKey{ID: uint32(id), Mod: mod}, nil
}

// UnmarshalText implements encoding.TextUnmarshaler (used by YAML config).
func (k *FormKey) UnmarshalText(text []byte) error {
	parsed, err := ParseFormKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k FormKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
