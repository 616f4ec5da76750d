package entity

import (
	"fmt"
	"sort"
	"strings"
)

var registry = map[string]*Codec{}

func register(c *Codec) *Codec {
	if err := c.Validate(); err != nil {
		panic(err)
	}
	if _, dup := registry[c.Name]; dup {
		panic(fmt.Sprintf("entity %q registered twice", c.Name))
	}
	registry[c.Name] = c
	return c
}

// All returns every registered codec ordered by name.
func All() []*Codec {
	out := make([]*Codec, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered entity names in order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name
	}
	return names
}

// Lookup finds a codec by name (case-insensitive) or by collection name.
func Lookup(name string) (*Codec, error) {
	if c, ok := registry[name]; ok {
		return c, nil
	}
	for _, c := range registry {
		if strings.EqualFold(c.Name, name) || c.Collection == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownEntity, name, strings.Join(Names(), ", "))
}

// ByArea finds the codec stored under the given area folder.
func ByArea(area string) (*Codec, bool) {
	for _, c := range registry {
		if c.Area == area {
			return c, true
		}
	}
	return nil, false
}
