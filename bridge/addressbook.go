package bridge

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// AddressBook is the name -> address registry tools share to discover
// deployed contracts. The runtime never consults it.
type AddressBook struct {
	path    string
	entries sync.Map // map[string]common.Address
}

// LoadAddressBook reads the YAML book at path. A missing file yields an
// empty book that Save will create.
func LoadAddressBook(path string) (*AddressBook, error) {
	book := &AddressBook{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return book, nil
	}
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("address book %s: %w", path, err)
	}
	for name, hex := range raw {
		if !common.IsHexAddress(hex) {
			return nil, fmt.Errorf("address book %s: invalid address %q for %s", path, hex, name)
		}
		book.entries.Store(name, common.HexToAddress(hex))
	}
	return book, nil
}

// Set records addr under name, replacing any previous entry.
func (b *AddressBook) Set(name string, addr common.Address) {
	b.entries.Store(name, addr)
}

// Get looks up name.
func (b *AddressBook) Get(name string) (common.Address, bool) {
	v, ok := b.entries.Load(name)
	if !ok {
		return common.Address{}, false
	}
	return v.(common.Address), true
}

// Names returns the recorded names in sorted order.
func (b *AddressBook) Names() []string {
	var names []string
	b.entries.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)
	return names
}

// Save writes the book back to its file.
func (b *AddressBook) Save() error {
	raw := make(map[string]string)
	b.entries.Range(func(k, v any) bool {
		raw[k.(string)] = v.(common.Address).Hex()
		return true
	})
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o644)
}
