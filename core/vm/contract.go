package vm

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Contract is a natively implemented contract. Run is invoked with the raw
// calldata of every call that reaches an address holding the contract's
// blueprint code.
type Contract interface {
	Run(ctx *CallContext, input []byte) ([]byte, error)
}

// Blueprint is the deployable template of a native contract. The StateDB only
// stores the blueprint's marker code; the host maps the hash of that code
// back to the Go implementation.
type Blueprint struct {
	Name     string
	Contract Contract

	// Init runs once at deployment with the ABI encoded constructor arguments.
	Init func(ctx *CallContext, args []byte) error

	// System marks contracts allowed to place code at fixed addresses.
	System bool

	code []byte
	hash common.Hash
}

// Code returns the marker code stored at every instance of the blueprint.
func (b *Blueprint) Code() []byte {
	return common.CopyBytes(b.code)
}

// CodeHash returns the keccak256 hash of the blueprint code.
func (b *Blueprint) CodeHash() common.Hash { return b.hash }

// blueprints maps code hashes to registered blueprints.
var blueprints sync.Map // map[common.Hash]*Blueprint

// Register computes the marker code of bp and makes it resolvable by the
// host. Registering two different blueprints under one name panics.
func Register(bp *Blueprint) *Blueprint {
	if bp.Name == "" || bp.Contract == nil {
		panic("vm: blueprint needs a name and a contract")
	}
	bp.code = append([]byte{0xfe}, []byte("native:"+bp.Name)...)
	bp.hash = crypto.Keccak256Hash(bp.code)

	if prev, loaded := blueprints.LoadOrStore(bp.hash, bp); loaded && prev.(*Blueprint) != bp {
		panic(fmt.Sprintf("vm: blueprint %q registered twice", bp.Name))
	}
	return bp
}

// Lookup resolves a code hash into its blueprint.
func Lookup(codeHash common.Hash) (*Blueprint, bool) {
	if v, ok := blueprints.Load(codeHash); ok {
		return v.(*Blueprint), true
	}
	return nil, false
}
