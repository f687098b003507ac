package hooks

import (
	"math/big"

	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/contracts/nft"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Perspective selects the identity a hook runs as.
type Perspective uint8

const (
	// FromSelf executes as the proxy itself.
	FromSelf Perspective = iota
	// FromSA executes through the smart account of the remote caller.
	FromSA
)

// PerspectiveOf maps the wire flag isFromSAPerspective to a Perspective.
func PerspectiveOf(isFromSA bool) Perspective {
	if isFromSA {
		return FromSA
	}
	return FromSelf
}

// IsFromSA returns the wire flag for p.
func (p Perspective) IsFromSA() bool { return p == FromSA }

func (p Perspective) String() string {
	if p == FromSA {
		return "fromSA"
	}
	return "fromSelf"
}

// identity is an execution capability: an address that holds assets and
// can issue calls. The proxy and the smart account are its two variants.
type identity interface {
	address() (common.Address, error)
	call(target common.Address, value *big.Int, data []byte) ([]byte, error)
	// collect moves a token balance held by the identity to the proxy.
	collect(asset common.Address, amount *big.Int) error
	// collectNFT moves an NFT held by the identity to the proxy.
	collectNFT(collection common.Address, id *big.Int) error
}

type selfIdentity struct {
	ctx *vm.CallContext
}

func (s selfIdentity) address() (common.Address, error) { return s.ctx.Address, nil }

func (s selfIdentity) call(target common.Address, value *big.Int, data []byte) ([]byte, error) {
	v, err := toU256(value)
	if err != nil {
		return nil, err
	}
	return s.ctx.Call(target, data, v)
}

func (selfIdentity) collect(common.Address, *big.Int) error    { return nil }
func (selfIdentity) collectNFT(common.Address, *big.Int) error { return nil }

type accountIdentity struct {
	e *Executor
}

func (a accountIdentity) address() (common.Address, error) { return a.e.Account() }

func (a accountIdentity) call(target common.Address, value *big.Int, data []byte) ([]byte, error) {
	sa, err := a.e.Account()
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}
	return account.BindAccount(sa, a.e.ctx).ExecuteAsSelf(target, value, data)
}

func (a accountIdentity) collect(asset common.Address, amount *big.Int) error {
	_, err := a.call(asset, nil, token.TransferCalldata(a.e.ctx.Address, amount))
	return err
}

func (a accountIdentity) collectNFT(collection common.Address, id *big.Int) error {
	sa, err := a.e.Account()
	if err != nil {
		return err
	}
	_, err = a.call(collection, nil, nft.TransferFromCalldata(sa, a.e.ctx.Address, id))
	return err
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil || v.Sign() == 0 {
		return nil, nil
	}
	u, overflow := uint256.FromBig(v)
	if overflow || v.Sign() < 0 {
		return nil, vm.Revertf("hooks: invalid call value %v", v)
	}
	return u, nil
}
