package types

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrInvalidMethodName = errors.New("invalid method name")
	ErrInvalidArguments  = errors.New("invalid message arguments")
	ErrMissingTarget     = errors.New("message has no target")
	ErrMissingCaller     = errors.New("message has no remote caller")
	ErrInvalidAmount     = errors.New("invalid asset amount")
	ErrInvalidGasLimit   = errors.New("negative gas limit")
)

// methodNameRe matches "<action>(bytes,bytes)": every proxy action takes
// exactly two opaque byte parameters.
var methodNameRe = regexp.MustCompile(`^([A-Za-z_$][A-Za-z0-9_$]*)\(bytes,bytes\)$`)

// TokenAmount is an (asset, amount) pair of a fungible token.
type TokenAmount struct {
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
}

// NFTToken identifies a single non-fungible token.
type NFTToken struct {
	Collection common.Address `json:"collection"`
	TokenId    *big.Int       `json:"tokenId"`
}

// AssetDescriptor carries the metadata custody needs to create the local
// wrapped representation of a remote asset the first time it is bridged.
type AssetDescriptor struct {
	Asset    common.Address `json:"asset"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
	NFT      bool           `json:"nft,omitempty"` // Describes an NFT collection
}

// Envelope is an inbound message from the remote ledger. It has already been
// authenticated by the consensus layer when it reaches this module.
type Envelope struct {
	ShardsKey   uint64
	GasLimit    *big.Int // Advisory only
	OperationID common.Hash
	Timestamp   uint64
	Target      common.Address // Application proxy to invoke
	MethodName  string         // "<action>(bytes,bytes)"
	Arguments   []byte         // ABI encoding of the two byte parameters
	Caller      string         // Remote-side identity
	Mint        []TokenAmount
	Unlock      []TokenAmount
	NFTMint     []NFTToken
	NFTUnlock   []NFTToken
	Meta        []AssetDescriptor
}

// Hash returns the keccak256 hash of the RLP encoding of the envelope.
func (e *Envelope) Hash() common.Hash {
	return rlpHash(e)
}

// Action returns the action part of the method name.
func (e *Envelope) Action() (string, error) {
	action, _, err := ParseMethodName(e.MethodName)
	return action, err
}

// Calldata returns the full call input for the target proxy: the method
// selector followed by the encoded arguments.
func (e *Envelope) Calldata() ([]byte, error) {
	_, sel, err := ParseMethodName(e.MethodName)
	if err != nil {
		return nil, err
	}
	return append(sel[:], e.Arguments...), nil
}

// Validate performs the stateless checks on the envelope.
func (e *Envelope) Validate() error {
	if _, _, err := ParseMethodName(e.MethodName); err != nil {
		return err
	}
	if e.Target == (common.Address{}) {
		return ErrMissingTarget
	}
	if e.Caller == "" {
		return ErrMissingCaller
	}
	if e.GasLimit != nil && e.GasLimit.Sign() < 0 {
		return ErrInvalidGasLimit
	}
	if _, _, err := UnpackArguments(e.Arguments); err != nil {
		return err
	}
	for _, list := range [][]TokenAmount{e.Mint, e.Unlock} {
		for _, ta := range list {
			if ta.Amount == nil || ta.Amount.Sign() <= 0 {
				return fmt.Errorf("%w: %v", ErrInvalidAmount, ta.Asset)
			}
		}
	}
	for _, list := range [][]NFTToken{e.NFTMint, e.NFTUnlock} {
		for _, nft := range list {
			if nft.TokenId == nil || nft.TokenId.Sign() < 0 {
				return fmt.Errorf("%w: nft %v", ErrInvalidAmount, nft.Collection)
			}
		}
	}
	return nil
}

// ParseMethodName validates a "<action>(bytes,bytes)" method name and
// returns the action together with its 4-byte selector.
func ParseMethodName(name string) (string, [4]byte, error) {
	var sel [4]byte
	m := methodNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", sel, fmt.Errorf("%w: %q", ErrInvalidMethodName, name)
	}
	copy(sel[:], crypto.Keccak256([]byte(name))[:4])
	return m[1], sel, nil
}

// MethodName returns the canonical method name of an action.
func MethodName(action string) string {
	return action + "(bytes,bytes)"
}

// Selector returns the selector of an action.
func Selector(action string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(MethodName(action)))[:4])
	return sel
}

var bytesPair abi.Arguments

func init() {
	typ, err := abi.NewType("bytes", "", nil)
	if err != nil {
		panic(err)
	}
	bytesPair = abi.Arguments{{Name: "arguments", Type: typ}, {Name: "extra", Type: typ}}
}

// PackArguments encodes the two byte parameters of an action.
func PackArguments(arguments, extra []byte) []byte {
	if arguments == nil {
		arguments = []byte{}
	}
	if extra == nil {
		extra = []byte{}
	}
	packed, err := bytesPair.Pack(arguments, extra)
	if err != nil {
		panic(err) // cannot happen for two byte slices
	}
	return packed
}

// UnpackArguments decodes the two byte parameters of an action.
func UnpackArguments(data []byte) ([]byte, []byte, error) {
	out, err := bytesPair.Unpack(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return out[0].([]byte), out[1].([]byte), nil
}

func rlpHash(x interface{}) common.Hash {
	enc, err := rlp.EncodeToBytes(x)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}
