package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/crossledger/appproxy/contracts/account"
	"github.com/crossledger/appproxy/contracts/custody"
	"github.com/crossledger/appproxy/contracts/pool"
	"github.com/crossledger/appproxy/contracts/token"
	"github.com/crossledger/appproxy/core/types"
	"github.com/crossledger/appproxy/core/vm"
	"github.com/crossledger/appproxy/proxy"
	"github.com/crossledger/appproxy/zap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/log"
)

// Fixed addresses of the devnet contracts.
var (
	CustodyAddress    = common.HexToAddress("0x000000000000000000000000000000000000a001")
	FactoryAddress    = common.HexToAddress("0x000000000000000000000000000000000000a002")
	CurveProxyAddress = common.HexToAddress("0x000000000000000000000000000000000000a003")
	HookProxyAddress  = common.HexToAddress("0x000000000000000000000000000000000000a004")
	PoolAddress       = common.HexToAddress("0x000000000000000000000000000000000000a005")

	// DefaultRelayer owns custody and delivers inbound messages.
	DefaultRelayer = common.HexToAddress("0x000000000000000000000000000000000000a0ff")
)

var errGenesisNoState = errors.New("genesis: nil state")

// Genesis describes the initial contract set of a devnet.
type Genesis struct {
	Relayer           common.Address
	BridgeEnforcement zap.Enforcement

	// Pool, when set, deploys a two-coin pool over wrapped assets.
	Pool *PoolGenesis
}

// PoolGenesis describes the wrapped coins of the devnet pool and the
// liquidity the relayer seeds it with.
type PoolGenesis struct {
	Coins    [pool.N]types.AssetDescriptor
	Seed     [pool.N]*big.Int
	LPName   string
	LPSymbol string
}

// Deployment is the address set produced by Genesis.Commit.
type Deployment struct {
	Relayer    common.Address
	Custody    common.Address
	Factory    common.Address
	CurveProxy common.Address
	HookProxy  common.Address

	// Set when the genesis carries a pool.
	Pool    common.Address
	Coins   [pool.N]common.Address
	LPToken common.Address
}

// DefaultGenesis returns a devnet with a TON/USDT pool.
func DefaultGenesis() *Genesis {
	return &Genesis{
		Relayer:           DefaultRelayer,
		BridgeEnforcement: zap.EnforcePerAsset,
		Pool: &PoolGenesis{
			Coins: [pool.N]types.AssetDescriptor{
				{Asset: common.HexToAddress("0x000000000000000000000000000000000000b001"), Name: "Wrapped TON", Symbol: "wTON", Decimals: 9},
				{Asset: common.HexToAddress("0x000000000000000000000000000000000000b002"), Name: "Wrapped USDT", Symbol: "wUSDT", Decimals: 6},
			},
			Seed:     [pool.N]*big.Int{big.NewInt(1_000_000), big.NewInt(1_000_000)},
			LPName:   "TON/USDT LP",
			LPSymbol: "TU-LP",
		},
	}
}

// Commit deploys the genesis contracts into sdb and finalises the state.
func (g *Genesis) Commit(sdb *state.StateDB) (*Deployment, error) {
	if sdb == nil {
		return nil, errGenesisNoState
	}
	relayer := g.Relayer
	if relayer == (common.Address{}) {
		relayer = DefaultRelayer
	}
	host := vm.NewHost(sdb, vm.DefaultConfig)
	dep := &Deployment{
		Relayer:    relayer,
		Custody:    CustodyAddress,
		Factory:    FactoryAddress,
		CurveProxy: CurveProxyAddress,
		HookProxy:  HookProxyAddress,
	}
	deploys := []struct {
		addr common.Address
		bp   *vm.Blueprint
		args []byte
	}{
		{dep.Custody, custody.Blueprint, custody.ConstructorArgs(relayer)},
		{dep.Factory, account.FactoryBlueprint, account.FactoryConstructorArgs(relayer)},
		{dep.CurveProxy, proxy.CurveBlueprint, proxy.ConstructorArgs(dep.Custody, dep.Factory, g.BridgeEnforcement)},
		{dep.HookProxy, proxy.HookBlueprint, proxy.ConstructorArgs(dep.Custody, dep.Factory, g.BridgeEnforcement)},
	}
	for _, d := range deploys {
		if err := host.Deploy(relayer, d.addr, d.bp, d.args); err != nil {
			return nil, fmt.Errorf("genesis: deploy %s: %w", d.bp.Name, err)
		}
	}
	if g.Pool != nil {
		if err := g.Pool.commit(host, dep); err != nil {
			return nil, err
		}
	}
	sdb.Finalise(true)
	log.Info("Committed genesis", "custody", dep.Custody, "factory", dep.Factory, "pool", dep.Pool)
	return dep, nil
}

func (pg *PoolGenesis) commit(host *vm.Host, dep *Deployment) error {
	ledger := custody.Bind(dep.Custody, host.As(dep.Relayer))
	for i, desc := range pg.Coins {
		if err := ledger.Register(desc); err != nil {
			return fmt.Errorf("genesis: register %s: %w", desc.Symbol, err)
		}
		dep.Coins[i] = desc.Asset
	}
	dep.Pool = PoolAddress
	if err := host.Deploy(dep.Relayer, dep.Pool, pool.Blueprint, pool.ConstructorArgs(dep.Coins[0], dep.Coins[1], pg.LPName, pg.LPSymbol)); err != nil {
		return fmt.Errorf("genesis: deploy pool: %w", err)
	}
	dep.LPToken = pool.LPTokenAddress(dep.Pool)

	if pg.Seed[0] == nil || pg.Seed[1] == nil {
		return nil
	}
	for i, coin := range dep.Coins {
		if _, err := ledger.Mint(coin, dep.Relayer, pg.Seed[i]); err != nil {
			return fmt.Errorf("genesis: seed %s: %w", pg.Coins[i].Symbol, err)
		}
		if err := token.Bind(coin, host.As(dep.Relayer)).Approve(dep.Pool, pg.Seed[i]); err != nil {
			return err
		}
	}
	if _, err := pool.Bind(dep.Pool, host.As(dep.Relayer)).AddLiquidity(pg.Seed, common.Big0); err != nil {
		return fmt.Errorf("genesis: seed pool: %w", err)
	}
	return nil
}
