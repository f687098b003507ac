package tracing

// HookPhase identifies a phase of hook bundle execution.
type HookPhase int

const (
	PhasePre HookPhase = iota
	PhaseMain
	PhasePost
	PhaseBridge
)

// CustodyOp is a description of the reason why custody moved an asset.
type CustodyOp int

const (
	CustodyUnspecified CustodyOp = iota
	CustodyMint
	CustodyUnlock
	CustodyLock
	CustodyBurn
	CustodyNFTMint
	CustodyNFTUnlock
	CustodyNFTLock
	CustodyNFTBurn
)

// String returns a human-readable string for the phase.
func (p HookPhase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseMain:
		return "main"
	case PhasePost:
		return "post"
	case PhaseBridge:
		return "bridge"
	}
	return "unknown"
}

// String returns a human-readable string for the operation.
func (op CustodyOp) String() string {
	switch op {
	case CustodyUnspecified:
		return "unspecified"
	case CustodyMint:
		return "mint"
	case CustodyUnlock:
		return "unlock"
	case CustodyLock:
		return "lock"
	case CustodyBurn:
		return "burn"
	case CustodyNFTMint:
		return "nft_mint"
	case CustodyNFTUnlock:
		return "nft_unlock"
	case CustodyNFTLock:
		return "nft_lock"
	case CustodyNFTBurn:
		return "nft_burn"
	}
	return "unknown"
}
