package models

import (
	"time"

	"github.com/aman-zulfiqar/simpledex-engine/internal/pricing"
)

// DisconnectedAddress is shown in place of an address when no signer is configured.
const DisconnectedAddress = "Connect Your Wallet for more info"

// ReserveSnapshot is the last consistent read of the pool.
type ReserveSnapshot struct {
	EthReserve   float64       `json:"eth_reserve"`
	TokenReserve float64       `json:"token_reserve"`
	LPSupply     float64       `json:"lp_supply"`
	EthPerToken  pricing.Price `json:"eth_per_token"`
	TokenPerEth  pricing.Price `json:"token_per_eth"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// WalletSnapshot is the last consistent read of the signer's holdings.
type WalletSnapshot struct {
	Connected    bool      `json:"connected"`
	Address      string    `json:"address"`
	Network      string    `json:"network"`
	EthBalance   float64   `json:"eth_balance"`
	TokenBalance float64   `json:"token_balance"`
	LPBalance    float64   `json:"lp_balance"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisconnectedWallet is the wallet snapshot without a signer.
func DisconnectedWallet() WalletSnapshot {
	return WalletSnapshot{Address: DisconnectedAddress}
}

// SnapshotKind tags which snapshot an update carries.
type SnapshotKind string

const (
	SnapshotReserves SnapshotKind = "reserves"
	SnapshotWallet   SnapshotKind = "wallet"
)

// SnapshotUpdate is pushed to subscribers whenever a snapshot is replaced.
type SnapshotUpdate struct {
	Kind     SnapshotKind     `json:"kind"`
	Reserves *ReserveSnapshot `json:"reserves,omitempty"`
	Wallet   *WalletSnapshot  `json:"wallet,omitempty"`
}
