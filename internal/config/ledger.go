package config

import "time"

type Ledger struct {
	RPCURL          string        `env:"LEDGER_RPC_URL,notEmpty"`
	ContractAddress string        `env:"LEDGER_CONTRACT_ADDRESS,notEmpty"`
	ChainID         int64         `env:"LEDGER_CHAIN_ID" envDefault:"31337"`
	PrivateKey      string        `env:"LEDGER_PRIVATE_KEY,notEmpty" json:"-"`
	DealID          uint64        `env:"DEAL_ID" envDefault:"0"`
	DialTimeout     time.Duration `env:"LEDGER_DIAL_TIMEOUT" envDefault:"10s"`
}
