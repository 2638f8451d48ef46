package entities

type RPCHealth struct {
	Status      string `json:"status"`
	LatestBlock uint64 `json:"latest_block"`
	ChainID     string `json:"chain_id"`
}
