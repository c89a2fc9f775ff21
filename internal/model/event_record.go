package model

// EventRecord is the normalized representation of a ChainEvent for storage.
type EventRecord struct {
	ChainID         uint64                 `json:"chain_id"`
	ContractName    string                 `json:"contract_name"`
	ContractAddress string                 `json:"contract_address"`
	EventName       string                 `json:"event_name"`
	BlockNumber     uint64                 `json:"block_number"`
	TxIndex         uint64                 `json:"tx_index"`
	TxHash          string                 `json:"tx_hash"`
	LogAddress      string                 `json:"log_address"`
	Args            map[string]interface{} `json:"args"`
	ObservedAt      string                 `json:"observed_at"`
}
