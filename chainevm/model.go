package chainevm

// Transaction states reported by TransactionStatus.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusNotFound  = "not_found"
)

// TransactionStatusResponse - Response status transaction
type TransactionStatusResponse struct {
	TxHash        string  `json:"tx_hash"`
	Status        string  `json:"status"` // confirmed, failed, not_found
	Confirmations uint64  `json:"confirmations"`
	BlockNumber   uint64  `json:"block_number"`
	BlockHash     string  `json:"block_hash,omitempty"`
	GasUsed       uint64  `json:"gas_used"`
	Error         *string `json:"error,omitempty"`
	ExplorerURL   string  `json:"explorer_url,omitempty"`
}
