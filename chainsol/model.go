package chainsol

// Transaction states reported by TransactionStatus.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusNotFound  = "not_found"
)

// TransactionStatusResponse - Response status transaction
type TransactionStatusResponse struct {
	Signature     string  `json:"signature"`
	Status        string  `json:"status"` // confirmed, failed, not_found
	Confirmations uint64  `json:"confirmations"`
	Slot          uint64  `json:"slot"`
	BlockTime     *int64  `json:"block_time,omitempty"`
	Fee           uint64  `json:"fee"`
	Error         *string `json:"error,omitempty"`
	ExplorerURL   string  `json:"explorer_url,omitempty"`
}
