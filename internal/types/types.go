package types

// StepEvent describes a pipeline state transition, broadcast to websocket
// clients as each on-chain step is submitted and confirmed.
type StepEvent struct {
	State       string `json:"state"`
	TxHash      string `json:"tx_hash,omitempty"`
	ExplorerURL string `json:"explorer_url,omitempty"`
	Detail      string `json:"detail,omitempty"`
}
