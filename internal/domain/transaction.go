package domain

// Transaction is a normal transaction as reported by the explorer. Numeric
// fields keep the explorer's decimal string encoding.
type Transaction struct {
	Hash              string `json:"hash"`
	From              string `json:"from"`
	To                string `json:"to"`
	BlockNumber       string `json:"block_number"`
	BlockHash         string `json:"block_hash,omitempty"`
	TimeStamp         string `json:"time_stamp"`
	Nonce             string `json:"nonce,omitempty"`
	TransactionIndex  string `json:"transaction_index,omitempty"`
	Value             string `json:"value"`
	Gas               string `json:"gas,omitempty"`
	GasPrice          string `json:"gas_price"`
	GasUsed           string `json:"gas_used,omitempty"`
	CumulativeGasUsed string `json:"cumulative_gas_used"`
	IsError           string `json:"is_error,omitempty"`
	TxReceiptStatus   string `json:"txreceipt_status,omitempty"`
	Input             string `json:"input,omitempty"`
	ContractAddress   string `json:"contract_address,omitempty"`
	Confirmations     string `json:"confirmations,omitempty"`
	MethodID          string `json:"method_id,omitempty"`
	FunctionName      string `json:"function_name,omitempty"`
}
