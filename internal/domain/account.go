package domain

// AccountData is the lookup result for one address: the current balance and
// one page of its normal transactions. Page, Offset and Sort echo the request.
type AccountData struct {
	Address            string        `json:"address"`
	Balance            string        `json:"balance"`
	Page               int           `json:"page"`
	Offset             int           `json:"offset"`
	Sort               string        `json:"sort"`
	NormalTransactions []Transaction `json:"normal_transactions"`
}
