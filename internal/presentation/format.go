// Package presentation derives display strings from account documents.
package presentation

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"ethcrawler/internal/domain"

	"github.com/ethereum/go-ethereum/params"
)

const (
	Placeholder     = "N/A"
	timestampLayout = "2006-01-02 15:04:05"
	etherDecimals   = 18
)

var ErrMalformedNumber = errors.New("malformed number")

var weiPerEther = big.NewInt(params.Ether)

type AccountView struct {
	Address string
	Balance string
	TxCount int
	Rows    []TransactionRow
}

type TransactionRow struct {
	Age   string
	Block string
	From  string
	To    string
	Value string
	Fee   string
	Hash  string
}

// UnitConvert renders a wei amount in ether as an exact decimal with trailing
// fractional zeros removed.
func UnitConvert(raw string) (string, error) {
	wei, err := parseUnsigned(raw)
	if err != nil {
		return "", err
	}
	return formatEther(wei), nil
}

// TransactionFee renders gasPrice * gasUsed in ether.
func TransactionFee(gasPrice, gasUsed string) (string, error) {
	price, err := parseUnsigned(gasPrice)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	used, err := parseUnsigned(gasUsed)
	if err != nil {
		return "", fmt.Errorf("gas used: %w", err)
	}
	return formatEther(new(big.Int).Mul(price, used)), nil
}

// FormatTimestamp renders Unix seconds as UTC "YYYY-MM-DD HH:MM:SS".
func FormatTimestamp(ts string) (string, error) {
	seconds, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || seconds < 0 {
		return "", fmt.Errorf("%w: timestamp %q", ErrMalformedNumber, ts)
	}
	return time.Unix(seconds, 0).UTC().Format(timestampLayout), nil
}

// FormatAccount builds the table view. Fields that fail to parse are shown
// as Placeholder instead of failing the whole view.
func FormatAccount(account domain.AccountData) AccountView {
	view := AccountView{
		Address: account.Address,
		Balance: orPlaceholder(UnitConvert(account.Balance)),
		TxCount: len(account.NormalTransactions),
		Rows:    make([]TransactionRow, 0, len(account.NormalTransactions)),
	}
	for _, tx := range account.NormalTransactions {
		view.Rows = append(view.Rows, TransactionRow{
			Age:   orPlaceholder(FormatTimestamp(tx.TimeStamp)),
			Block: tx.BlockNumber,
			From:  tx.From,
			To:    tx.To,
			Value: orPlaceholder(UnitConvert(tx.Value)),
			Fee:   orPlaceholder(TransactionFee(tx.GasPrice, tx.CumulativeGasUsed)),
			Hash:  tx.Hash,
		})
	}
	return view
}

func parseUnsigned(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedNumber, raw)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedNumber, raw)
	}
	return value, nil
}

func formatEther(wei *big.Int) string {
	whole, frac := new(big.Int).QuoRem(wei, weiPerEther, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	digits := frac.String()
	digits = strings.Repeat("0", etherDecimals-len(digits)) + digits
	return whole.String() + "." + strings.TrimRight(digits, "0")
}

func orPlaceholder(value string, err error) string {
	if err != nil {
		return Placeholder
	}
	return value
}
