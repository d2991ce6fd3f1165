package market

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizePrice は価格文字列を最小の10進表現に正規化する。
// 末尾のゼロや不要な小数点を含むリテラルは数値コーデックに
// 拒否されることがあるため、送信前に必ずこの形に揃える
// 例: "1.0" -> "1", "0.010" -> "0.01"
func NormalizePrice(price string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return "", fmt.Errorf("invalid price %q: %w", price, err)
	}
	if d.IsNegative() {
		return "", errors.New("price must not be negative")
	}
	return d.String(), nil
}

// ParseETHToWei はETH建ての価格文字列をWeiに変換する
func ParseETHToWei(price string) (*big.Int, error) {
	normalized, err := NormalizePrice(price)
	if err != nil {
		return nil, err
	}

	wei := decimal.RequireFromString(normalized).Shift(18)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("price %q has more than 18 decimal places", price)
	}
	return wei.BigInt(), nil
}
