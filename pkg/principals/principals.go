// Package principals 从助记词派生调用方（部署者/管理员）地址。
package principals

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
)

// DefaultBase BIP-44 以太坊路径前缀
const DefaultBase = "m/44'/60'/0'/0"

// Derive 派生 base/0 .. base/(count-1) 的地址
func Derive(mnemonic, base string, count int) ([]common.Address, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if mnemonic == "" {
		return nil, fmt.Errorf("mnemonic is required")
	}
	if base == "" {
		base = DefaultBase
	}
	if count < 1 {
		return nil, fmt.Errorf("count must be >= 1")
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}

	out := make([]common.Address, 0, count)
	for i := 0; i < count; i++ {
		path, err := hdwallet.ParseDerivationPath(fmt.Sprintf("%s/%d", base, i))
		if err != nil {
			return nil, fmt.Errorf("invalid derivation path: %w", err)
		}
		acct, err := w.Derive(path, false)
		if err != nil {
			return nil, fmt.Errorf("derive failed: %w", err)
		}
		out = append(out, acct.Address)
	}
	return out, nil
}

// Fallback 没有助记词时使用的固定地址（仅用于本地演示）
func Fallback(count int) []common.Address {
	out := make([]common.Address, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, common.BigToAddress(big.NewInt(int64(0x1000+i))))
	}
	return out
}
