package rediskey

import "fmt"

// Wallet keys (global convention across services)
const WalletVerifyPrefix = "wallet:verify"

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildWalletVerifyKey returns "wallet:verify:{tenantID}"
func BuildWalletVerifyKey(tenantID string) string {
	return NamespaceKey(WalletVerifyPrefix, tenantID)
}
