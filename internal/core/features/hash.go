package features

import "hash/fnv"

const (
	// HashVersion はハッシュフォールバックのアルゴリズム識別子
	// アルゴリズムを変える場合は必ずバージョンを上げること
	HashVersion = "fnv1a64-v1"

	hashModulus = 1000
)

// StableHash は文字列の FNV-1a 64bit ハッシュを返す
// プロセスや実行をまたいで同じ値になる
func StableHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// hashBucket は h(s) mod 1000 を返す
func hashBucket(s string) float64 {
	return float64(StableHash(s) % hashModulus)
}
