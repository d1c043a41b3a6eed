package domain

import (
	"fmt"
	"math/big"
)

// SelectWinner maps random onto snapshot with unsigned modulo.
// random must be non-negative and snapshot non-empty; both are checked by
// the caller, so a violation here is a programming error and panics.
func SelectWinner(random *big.Int, snapshot []string) (int, string) {
	if len(snapshot) == 0 {
		panic("raffle: winner selection over an empty snapshot")
	}
	if random == nil || random.Sign() < 0 {
		panic(fmt.Sprintf("raffle: winner selection with invalid random value %v", random))
	}
	n := new(big.Int).SetInt64(int64(len(snapshot)))
	idx := int(new(big.Int).Mod(random, n).Int64())
	return idx, snapshot[idx]
}
