package genesis

import (
	"bytes"
	"fmt"
	"strconv"
)

// CoinDecimals is the number of base units per whole coin (voting power unit).
const CoinDecimals = 100_000_000

// MaxCoin is the total issued supply in base units.
const MaxCoin Coin = 10_000_000_000_000_000_000

// Coin is an amount of base units.  It's written to json as a decimal string since the values exceed
// what javascript numbers hold, but json numbers are accepted when reading.
type Coin uint64

func (c Coin) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

func (c Coin) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

func (c *Coin) UnmarshalJSON(data []byte) error {
	text := string(bytes.Trim(data, `"`))
	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid coin amount %s: %w", data, err)
	}
	*c = Coin(value)
	return nil
}

// VotingPower converts bonded coin to consensus voting power, truncating any fraction of a whole coin.
func VotingPower(bonded Coin) uint64 {
	return uint64(bonded) / CoinDecimals
}
