package bindings

import "fmt"

// LotteryState mirrors the LOTTERY_STATE enum of the Lottery contract.
type LotteryState uint8

const (
	LotteryOpen LotteryState = iota
	LotteryClosed
	LotteryCalculatingWinner
)

func (s LotteryState) String() string {
	switch s {
	case LotteryOpen:
		return "OPEN"
	case LotteryClosed:
		return "CLOSED"
	case LotteryCalculatingWinner:
		return "CALCULATING_WINNER"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// NFTLotteryState mirrors the LotteryState enum of the NFT lottery contract.
type NFTLotteryState uint8

const (
	NFTLotteryOpen NFTLotteryState = iota
	NFTLotteryCalculating
)

func (s NFTLotteryState) String() string {
	switch s {
	case NFTLotteryOpen:
		return "OPEN"
	case NFTLotteryCalculating:
		return "CALCULATING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}
