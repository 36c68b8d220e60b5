package chainevm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// NativeToken is the base token address that stands for the chain's gas
// token; orders over it are paid as call value.
var NativeToken = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

const ucs03JSON = `[
  {"type":"function","name":"send","stateMutability":"payable","inputs":[
    {"name":"channelId","type":"uint32"},
    {"name":"timeoutHeight","type":"uint64"},
    {"name":"timeoutTimestamp","type":"uint64"},
    {"name":"salt","type":"bytes32"},
    {"name":"instruction","type":"tuple","components":[
      {"name":"version","type":"uint8"},
      {"name":"opcode","type":"uint8"},
      {"name":"operand","type":"bytes"}
    ]}
  ],"outputs":[]}
]`

const erc20JSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const safeJSON = `[
  {"type":"function","name":"nonce","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	ucs03ABI = mustABI(ucs03JSON)
	erc20ABI = mustABI(erc20JSON)
	safeABI  = mustABI(safeJSON)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
