package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodCreateContract = "createContract"
	MethodMarkSigned     = "markSigned"
)

// registryABI is the subset of the contract registry interface this service
// writes to and decodes.
const registryABI = `[
  {
    "type": "function",
    "name": "createContract",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "contractId", "type": "bytes32"},
      {"name": "templateId", "type": "uint256"},
      {"name": "version", "type": "uint256"},
      {"name": "hashPdf", "type": "bytes32"},
      {"name": "pointer", "type": "string"},
      {"name": "signers", "type": "address[]"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "markSigned",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "contractId", "type": "bytes32"},
      {"name": "signer", "type": "address"},
      {"name": "hashEvidence", "type": "bytes32"}
    ],
    "outputs": []
  }
]`

// RegistryABI returns the parsed registry interface.
func RegistryABI() abi.ABI {
	return parsedABI
}

var parsedABI = mustParseABI(registryABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid registry ABI: " + err.Error())
	}
	return parsed
}
