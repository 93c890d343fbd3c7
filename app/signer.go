package app

import (
	"fmt"

	"github.com/dan13ram/yusd-settlement/signer"
)

// newGcpKmsSigner is replaced in tests.
var newGcpKmsSigner = func(keyName string) (signer.Signer, error) {
	s, err := signer.NewGcpKmsSigner(keyName)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CreateEthereumSigner builds the operator key that sends ledger
// transactions. A mnemonic takes precedence over a KMS key.
func CreateEthereumSigner() (signer.Signer, error) {
	config := Config.Ethereum
	if config.Mnemonic == "" && config.GcpKmsKeyName == "" {
		return nil, fmt.Errorf("both Mnemonic and GcpKmsKeyName are empty")
	}
	if config.Mnemonic != "" {
		s, err := signer.NewMnemonicSigner(config.Mnemonic, config.HDPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	return newGcpKmsSigner(config.GcpKmsKeyName)
}
