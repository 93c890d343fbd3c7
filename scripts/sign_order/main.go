package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/dan13ram/yusd-settlement/app"
	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/signer"
	"github.com/dan13ram/yusd-settlement/store"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

type signedOrder struct {
	Order     models.Order `json:"order"`
	Signature string       `json:"signature"`
}

func amount(name, value string, decimals uint) string {
	if value == "" {
		return "0"
	}
	scaled, err := app.ParseAmount(value, uint8(decimals))
	if err != nil {
		log.Fatalf("invalid %s: %v", name, err)
	}
	return scaled.String()
}

func newSigner() signer.Signer {
	if keyName := os.Getenv("GCP_KMS_KEY_NAME"); keyName != "" {
		s, err := signer.NewGcpKmsSigner(keyName)
		if err != nil {
			log.Fatalf("failed to create GCP KMS signer: %v", err)
		}
		return s
	}
	mnemonic := os.Getenv("SIGNER_MNEMONIC")
	if mnemonic == "" {
		log.Fatalf("set GCP_KMS_KEY_NAME or SIGNER_MNEMONIC")
	}
	s, err := signer.NewMnemonicSigner(mnemonic, os.Getenv("SIGNER_HD_PATH"))
	if err != nil {
		log.Fatalf("failed to create mnemonic signer: %v", err)
	}
	return s
}

// Main Function
func main() {
	var (
		orderType         = flag.Uint("type", 0, "order type: 0 mint, 1 redeem, 2 deposit income")
		requester         = flag.String("requester", "", "requester address, defaults to the signer")
		delegate          = flag.String("delegate", "", "delegate address allowed to submit the order")
		asset             = flag.String("asset", "", "collateral asset address")
		assetDecimals     = flag.Uint("asset-decimals", 6, "collateral asset decimals")
		collateralAmount  = flag.String("collateral", "", "collateral amount in whole units")
		yusdAmount        = flag.String("yusd", "", "yusd amount in whole units")
		slippage          = flag.String("min", "", "slippage adjusted amount in whole units")
		ttl               = flag.Duration("ttl", time.Hour, "time until the order expires")
		nonce             = flag.String("nonce", "", "order nonce, random when empty")
		additionalData    = flag.String("data", "", "hex additional data, 32 bytes for an embedded id")
		domainName        = flag.String("domain-name", "yUSD", "EIP-712 domain name")
		domainVersion     = flag.String("domain-version", "1", "EIP-712 domain version")
		verifyingContract = flag.String("verifying-contract", "", "EIP-712 verifying contract")
		chainID           = flag.Int64("chain-id", 1, "chain id")
	)
	flag.Parse()

	s := newSigner()
	defer s.Destroy()

	if *requester == "" {
		*requester = s.Address().Hex()
	}
	if *nonce == "" {
		id := uuid.New()
		*nonce = new(big.Int).SetBytes(id[:]).String()
	}

	// slippage is denominated in collateral for redeems and in yusd otherwise
	slippageDecimals := uint(18)
	if settlement.OrderType(*orderType) == settlement.OrderTypeRedeem {
		slippageDecimals = *assetDecimals
	}

	m := models.Order{
		OrderType:              uint8(*orderType),
		Requester:              *requester,
		Delegate:               *delegate,
		CollateralAsset:        *asset,
		CollateralAmount:       amount("collateral", *collateralAmount, *assetDecimals),
		YusdAmount:             amount("yusd", *yusdAmount, 18),
		SlippageAdjustedAmount: amount("min", *slippage, slippageDecimals),
		Expiry:                 time.Now().Add(*ttl).Unix(),
		Nonce:                  *nonce,
		AdditionalData:         *additionalData,
	}

	order, err := store.OrderFromModel(m)
	if err != nil {
		log.Fatalf("invalid order: %v", err)
	}
	if err := order.Validate(); err != nil {
		log.Fatalf("invalid order: %v", err)
	}

	domain := settlement.Domain{
		Name:              *domainName,
		Version:           *domainVersion,
		VerifyingContract: common.HexToAddress(*verifyingContract),
	}
	digest, err := settlement.HashOrder(domain, big.NewInt(*chainID), order)
	if err != nil {
		log.Fatalf("failed to hash order: %v", err)
	}

	signature, err := s.Sign(digest)
	if err != nil {
		log.Fatalf("failed to sign order: %v", err)
	}

	out, err := json.MarshalIndent(signedOrder{Order: store.OrderToModel(order), Signature: hexutil.Encode(signature)}, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode order: %v", err)
	}
	fmt.Println(string(out))
}
