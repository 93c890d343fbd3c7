package main

import (
	"fmt"
	"log"
	"os"

	"github.com/dan13ram/yusd-settlement/signer"
	"github.com/ethereum/go-ethereum/crypto"
)

// Main Function
func main() {
	GoogleKeyName := os.Getenv("GCP_KMS_KEY_NAME")

	fmt.Println("Google KMS Key Name: ", GoogleKeyName)
	if GoogleKeyName == "" {
		log.Fatalf("GCP KMS Key Name not set")
	}

	kmsSigner, err := signer.NewGcpKmsSigner(GoogleKeyName)
	if err != nil {
		log.Fatalf("failed to create GCP KMS signer: %v", err)
	}
	defer kmsSigner.Destroy()

	fmt.Println("Eth Address: ", kmsSigner.Address().Hex())
	fmt.Printf("Public Key: %x\n", kmsSigner.PublicKey())

	data := []byte("example order data")

	signature, err := kmsSigner.Sign(data)
	if err != nil {
		log.Fatalf("failed to sign hash: %v", err)
	}
	fmt.Printf("Signature: %x\n", signature)

	recovered, err := crypto.SigToPub(crypto.Keccak256(data), append(signature[:64:64], signature[64]-27))
	if err != nil {
		log.Fatalf("failed to recover signer: %v", err)
	}
	fmt.Println("Recovered Address: ", crypto.PubkeyToAddress(*recovered).Hex())
}
