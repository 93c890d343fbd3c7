package signer

import (
	"context"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"

	kms "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	dcrecSecp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	gax "github.com/googleapis/gax-go/v2"
)

type GCPKeyManagementClient interface {
	Close() error
	GetPublicKey(ctx context.Context, req *kmspb.GetPublicKeyRequest, opts ...gax.CallOption) (*kmspb.PublicKey, error)
	AsymmetricSign(ctx context.Context, req *kmspb.AsymmetricSignRequest, opts ...gax.CallOption) (*kmspb.AsymmetricSignResponse, error)
	GetCryptoKeyVersion(ctx context.Context, req *kmspb.GetCryptoKeyVersionRequest, opts ...gax.CallOption) (*kmspb.CryptoKeyVersion, error)
}

type GcpKmsSigner struct {
	client    GCPKeyManagementClient
	keyName   string
	address   common.Address
	publicKey *dcrecSecp256k1.PublicKey
}

var _ Signer = &GcpKmsSigner{}

var NewGCPKeyManagementClient = func(ctx context.Context) (GCPKeyManagementClient, error) {
	return kms.NewKeyManagementClient(ctx)
}

var oidPublicKeyECDSA = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}

// NewGcpKmsSigner signs with the KMS key version keyName, which must be an
// EC_SIGN_SECP256K1_SHA256 key.
func NewGcpKmsSigner(keyName string) (*GcpKmsSigner, error) {
	client, err := NewGCPKeyManagementClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS client: %w", err)
	}

	keyVersion, err := client.GetCryptoKeyVersion(context.Background(), &kmspb.GetCryptoKeyVersionRequest{Name: keyName})
	if err != nil {
		return nil, fmt.Errorf("failed to get key version details: %w", err)
	}
	if keyVersion.Algorithm != kmspb.CryptoKeyVersion_EC_SIGN_SECP256K1_SHA256 {
		return nil, fmt.Errorf("key algorithm is %s, not EC_SIGN_SECP256K1_SHA256", keyVersion.Algorithm)
	}

	pubKeyBytes, err := resolvePubKeyBytes(client, keyName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve public key: %w", err)
	}

	ethPublicKey, err := crypto.UnmarshalPubkey(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal public key: %w", err)
	}

	publicKey, err := dcrecSecp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &GcpKmsSigner{
		client:    client,
		keyName:   keyName,
		address:   crypto.PubkeyToAddress(*ethPublicKey),
		publicKey: publicKey,
	}, nil
}

func (s *GcpKmsSigner) Destroy() {
	s.client.Close()
}

func (s *GcpKmsSigner) Sign(data []byte) ([]byte, error) {
	return signHash(s.client, s.keyName, digestOf(data), s.address)
}

func (s *GcpKmsSigner) Address() common.Address {
	return s.address
}

func (s *GcpKmsSigner) PublicKey() []byte {
	if s.publicKey == nil {
		return nil
	}
	return s.publicKey.SerializeCompressed()
}

func resolvePubKeyBytes(client GCPKeyManagementClient, keyName string) ([]byte, error) {
	publicKeyResp, err := client.GetPublicKey(context.Background(), &kmspb.GetPublicKeyRequest{Name: keyName})
	if err != nil {
		return nil, fmt.Errorf("failed to get public key: %w", err)
	}

	block, _ := pem.Decode([]byte(publicKeyResp.Pem))
	if block == nil {
		return nil, fmt.Errorf("public key %q PEM empty: %.130q", keyName, publicKeyResp.Pem)
	}

	var info struct {
		AlgID pkix.AlgorithmIdentifier
		Key   asn1.BitString
	}
	if _, err = asn1.Unmarshal(block.Bytes, &info); err != nil {
		return nil, fmt.Errorf("public key %q PEM block %q: %w", keyName, block.Type, err)
	}

	if gotAlg := info.AlgID.Algorithm; !gotAlg.Equal(oidPublicKeyECDSA) {
		return nil, fmt.Errorf("public key %q ASN.1 algorithm %s instead of %s", keyName, gotAlg, oidPublicKeyECDSA)
	}

	return info.Key.Bytes, nil
}

func addressOf(uncompressed []byte) common.Address {
	return common.BytesToAddress(crypto.Keccak256(uncompressed[1:])[12:])
}

// signHash asks KMS for a DER signature and turns it into the 65-byte
// [R || S || V] form by trying both recovery ids against address.
func signHash(client GCPKeyManagementClient, keyName string, hash common.Hash, address common.Address) ([]byte, error) {
	req := &kmspb.AsymmetricSignRequest{
		Name: keyName,
		Digest: &kmspb.Digest{
			Digest: &kmspb.Digest_Sha256{
				Sha256: hash[:],
			},
		},
	}
	resp, err := client.AsymmetricSign(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("asymmetric sign operation: %w", err)
	}

	var params struct{ R, S *big.Int }
	if _, err = asn1.Unmarshal(resp.Signature, &params); err != nil {
		return nil, fmt.Errorf("asymmetric signature encoding: %w", err)
	}

	var rLen, sLen int
	if params.R != nil {
		rLen = (params.R.BitLen() + 7) / 8
	}
	if params.S != nil {
		sLen = (params.S.BitLen() + 7) / 8
	}
	if rLen == 0 || rLen > 32 || sLen == 0 || sLen > 32 {
		return nil, fmt.Errorf("asymmetric signature with %d-byte r and %d-byte s denied on size", rLen, sLen)
	}

	// compact layout: 1-byte bitcoin header, r, s, 1-byte ethereum v
	var sig [66]byte
	params.R.FillBytes(sig[33-rLen : 33])
	params.S.FillBytes(sig[65-sLen : 65])

	var recoverErr error
	var finalSig []byte
	for recoveryID := byte(0); recoveryID < 2; recoveryID++ {
		sig[0] = recoveryID + 27
		pubKey, _, err := btcecdsa.RecoverCompact(sig[:65], hash[:])
		if err != nil {
			recoverErr = err
			continue
		}
		if addressOf(pubKey.SerializeUncompressed()) == address {
			sig[65] = recoveryID
			finalSig = sig[1:]
			break
		}
	}

	if finalSig == nil {
		if recoverErr != nil {
			return nil, fmt.Errorf("asymmetric signature address recovery failed: %w", recoverErr)
		}
		return nil, fmt.Errorf("signature address mismatch")
	}

	recovered, err := crypto.SigToPub(hash[:], finalSig)
	if err != nil {
		return nil, fmt.Errorf("failed to recover public key: %w", err)
	}
	if crypto.PubkeyToAddress(*recovered) != address {
		return nil, fmt.Errorf("recovered address mismatch")
	}

	finalSig[64] += 27
	return finalSig, nil
}
