package app

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
	log "github.com/sirupsen/logrus"
)

type SecretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var NewSecretManagerClient = func(ctx context.Context) (SecretManagerClient, error) {
	return secretmanager.NewClient(ctx)
}

func accessSecretVersion(client SecretManagerClient, name string) (string, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", Config.GoogleSecretManager.ProjectId, name),
	}

	result, err := client.AccessSecretVersion(context.Background(), req)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(result.Payload.Data)), nil
}

// readSecretsFromGSM fills connection strings that were left empty by the
// config file and the environment.
func readSecretsFromGSM() {
	if !Config.GoogleSecretManager.Enabled {
		log.Debug("[GSM] Google Secret Manager is disabled")
		return
	}

	if Config.GoogleSecretManager.ProjectId == "" {
		log.Fatalf("[GSM] ProjectId is empty")
	}

	client, err := NewSecretManagerClient(context.Background())
	if err != nil {
		log.Fatalf("[GSM] Failed to create secretmanager client: %v", err)
	}
	defer client.Close()

	if Config.MongoDB.URI == "" {
		if Config.GoogleSecretManager.MongoSecretName == "" {
			log.Fatalf("[GSM] MongoDB secret name is empty")
		}

		log.Debug("[GSM] Reading mongodb uri")
		Config.MongoDB.URI, err = accessSecretVersion(client, Config.GoogleSecretManager.MongoSecretName)
		if err != nil {
			log.Fatalf("[GSM] Failed to access mongodb uri: %v", err)
		}
		log.Info("[GSM] Successfully read mongodb uri")
	}

	if Config.Ethereum.Enabled && Config.Ethereum.RPCURL == "" {
		if Config.GoogleSecretManager.RPCURLSecretName == "" {
			log.Fatalf("[GSM] Ethereum rpc url secret name is empty")
		}

		log.Debug("[GSM] Reading ethereum rpc url")
		Config.Ethereum.RPCURL, err = accessSecretVersion(client, Config.GoogleSecretManager.RPCURLSecretName)
		if err != nil {
			log.Fatalf("[GSM] Failed to access ethereum rpc url: %v", err)
		}
		log.Info("[GSM] Successfully read ethereum rpc url")
	}

	if Config.Ethereum.Enabled && Config.Ethereum.Mnemonic == "" && Config.Ethereum.GcpKmsKeyName == "" &&
		Config.GoogleSecretManager.EthMnemonicSecretName != "" {
		log.Debug("[GSM] Reading ethereum mnemonic")
		Config.Ethereum.Mnemonic, err = accessSecretVersion(client, Config.GoogleSecretManager.EthMnemonicSecretName)
		if err != nil {
			log.Fatalf("[GSM] Failed to access ethereum mnemonic: %v", err)
		}
		log.Info("[GSM] Successfully read ethereum mnemonic")
	}
}
