package app

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/dan13ram/yusd-settlement/models"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockSecretManagerClient struct {
	mock.Mock
}

func (m *mockSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	args := m.Called(req.Name)
	if resp, ok := args.Get(0).(*secretmanagerpb.AccessSecretVersionResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSecretManagerClient) Close() error {
	return nil
}

func secretPayload(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func withSecretManagerClient(t *testing.T, client SecretManagerClient, err error) {
	original := NewSecretManagerClient
	NewSecretManagerClient = func(ctx context.Context) (SecretManagerClient, error) {
		return client, err
	}
	t.Cleanup(func() { NewSecretManagerClient = original })
}

func TestReadSecretsFromGSM(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		Config = models.Config{}
		withSecretManagerClient(t, nil, errors.New("should not be called"))

		assert.NotPanics(t, readSecretsFromGSM)
	})

	t.Run("Reads Missing Secrets", func(t *testing.T) {
		Config = models.Config{}
		Config.GoogleSecretManager = models.GoogleSecretManagerConfig{
			Enabled:          true,
			ProjectId:        "project",
			MongoSecretName:  "mongo",
			RPCURLSecretName: "rpc",
		}
		Config.Ethereum.Enabled = true

		client := &mockSecretManagerClient{}
		client.On("AccessSecretVersion", "projects/project/secrets/mongo/versions/latest").Return(secretPayload("mongodb://secret\n"), nil)
		client.On("AccessSecretVersion", "projects/project/secrets/rpc/versions/latest").Return(secretPayload(" https://rpc.example "), nil)
		withSecretManagerClient(t, client, nil)

		readSecretsFromGSM()

		assert.Equal(t, "mongodb://secret", Config.MongoDB.URI)
		assert.Equal(t, "https://rpc.example", Config.Ethereum.RPCURL)
		client.AssertExpectations(t)
	})

	t.Run("Reads Ethereum Mnemonic", func(t *testing.T) {
		Config = models.Config{}
		Config.GoogleSecretManager = models.GoogleSecretManagerConfig{
			Enabled:               true,
			ProjectId:             "project",
			EthMnemonicSecretName: "eth-mnemonic",
		}
		Config.MongoDB.URI = "mongodb://provided"
		Config.Ethereum.Enabled = true
		Config.Ethereum.RPCURL = "https://rpc.example"

		client := &mockSecretManagerClient{}
		client.On("AccessSecretVersion", "projects/project/secrets/eth-mnemonic/versions/latest").Return(secretPayload("test test test test test test test test test test test junk\n"), nil)
		withSecretManagerClient(t, client, nil)

		readSecretsFromGSM()

		assert.Equal(t, "test test test test test test test test test test test junk", Config.Ethereum.Mnemonic)
		client.AssertExpectations(t)
	})

	t.Run("Keeps Provided Values", func(t *testing.T) {
		Config = models.Config{}
		Config.GoogleSecretManager = models.GoogleSecretManagerConfig{
			Enabled:   true,
			ProjectId: "project",
		}
		Config.MongoDB.URI = "mongodb://provided"

		client := &mockSecretManagerClient{}
		withSecretManagerClient(t, client, nil)

		readSecretsFromGSM()

		assert.Equal(t, "mongodb://provided", Config.MongoDB.URI)
		client.AssertNotCalled(t, "AccessSecretVersion", mock.Anything)
	})

	t.Run("Missing Project", func(t *testing.T) {
		Config = models.Config{}
		Config.GoogleSecretManager.Enabled = true

		exitPanics(t)
		assert.Panics(t, readSecretsFromGSM)
	})

	t.Run("Client Error", func(t *testing.T) {
		Config = models.Config{}
		Config.GoogleSecretManager = models.GoogleSecretManagerConfig{Enabled: true, ProjectId: "project"}
		withSecretManagerClient(t, nil, errors.New("no credentials"))

		exitPanics(t)
		assert.Panics(t, readSecretsFromGSM)
	})

	t.Run("Access Error", func(t *testing.T) {
		Config = models.Config{}
		Config.GoogleSecretManager = models.GoogleSecretManagerConfig{
			Enabled:         true,
			ProjectId:       "project",
			MongoSecretName: "mongo",
		}

		client := &mockSecretManagerClient{}
		client.On("AccessSecretVersion", mock.Anything).Return(nil, errors.New("denied"))
		withSecretManagerClient(t, client, nil)

		exitPanics(t)
		assert.Panics(t, readSecretsFromGSM)
	})
}
