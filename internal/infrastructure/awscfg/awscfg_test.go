package awscfg

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-alumni-api/internal/config"
)

func TestLoad_StaticCredentials(t *testing.T) {
	cfg := &config.Config{AWSRegion: "eu-west-1", AWSAccessKeyID: "test", AWSSecretKey: "secret"}

	awsCfg, err := Load(context.Background(), cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}

func TestLoad_RegionOverride(t *testing.T) {
	cfg := &config.Config{AWSRegion: "eu-west-1", AWSAccessKeyID: "test", AWSSecretKey: "secret"}

	awsCfg, err := Load(context.Background(), cfg, "us-west-2")
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)
}
