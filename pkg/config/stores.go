package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/dittodav/internal/logger"
	lockbadger "github.com/marmos91/dittodav/pkg/lock/badger"
	"github.com/marmos91/dittodav/pkg/store/content"
	contentfs "github.com/marmos91/dittodav/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittodav/pkg/store/content/memory"
	contents3 "github.com/marmos91/dittodav/pkg/store/content/s3"
	"github.com/marmos91/dittodav/pkg/store/metadata"
	"github.com/marmos91/dittodav/pkg/store/metadata/badger"
	metadatamemory "github.com/marmos91/dittodav/pkg/store/metadata/memory"
	"github.com/mitchellh/mapstructure"
)

// defaultS3MaxAttempts is used when max_retries is not configured.
const defaultS3MaxAttempts = 10

// s3YAMLConfig represents S3 configuration loaded from YAML files.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// decodeOptions decodes a type-specific option map into out. Duration
// fields accept strings such as "30s".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

// createMetadataStore creates a single metadata store instance.
func createMetadataStore(ctx context.Context, cfg MetadataStoreConfig) (metadata.MetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		var memoryCfg metadatamemory.MemoryMetadataStoreConfig
		if err := decodeOptions(cfg.Memory, &memoryCfg); err != nil {
			return nil, fmt.Errorf("invalid memory config: %w", err)
		}
		return metadatamemory.NewMemoryMetadataStore(memoryCfg), nil

	case "badger":
		var badgerCfg badger.BadgerMetadataStoreConfig
		if err := decodeOptions(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		store, err := badger.NewBadgerMetadataStore(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger database: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createContentStore creates a single content store instance.
func createContentStore(ctx context.Context, cfg ContentStoreConfig, m *MetricsResult) (content.ContentStore, error) {
	switch cfg.Type {
	case "filesystem":
		var fsCfg contentfs.FSContentStoreConfig
		if err := decodeOptions(cfg.Filesystem, &fsCfg); err != nil {
			return nil, fmt.Errorf("invalid filesystem config: %w", err)
		}
		if fsCfg.Path == "" {
			return nil, fmt.Errorf("filesystem path is required")
		}
		store, err := contentfs.NewFSContentStore(ctx, fsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem store: %w", err)
		}
		return store, nil

	case "memory":
		var memCfg contentmemory.MemoryContentStoreConfig
		if err := decodeOptions(cfg.Memory, &memCfg); err != nil {
			return nil, fmt.Errorf("invalid memory config: %w", err)
		}
		store, err := contentmemory.NewMemoryContentStore(ctx, memCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory content store: %w", err)
		}
		return store, nil

	case "s3":
		return createS3ContentStore(ctx, cfg, m.S3Metrics)

	default:
		return nil, fmt.Errorf("unknown content store type: %q (supported: filesystem, memory, s3)", cfg.Type)
	}
}

// createS3ContentStore creates an S3-backed content store.
func createS3ContentStore(ctx context.Context, cfg ContentStoreConfig, s3Metrics contents3.S3Metrics) (content.ContentStore, error) {
	var yamlCfg s3YAMLConfig
	if err := decodeOptions(cfg.S3, &yamlCfg); err != nil {
		return nil, fmt.Errorf("invalid S3 config: %w", err)
	}
	if yamlCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if yamlCfg.Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	client, err := newS3Client(ctx, yamlCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    yamlCfg.Bucket,
		KeyPrefix: yamlCfg.KeyPrefix,
		Metrics:   s3Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		yamlCfg.Bucket, yamlCfg.Region, yamlCfg.KeyPrefix)
	return store, nil
}

// newS3Client builds an S3 client. Static credentials are used when both
// keys are set; otherwise the default credential chain applies.
func newS3Client(ctx context.Context, cfg s3YAMLConfig) (*awss3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts == 0 {
		maxAttempts = defaultS3MaxAttempts
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxAttempts
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		// Custom endpoints (MinIO, Localstack) generally need path-style
		// addressing.
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// createBadgerLockStore opens a dedicated Badger lock database.
func createBadgerLockStore(options map[string]any) (*lockbadger.BadgerLockStore, error) {
	var storeCfg lockbadger.BadgerLockStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("invalid lock badger config: %w", err)
	}
	return lockbadger.NewBadgerLockStore(storeCfg)
}
