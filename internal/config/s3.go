package config

// S3Config points at the bucket holding user avatars.  BaseEndpoint allows
// localstack or MinIO in development.
type S3Config struct {
    Enabled      bool
    Region       string
    Bucket       string
    BaseEndpoint string
    AccessKeyID  string
    SecretKey    string
    PublicURL    string // prefix of the stored image URL; defaults to BaseEndpoint
}

func LoadS3Config() S3Config {
    endpoint := envStr("S3_BASE_ENDPOINT", "http://localhost:4566")
    return S3Config{
        Enabled:      envBool("S3_ENABLED", true),
        Region:       envStr("S3_REGION", "eu-central-1"),
        Bucket:       envStr("S3_BUCKET", "avatars"),
        BaseEndpoint: endpoint,
        AccessKeyID:  envStr("S3_ACCESS_KEY_ID", "test"),
        SecretKey:    envStr("S3_SECRET_ACCESS_KEY", "test"),
        PublicURL:    envStr("S3_PUBLIC_URL", endpoint),
    }
}
