// Package blob is the entry point for report artifact storage. Callers
// depend on Store and open a backend with Open; only this package imports
// the infra implementations.
package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"seem/internal/blob/core"
	infraFS "seem/internal/infra/blob/fs"
	infraMemory "seem/internal/infra/blob/memory"
	infraS3 "seem/internal/infra/blob/s3"
)

type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
	S3Config         = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
	ErrInvalidKey  = core.ErrInvalidKey
)

// Open selects a Store using environment variables.
//
//	SEEM_BLOB_DRIVER: fs|s3|memory (default fs)
//	SEEM_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	SEEM_BLOB_S3_BUCKET: bucket when driver=s3 (required)
//	SEEM_BLOB_S3_REGION: region (default us-east-1)
//	SEEM_BLOB_S3_ENDPOINT: custom endpoint, e.g. MinIO
//	SEEM_BLOB_S3_PATH_STYLE: true|false
//	SEEM_BLOB_S3_ACCESS_KEY_ID, SEEM_BLOB_S3_SECRET_ACCESS_KEY: static
//	credentials; the default AWS chain applies when unset
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("SEEM_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("SEEM_BLOB_FS_ROOT"))
	case DriverS3:
		return NewS3(ctx, S3ConfigFromEnv())
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// S3ConfigFromEnv reads the SEEM_BLOB_S3_* variables.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Bucket:          os.Getenv("SEEM_BLOB_S3_BUCKET"),
		Region:          os.Getenv("SEEM_BLOB_S3_REGION"),
		Endpoint:        os.Getenv("SEEM_BLOB_S3_ENDPOINT"),
		PathStyle:       strings.EqualFold(os.Getenv("SEEM_BLOB_S3_PATH_STYLE"), "true"),
		AccessKeyID:     os.Getenv("SEEM_BLOB_S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("SEEM_BLOB_S3_SECRET_ACCESS_KEY"),
	}
}

// NewFilesystem returns a Store rooted at dir.
func NewFilesystem(dir string) (Store, error) {
	s, err := infraFS.New(dir)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func NewMemory() Store { return infraMemory.New() }

// NewS3 returns an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	s, err := infraS3.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewMockS3ForTests returns an S3 store talking to an in-process fake.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
