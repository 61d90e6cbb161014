package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type UploadConfigTestSuite struct {
	suite.Suite
}

func TestUploadConfigTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(UploadConfigTestSuite))
}

func (s *UploadConfigTestSuite) TestDefaults() {
	// arrange
	u := UploadConfig{}

	// act
	SetUploadDefaults(&u, ServerConfig{ExternalUrl: "http://localhost:8080"})
	parsed, err := ParseUpload(u)

	// assert
	s.Require().NoError(err)
	s.Equal(GatewayModeHttp, parsed.Gateway)
	s.Equal("http://localhost:8080", parsed.Http.BaseUrl)
	s.True(parsed.Http.Enabled)
	s.False(parsed.S3.Enabled)
	s.Equal(7*24*time.Hour, parsed.CheckpointTtl)
	s.Equal(int64(10*1024*1024), parsed.ChunkSizeBytes())
}

func (s *UploadConfigTestSuite) TestHumanChunkSize() {
	// arrange
	u := UploadConfig{ChunkSize: "5MB"}
	SetUploadDefaults(&u, ServerConfig{ExternalUrl: "http://localhost:8080"})

	// act
	parsed, err := ParseUpload(u)

	// assert
	s.Require().NoError(err)
	s.Equal(int64(5*1024*1024), parsed.ChunkSizeBytes())
}

func (s *UploadConfigTestSuite) TestInvalidChunkSize() {
	// arrange
	u := UploadConfig{ChunkSize: "lots"}
	SetUploadDefaults(&u, ServerConfig{ExternalUrl: "http://localhost:8080"})

	// act
	_, err := ParseUpload(u)

	// assert
	s.Error(err)
}

func (s *UploadConfigTestSuite) TestS3RequiresBucket() {
	// arrange
	u := UploadConfig{Gateway: GatewayModeS3}
	SetUploadDefaults(&u, ServerConfig{})

	// act
	_, err := ParseUpload(u)

	// assert
	s.Error(err)
}

func (s *UploadConfigTestSuite) TestMinio() {
	// arrange
	u := UploadConfig{
		Gateway: GatewayModeMinio,
		Minio: MinioGatewayConfig{
			Endpoint: "localhost:9000",
			Bucket:   "uploads",
		},
	}
	SetUploadDefaults(&u, ServerConfig{})

	// act
	parsed, err := ParseUpload(u)

	// assert
	s.Require().NoError(err)
	s.True(parsed.Minio.Enabled)
	s.False(parsed.Http.Enabled)
}

func (s *UploadConfigTestSuite) TestUnknownGateway() {
	// arrange
	u := UploadConfig{Gateway: "ftp"}
	SetUploadDefaults(&u, ServerConfig{})

	// act
	_, err := ParseUpload(u)

	// assert
	s.Error(err)
}

type PostgresConfigTestSuite struct {
	suite.Suite
}

func TestPostgresConfigTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(PostgresConfigTestSuite))
}

func (s *PostgresConfigTestSuite) TestDefaults() {
	// arrange
	pc := PostgresConfig{}

	// act
	setPostgresDefaultsOrPanic(&pc, "Database.Postgres")

	// assert
	s.Equal("localhost", pc.Host)
	s.Equal(5432, pc.Port)
	s.Equal("chunkyard", pc.Database)
	s.Equal("disable", pc.SslMode)
}

func (s *PostgresConfigTestSuite) TestKeepsConfiguredValues() {
	// arrange
	pc := PostgresConfig{Host: "db", Port: 6543, Database: "uploads", SslMode: "require"}

	// act
	setPostgresDefaultsOrPanic(&pc, "Database.Postgres")

	// assert
	s.Equal(PostgresConfig{Host: "db", Port: 6543, Database: "uploads", SslMode: "require"}, pc)
}
