// Package dynamo implements the backend capability for DynamoDB and
// Scylla Alternator over PartiQL.
package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go/logging"
	"go.uber.org/zap"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

const versionsTable = ".scylla.alternator.system.versions"

// API is the subset of the DynamoDB client used by Backend.
type API interface {
	ExecuteStatement(ctx context.Context, in *dynamodb.ExecuteStatementInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ExecuteStatementOutput, error)
	BatchExecuteStatement(ctx context.Context, in *dynamodb.BatchExecuteStatementInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchExecuteStatementOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Config holds connection settings.
type Config struct {
	Region      string
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Consistency Consistency
	Timeout     time.Duration
	Logger      *zap.SugaredLogger
}

// Backend executes PartiQL statements through the DynamoDB API.
type Backend struct {
	api API
	cfg Config
}

// New wraps an existing client.
func New(api API, cfg Config) *Backend {
	return &Backend{api: api, cfg: cfg}
}

// Connect loads the AWS configuration and builds a client. Static
// credentials are used when both keys are set, otherwise the default chain
// applies. SDK retries are disabled; the retry controller owns them.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	var loadOptions []func(*awsconfig.LoadOptions) error
	addLoadOption := func(option awsconfig.LoadOptionsFunc) {
		loadOptions = append(loadOptions, option)
	}
	if cfg.Region != "" {
		addLoadOption(awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Timeout > 0 {
		addLoadOption(awsconfig.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)))
	}
	if cfg.Logger != nil {
		addLoadOption(awsconfig.WithLogger(newLogAdapter(cfg.Logger)))
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, dberr.Argument("both access key and secret key must be set")
		}
		addLoadOption(awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""))))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindConnection, err, "could not initialize an aws config")
	}
	if awsCfg.Region == "" {
		return nil, dberr.Argument("no AWS region configured")
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.Retryer = aws.NopRetryer{}
	})
	cfg.Region = awsCfg.Region
	return New(client, cfg), nil
}

func newLogAdapter(l *zap.SugaredLogger) logging.Logger {
	return logging.LoggerFunc(func(classification logging.Classification, format string, v ...interface{}) {
		if classification == logging.Warn {
			l.Warnf(format, v...)
			return
		}
		l.Debugf(format, v...)
	})
}

func (b *Backend) Name() string {
	if b.cfg.Endpoint != "" {
		return "alternator"
	}
	return "dynamodb"
}

func (b *Backend) Execute(ctx context.Context, stmt string, params value.Value, fetch backend.Fetch) (backend.Result, error) {
	args, err := BindParams(params)
	if err != nil {
		return backend.Result{}, err
	}
	in := &dynamodb.ExecuteStatementInput{
		Statement:      aws.String(stmt),
		Parameters:     args,
		ConsistentRead: aws.Bool(b.cfg.Consistency == Strong),
	}

	var res backend.Result
	for {
		out, err := b.api.ExecuteStatement(ctx, in)
		if err != nil {
			return backend.Result{}, classify(err, stmt)
		}
		res.RowCount += len(out.Items)
		if fetch == backend.FetchRows {
			for _, item := range out.Items {
				res.Rows = append(res.Rows, Item(item))
			}
		}
		if out.NextToken == nil || *out.NextToken == "" {
			return res, nil
		}
		in.NextToken = out.NextToken
	}
}

// Prepare validates nothing remotely; PartiQL statements are sent as text.
func (b *Backend) Prepare(ctx context.Context, stmt string) (backend.Prepared, error) {
	if stmt == "" {
		return backend.Prepared{}, dberr.Argument("empty statement")
	}
	return backend.Prepared{Query: stmt}, nil
}

func (b *Backend) ExecutePrepared(ctx context.Context, stmt backend.Prepared, params value.Value, fetch backend.Fetch) (backend.Result, error) {
	return b.Execute(ctx, stmt.Query, params, fetch)
}

func (b *Backend) BatchPrepared(ctx context.Context, stmts []backend.Prepared, params []value.Value) error {
	requests := make([]types.BatchStatementRequest, len(stmts))
	for i, stmt := range stmts {
		args, err := BindParams(params[i])
		if err != nil {
			return err
		}
		requests[i] = types.BatchStatementRequest{
			Statement:      aws.String(stmt.Query),
			Parameters:     args,
			ConsistentRead: aws.Bool(b.cfg.Consistency == Strong),
		}
	}
	out, err := b.api.BatchExecuteStatement(ctx, &dynamodb.BatchExecuteStatementInput{Statements: requests})
	if err != nil {
		return classify(err, fmt.Sprintf("batch of %d statements", len(stmts)))
	}
	for i, r := range out.Responses {
		if r.Error != nil {
			return batchError(i, r.Error)
		}
	}
	return nil
}

// Datacenters reports the configured region.
func (b *Backend) Datacenters(context.Context) ([]string, error) {
	if b.cfg.Region == "" {
		return nil, nil
	}
	return []string{b.cfg.Region}, nil
}

// ClusterInfo describes DynamoDB statically. For a custom endpoint it probes
// the Alternator versions table and reports an unavailable descriptor when
// that table cannot be read.
func (b *Backend) ClusterInfo(ctx context.Context) (backend.ClusterInfo, error) {
	if b.cfg.Endpoint == "" {
		return backend.ClusterInfo{Name: "DynamoDB", Version: "DynamoDB", Available: true}, nil
	}
	out, err := b.api.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(versionsTable), Limit: aws.Int32(1)})
	if err != nil || len(out.Items) == 0 {
		return backend.UnavailableClusterInfo(), nil
	}
	item := out.Items[0]
	return backend.ClusterInfo{
		Name:      "alternator",
		Version:   fmt.Sprintf("ScyllaDB %s with build-id %s", stringAttr(item, "version"), stringAttr(item, "build_id")),
		Available: true,
	}, nil
}

func stringAttr(item map[string]types.AttributeValue, key string) string {
	if s, ok := item[key].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return "unknown"
}

func (b *Backend) Close() error { return nil }

var _ backend.Backend = (*Backend)(nil)
