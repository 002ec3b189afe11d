// Package awsprovider implements the scanner inspectors with AWS SDK v2.
package awsprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/clousec/clousec/internal/scanner"
	"go.uber.org/zap"
)

const fallbackRegion = "us-east-1"

var (
	_ scanner.BucketInspector        = (*Provider)(nil)
	_ scanner.SecurityGroupInspector = (*Provider)(nil)
	_ scanner.InstanceInspector      = (*Provider)(nil)
	_ scanner.PrincipalInspector     = (*Provider)(nil)
	_ scanner.RegionLister           = (*Provider)(nil)
)

// Provider reads AWS resources. Regional clients are built per call from the
// shared config.
type Provider struct {
	defaultRegion string
	ec2For        func(region string) ec2API
	s3For         func(region string) s3API
	iam           iamAPI
	logger        *zap.Logger
}

// New loads the default credential chain. region overrides the configured
// default region when set.
func New(ctx context.Context, region string, logger *zap.Logger) (*Provider, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = fallbackRegion
	}

	return NewFromConfig(cfg, logger), nil
}

// NewFromConfig builds a provider from an existing config.
func NewFromConfig(cfg aws.Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		defaultRegion: cfg.Region,
		ec2For: func(region string) ec2API {
			return ec2.NewFromConfig(cfg, func(o *ec2.Options) { o.Region = region })
		},
		s3For: func(region string) s3API {
			return s3.NewFromConfig(cfg, func(o *s3.Options) { o.Region = region })
		},
		iam:    iam.NewFromConfig(cfg),
		logger: logger,
	}
}

// DefaultRegion is the region used for targets that carry none.
func (p *Provider) DefaultRegion() string {
	return p.defaultRegion
}

// Regions returns the regions enabled for the account.
func (p *Provider) Regions(ctx context.Context) ([]string, error) {
	output, err := p.ec2For(p.defaultRegion).DescribeRegions(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("describing regions: %w", err)
	}

	regions := make([]string, 0, len(output.Regions))
	for _, r := range output.Regions {
		regions = append(regions, aws.ToString(r.RegionName))
	}
	return regions, nil
}

// Error codes meaning the resource itself is gone.
var notFoundCodes = map[string]bool{
	"NoSuchBucket":               true,
	"InvalidGroup.NotFound":      true,
	"InvalidInstanceID.NotFound": true,
	"NoSuchEntity":               true,
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// hasCode reports whether err is an API error with the given code.
func hasCode(err error, code string) bool {
	return err != nil && errorCode(err) == code
}

// wrap annotates a provider error, mapping not-found codes to
// scanner.ErrResourceNotFound.
func wrap(op string, err error) error {
	if notFoundCodes[errorCode(err)] {
		return fmt.Errorf("%s: %w", op, scanner.ErrResourceNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
