package awsprovider

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/clousec/clousec/internal/rules"
	"go.uber.org/zap"
)

// ListRoles pages through every IAM role name.
func (p *Provider) ListRoles(ctx context.Context) ([]string, error) {
	var names []string
	paginator := iam.NewListRolesPaginator(p.iam, &iam.ListRolesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("listing roles", err)
		}
		for _, r := range page.Roles {
			names = append(names, aws.ToString(r.RoleName))
		}
	}
	return names, nil
}

// ListUsers pages through every IAM user name.
func (p *Provider) ListUsers(ctx context.Context) ([]string, error) {
	var names []string
	paginator := iam.NewListUsersPaginator(p.iam, &iam.ListUsersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrap("listing users", err)
		}
		for _, u := range page.Users {
			names = append(names, aws.ToString(u.UserName))
		}
	}
	return names, nil
}

// principalReader abstracts the role and user variants of the IAM policy calls.
type principalReader struct {
	kind     rules.PrincipalKind
	exists   func(ctx context.Context, name string) error
	attached func(ctx context.Context, name string) ([]string, error)
	inline   func(ctx context.Context, name string) ([]string, error)
	document func(ctx context.Context, name, policy string) (string, error)
}

// InspectRole reads every attached and inline policy of the role.
func (p *Provider) InspectRole(ctx context.Context, name string) (rules.PrincipalView, error) {
	return p.inspectPrincipal(ctx, name, principalReader{
		kind: rules.PrincipalRole,
		exists: func(ctx context.Context, name string) error {
			_, err := p.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
			return err
		},
		attached: func(ctx context.Context, name string) ([]string, error) {
			var arns []string
			paginator := iam.NewListAttachedRolePoliciesPaginator(p.iam, &iam.ListAttachedRolePoliciesInput{RoleName: aws.String(name)})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				for _, ap := range page.AttachedPolicies {
					arns = append(arns, aws.ToString(ap.PolicyArn))
				}
			}
			return arns, nil
		},
		inline: func(ctx context.Context, name string) ([]string, error) {
			var names []string
			paginator := iam.NewListRolePoliciesPaginator(p.iam, &iam.ListRolePoliciesInput{RoleName: aws.String(name)})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				names = append(names, page.PolicyNames...)
			}
			return names, nil
		},
		document: func(ctx context.Context, name, policy string) (string, error) {
			output, err := p.iam.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
				RoleName:   aws.String(name),
				PolicyName: aws.String(policy),
			})
			if err != nil {
				return "", err
			}
			return aws.ToString(output.PolicyDocument), nil
		},
	})
}

// InspectUser reads every attached and inline policy of the user.
func (p *Provider) InspectUser(ctx context.Context, name string) (rules.PrincipalView, error) {
	return p.inspectPrincipal(ctx, name, principalReader{
		kind: rules.PrincipalUser,
		exists: func(ctx context.Context, name string) error {
			_, err := p.iam.GetUser(ctx, &iam.GetUserInput{UserName: aws.String(name)})
			return err
		},
		attached: func(ctx context.Context, name string) ([]string, error) {
			var arns []string
			paginator := iam.NewListAttachedUserPoliciesPaginator(p.iam, &iam.ListAttachedUserPoliciesInput{UserName: aws.String(name)})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				for _, ap := range page.AttachedPolicies {
					arns = append(arns, aws.ToString(ap.PolicyArn))
				}
			}
			return arns, nil
		},
		inline: func(ctx context.Context, name string) ([]string, error) {
			var names []string
			paginator := iam.NewListUserPoliciesPaginator(p.iam, &iam.ListUserPoliciesInput{UserName: aws.String(name)})
			for paginator.HasMorePages() {
				page, err := paginator.NextPage(ctx)
				if err != nil {
					return nil, err
				}
				names = append(names, page.PolicyNames...)
			}
			return names, nil
		},
		document: func(ctx context.Context, name, policy string) (string, error) {
			output, err := p.iam.GetUserPolicy(ctx, &iam.GetUserPolicyInput{
				UserName:   aws.String(name),
				PolicyName: aws.String(policy),
			})
			if err != nil {
				return "", err
			}
			return aws.ToString(output.PolicyDocument), nil
		},
	})
}

func (p *Provider) inspectPrincipal(ctx context.Context, name string, r principalReader) (rules.PrincipalView, error) {
	view := rules.PrincipalView{Kind: r.kind, Name: name}

	if err := r.exists(ctx, name); err != nil {
		return view, wrap("getting "+string(r.kind)+" "+name, err)
	}

	arns, err := r.attached(ctx, name)
	if err != nil {
		p.logger.Warn("Failed to list attached policies",
			zap.String("principal", view.ResourceID()), zap.Error(err))
		view.Policies = append(view.Policies, rules.PolicyDocumentView{Source: "attached"})
	}
	for _, arn := range arns {
		view.Policies = append(view.Policies, p.readDocument(view, arn, func() (string, error) {
			return p.managedPolicyDocument(ctx, arn)
		}))
	}

	inline, err := r.inline(ctx, name)
	if err != nil {
		p.logger.Warn("Failed to list inline policies",
			zap.String("principal", view.ResourceID()), zap.Error(err))
		view.Policies = append(view.Policies, rules.PolicyDocumentView{Source: "inline"})
	}
	for _, policy := range inline {
		view.Policies = append(view.Policies, p.readDocument(view, policy, func() (string, error) {
			return r.document(ctx, name, policy)
		}))
	}

	return view, nil
}

// readDocument fetches and parses one policy. Failures leave Document nil.
func (p *Provider) readDocument(view rules.PrincipalView, source string, fetch func() (string, error)) rules.PolicyDocumentView {
	entry := rules.PolicyDocumentView{Source: source}

	raw, err := fetch()
	if err != nil {
		p.logger.Warn("Failed to read policy",
			zap.String("principal", view.ResourceID()),
			zap.String("policy", source),
			zap.Error(err))
		return entry
	}

	doc, err := rules.ParsePolicyDocument(raw)
	if err != nil {
		p.logger.Warn("Failed to parse policy",
			zap.String("principal", view.ResourceID()),
			zap.String("policy", source),
			zap.Error(err))
		return entry
	}
	entry.Document = doc
	return entry
}

// managedPolicyDocument returns the default version's document of a managed policy.
func (p *Provider) managedPolicyDocument(ctx context.Context, arn string) (string, error) {
	policy, err := p.iam.GetPolicy(ctx, &iam.GetPolicyInput{PolicyArn: aws.String(arn)})
	if err != nil {
		return "", err
	}

	version, err := p.iam.GetPolicyVersion(ctx, &iam.GetPolicyVersionInput{
		PolicyArn: aws.String(arn),
		VersionId: policy.Policy.DefaultVersionId,
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(version.PolicyVersion.Document), nil
}
