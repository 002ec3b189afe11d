package rules

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/clousec/clousec/internal/severity"
	"github.com/clousec/clousec/model"
)

// PrincipalKind distinguishes IAM roles from IAM users.
type PrincipalKind string

const (
	PrincipalRole PrincipalKind = "role"
	PrincipalUser PrincipalKind = "user"
)

// PolicyDocumentView is one policy attached to a principal. Document is nil when
// the policy could not be read.
type PolicyDocumentView struct {
	Source   string
	Document *PolicyDocument
}

// PrincipalView is an IAM role or user with its attached and inline policies.
type PrincipalView struct {
	Kind     PrincipalKind
	Name     string
	Policies []PolicyDocumentView
}

// ResourceID is the identity recorded on findings. Roles keep their bare name;
// users are prefixed so a user and a role sharing a name stay distinct.
func (v PrincipalView) ResourceID() string {
	if v.Kind == PrincipalUser {
		return "user/" + v.Name
	}
	return v.Name
}

// Evaluate reports the principal when any readable policy allows a wildcard
// action or resource. Unreadable policies block an "absent" judgment.
func (v PrincipalView) Evaluate(c *severity.Classifier) []model.Observation {
	o := &observer{service: model.ServiceIAM, resource: v.ResourceID(), region: model.GlobalRegion}

	unknown := false
	for _, p := range v.Policies {
		if p.Document == nil {
			unknown = true
			continue
		}
		if p.Document.OverlyPermissive() {
			o.judge(model.IssueIAMOverlyPermissive, Bool(true), c)
			return o.out
		}
	}

	if !unknown {
		o.judge(model.IssueIAMOverlyPermissive, Bool(false), c)
	}
	return o.out
}

// PolicyDocument is the subset of an IAM policy document the rules inspect.
type PolicyDocument struct {
	Version   string        `json:"Version"`
	Statement statementList `json:"Statement"`
}

// Statement is one IAM policy statement.
type Statement struct {
	Effect   string       `json:"Effect"`
	Action   stringOrList `json:"Action"`
	Resource stringOrList `json:"Resource"`
}

// OverlyPermissive reports whether any Allow statement has a wildcard Action or Resource.
func (d *PolicyDocument) OverlyPermissive() bool {
	for _, stmt := range d.Statement {
		if stmt.Effect != "Allow" {
			continue
		}
		if stmt.Action.contains("*") || stmt.Resource.contains("*") {
			return true
		}
	}
	return false
}

// ParsePolicyDocument decodes a policy document as returned by IAM, which
// percent-encodes the JSON (RFC 3986).
func ParsePolicyDocument(raw string) (*PolicyDocument, error) {
	decoded := raw
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		var err error
		decoded, err = url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode policy document: %w", err)
		}
	}

	var doc PolicyDocument
	if err := json.Unmarshal([]byte(decoded), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return &doc, nil
}

// statementList accepts a single statement object or an array of them.
type statementList []Statement

func (l *statementList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var single Statement
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = statementList{single}
		return nil
	}
	var many []Statement
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// stringOrList accepts "x" or ["x", "y"].
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*s = stringOrList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s stringOrList) contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}
