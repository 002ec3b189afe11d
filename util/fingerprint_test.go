package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("S3", "my-bucket", "Public ACL enabled", "global")
	b := Fingerprint("S3", "my-bucket", "Public ACL enabled", "global")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_DistinctTuples(t *testing.T) {
	tuples := [][4]string{
		{"S3", "my-bucket", "Public ACL enabled", "global"},
		{"S3", "my-bucket", "Public bucket policy", "global"},
		{"S3", "other-bucket", "Public ACL enabled", "global"},
		{"EC2", "my-bucket", "Public ACL enabled", "global"},
		{"S3", "my-bucket", "Public ACL enabled", "us-east-1"},
		// separator smuggled into a field
		{"S3", "a:b", "c", "global"},
		{"S3", "a", "b:c", "global"},
		// field order matters
		{"global", "Public ACL enabled", "my-bucket", "S3"},
		{"", "", "", ""},
	}

	seen := make(map[string][4]string)
	for _, tup := range tuples {
		fp := Fingerprint(tup[0], tup[1], tup[2], tup[3])
		if prev, ok := seen[fp]; ok {
			t.Fatalf("collision between %v and %v", prev, tup)
		}
		seen[fp] = tup
	}
	assert.Len(t, seen, len(tuples))
}
