//go:build acceptance

// File: cmd/acceptance_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcceptanceAgainstDeployment runs the full catalog against a live deployment with a
// real browser. Configure it through SHELFCHECK_* variables, at least
// SHELFCHECK_TARGET_BASE_URL.
func TestAcceptanceAgainstDeployment(t *testing.T) {
	if os.Getenv("SHELFCHECK_TARGET_BASE_URL") == "" {
		t.Skip("SHELFCHECK_TARGET_BASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", "--suite", "all"})

	err := root.ExecuteContext(ctx)
	t.Log(out.String())
	require.NoError(t, err)
}
