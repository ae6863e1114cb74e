package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payidcheck/internal/app"
	"payidcheck/internal/config"
	"payidcheck/internal/liveness"
	"payidcheck/internal/payid"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("PAYID_CONFIG", "")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestValidateArgs(t *testing.T) {
	out, errOut, err := execute(t, "", "validate", "PayID:Alice$Bücher.de", "Rock.Howard$Reddit.COM")
	require.NoError(t, err)
	assert.Empty(t, errOut)
	assert.Equal(t, "alice$bücher.de\nrock.howard$reddit.com\n", out)
}

func TestValidateStdin(t *testing.T) {
	out, _, err := execute(t, "alice$example.com\n\n  \nbob$example.org\r\n", "validate")
	require.NoError(t, err)
	assert.Equal(t, "alice$example.com\nbob$example.org\n", out)
}

func TestValidateReportsInvalidAndExitsNonZero(t *testing.T) {
	out, errOut, err := execute(t, "", "validate", "alice$example.com", "no-separator", "alice$")
	assert.ErrorIs(t, err, errInvalidInput)
	assert.Equal(t, "alice$example.com\n", out)
	assert.Contains(t, errOut, "no-separator: payid syntax error: missing separator")
	assert.Contains(t, errOut, "alice$: payid syntax error: domain is empty")
}

func TestValidateFlags(t *testing.T) {
	_, errOut, err := execute(t, "", "validate", "--strict-case", "Alice$example.com")
	assert.ErrorIs(t, err, errInvalidInput)
	assert.Contains(t, errOut, "account has uppercase characters")

	out, _, err := execute(t, "", "validate", "--no-domain-check", "--include-prefix", "alice$localhost")
	require.NoError(t, err)
	assert.Equal(t, "payid:alice$localhost\n", out)
}

func TestValidateJSON(t *testing.T) {
	out, _, err := execute(t, "", "validate", "--json", "alice$bücher.de", "rock howard$example.com")
	assert.ErrorIs(t, err, errInvalidInput)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)

	var ok map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ok))
	assert.Equal(t, true, ok["valid"])
	assert.Equal(t, "xn--bcher-kva.de", ok["payid"].(map[string]any)["domain"].(map[string]any)["ace"])

	var bad map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &bad))
	assert.Equal(t, false, bad["valid"])
	assert.Equal(t, "encoding", bad["kind"])
	assert.Contains(t, bad["error"], "spaces")
}

type stubChecker map[string]liveness.RecordType

func (s stubChecker) Check(_ context.Context, domain string) (liveness.RecordType, error) {
	if t, ok := s[domain]; ok {
		return t, nil
	}
	return "", payid.UsableError("no MX, A or AAAA records found for " + domain)
}

func TestValidateCheckLiveness(t *testing.T) {
	prev := newChecker
	newChecker = func(config.Config) (app.DomainChecker, error) {
		return stubChecker{"example.com": liveness.MX}, nil
	}
	t.Cleanup(func() { newChecker = prev })

	out, errOut, err := execute(t, "", "validate", "--check-liveness", "alice$example.com", "bob$nowhere.example")
	assert.ErrorIs(t, err, errInvalidInput)
	assert.Equal(t, "alice$example.com\tMX\n", out)
	assert.Contains(t, errOut, "bob$nowhere.example: payid usable error: no MX, A or AAAA records found for nowhere.example")
}

func TestValidateCheckLivenessConfigError(t *testing.T) {
	prev := newChecker
	newChecker = func(config.Config) (app.DomainChecker, error) {
		return nil, errors.New(`unsupported record type "TXT"`)
	}
	t.Cleanup(func() { newChecker = prev })

	_, _, err := execute(t, "", "validate", "--check-liveness", "alice$example.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errInvalidInput))
}

func TestMigrateRequiresDSN(t *testing.T) {
	t.Setenv("PAYID_DB_DSN", "")
	_, _, err := execute(t, "", "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing database dsn")
}
