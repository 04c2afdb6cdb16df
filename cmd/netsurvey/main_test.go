package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrej220/netsurvey/pkg/collect"
	"github.com/andrej220/netsurvey/pkg/config"
	"github.com/andrej220/netsurvey/pkg/executor"
	"github.com/andrej220/netsurvey/pkg/executor/executortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearCredentials(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvUsername, "")
	t.Setenv(config.EnvPassword, "")
}

func execute(t *testing.T, opts *rootOptions, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmdWith(opts)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := config.Default()
	cfg.HostsFile = filepath.Join(dir, "ip.txt")
	cfg.ReferenceFile = filepath.Join(dir, "com_table.xlsx")
	cfg.OutputDir = filepath.Join(dir, "logs")
	cfg.ReportDir = dir
	path := filepath.Join(dir, "netsurvey.yaml")
	require.NoError(t, config.Save(path, cfg))
	return path
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "netsurvey.yaml")
	out, err := execute(t, &rootOptions{}, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+path)

	clearCredentials(t)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	def := config.Default()
	assert.Equal(t, def.HostsFile, cfg.HostsFile)
	assert.Equal(t, def.OutputDir, cfg.OutputDir)
	assert.Equal(t, def.Session, cfg.Session)
	assert.Equal(t, def.Kafka.Topic, cfg.Kafka.Topic)
	assert.False(t, cfg.KafkaEnabled())
}

func TestRunWithoutAddresses(t *testing.T) {
	clearCredentials(t)
	dir := t.TempDir()
	path := writeConfig(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ip.txt"), []byte("\n  \n"), 0600))

	out, err := execute(t, &rootOptions{dialer: executortest.NewDialer(), prompter: collect.SkipAll{}}, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "No IP addresses found\n", out)
}

func TestRunNothingCollected(t *testing.T) {
	clearCredentials(t)
	dir := t.TempDir()
	path := writeConfig(t, dir)
	hosts := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(hosts, []byte("10.0.0.9\n"), 0600))

	out, err := execute(t, &rootOptions{dialer: executortest.NewDialer(), prompter: collect.SkipAll{}},
		"--config", path, "--hosts", hosts)
	require.NoError(t, err)
	assert.Equal(t, "No logs were collected.\n", out)
	_, err = os.Stat(filepath.Join(dir, "logs"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunWritesReport(t *testing.T) {
	clearCredentials(t)
	dir := t.TempDir()
	path := writeConfig(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ip.txt"), []byte("10.0.0.1\n"), 0600))

	dialer := executortest.NewDialer().Add("10.0.0.1", &executortest.Host{
		Accept: executor.Credentials{Username: config.DefaultUsername, Password: config.DefaultPassword},
		Replies: map[string]string{
			"show version":                        "Huawei Versatile Routing Platform Software",
			"display sysname":                     "CE1",
			"display lldp neighbor brief":         "Local Intf  Neighbor Dev  Neighbor Intf  Exptime(s)\n10GE1/0/1  LEAF1  xe49  104",
			"display interface transceiver brief": "Port  RxPower(dBm)  TxPower(dBm)\n10GE1/0/1  -2.5  -1.5",
		},
	})

	out, err := execute(t, &rootOptions{dialer: dialer, prompter: collect.SkipAll{}}, "--config", path, "--log-format", "console")
	require.NoError(t, err)
	assert.Contains(t, out, "Comparison results saved to "+filepath.Join(dir, "comparison_"))

	_, err = os.Stat(filepath.Join(dir, "logs", "cleaned_logs.txt"))
	assert.NoError(t, err)
	assert.Zero(t, dialer.Active())
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	clearCredentials(t)
	path := writeConfig(t, t.TempDir())
	_, err := execute(t, &rootOptions{}, "--config", path, "--log-format", "xml")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execute(t, &rootOptions{}, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
