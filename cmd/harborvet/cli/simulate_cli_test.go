package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSimulateCLI() *SimulateCLI {
	return NewSimulateCLI(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSimulateCommandJSONAllowed(t *testing.T) {
	cli := newTestSimulateCLI()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.SimulateCommand(context.Background(), SimulateOptions{
		Role:       "veterinarian",
		Resource:   "pets",
		Action:     "update",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary SimulateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.Allowed)
	require.Equal(t, "VETERINARIAN", summary.Role)
	require.Equal(t, "pets:UPDATE", summary.Permission)
}

func TestSimulateCommandJSONDenied(t *testing.T) {
	cli := newTestSimulateCLI()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.SimulateCommand(context.Background(), SimulateOptions{
		Role:       "RECEPTIONIST",
		Resource:   "billing",
		Action:     "DELETE",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 10, exitCode)
	require.Empty(t, stderr.String())

	var summary SimulateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.Allowed)
}

func TestSimulateCommandOwnershipDenied(t *testing.T) {
	cli := newTestSimulateCLI()

	stdout := new(bytes.Buffer)
	exitCode := cli.SimulateCommand(context.Background(), SimulateOptions{
		Role:       "VETERINARIAN",
		UserID:     "42",
		Resource:   "pets",
		Action:     "READ",
		ResourceID: "pet-1",
		OwnerID:    "99",
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Equal(t, 10, exitCode)
	require.Contains(t, stdout.String(), "DENIED")
	require.Contains(t, stdout.String(), "owned by another user")
}

func TestSimulateCommandUnknownPermission(t *testing.T) {
	cli := newTestSimulateCLI()

	stderr := new(bytes.Buffer)
	exitCode := cli.SimulateCommand(context.Background(), SimulateOptions{
		Role:     "VETERINARIAN",
		Resource: "spaceships",
		Action:   "FLY",
		Stdout:   new(bytes.Buffer),
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "unknown permission")
}
