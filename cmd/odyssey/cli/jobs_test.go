package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/warehouse-ops/jobs"
)

func TestTriggerLedgerIntegrity(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	info, err := c.Trigger(context.Background(), jobs.TaskLedgerIntegrity)
	require.NoError(t, err)
	require.Equal(t, jobs.TaskLedgerIntegrity, info.Type)
	require.Equal(t, jobs.QueueDefault, info.Queue)

	_, err = c.Trigger(context.Background(), "sales:order_created")
	require.Error(t, err)
}

func TestNewJobsCLIRequiresAddress(t *testing.T) {
	_, err := NewJobsCLI("")
	require.Error(t, err)
}

func TestRunRejectsUnknownCommands(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, Run(context.Background(), "127.0.0.1:6379", nil, &out))
	require.Error(t, Run(context.Background(), "127.0.0.1:6379", []string{"purge"}, &out))
	require.Error(t, Run(context.Background(), "127.0.0.1:6379", []string{"trigger"}, &out))
}

func TestWriteStats(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteStats(&out, []QueueStats{{Queue: jobs.QueueEvents, Pending: 3}, {Queue: jobs.QueueDefault}}))
	require.Contains(t, out.String(), "QUEUE")
	require.Contains(t, out.String(), "events")
	require.Contains(t, out.String(), "default")
}
