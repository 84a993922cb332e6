package lspio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sorahex/rubylsp/pkg/indexer"
)

func indexingProgressSample() indexer.ProgressEvent {
	return indexer.ProgressEvent{Phase: indexer.PhaseCompletionTrie, Label: "completion trie ready", Percent: 100}
}

func TestNewServer_WiresAllTools(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	require.NotNil(t, s.mcpServer)
	require.NoError(t, s.Close())
}

func TestProgressSink_DoesNotPanicWithoutClients(t *testing.T) {
	s := newTestServer(t, map[string]string{"dog.rb": dogSource})
	sink := s.ProgressSink()
	require.NotPanics(t, func() {
		sink.Progress(indexingProgressSample())
	})
}
