package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	events []*Event
}

func (s *fakeSink) Write(e *Event) error { s.events = append(s.events, e); return nil }
func (s *fakeSink) Close() error         { return nil }

func TestEmitterStampsMetadataOnEveryEvent(t *testing.T) {
	sink := &fakeSink{}
	e := NewEmitter(EmitterConfig{InstanceID: "m-1"}, sink)

	require.NoError(t, e.Emit(EventWorkerReset, "worker 3 reset", 3, WorkerResetData{ResetNeeded: true}))
	require.Len(t, sink.events, 1)
	require.Equal(t, "m-1", sink.events[0].InstanceID)
	require.Equal(t, EventWorkerReset, sink.events[0].EventType)
	require.Equal(t, 3, sink.events[0].WorkerID)

	var data WorkerResetData
	require.NoError(t, json.Unmarshal(sink.events[0].Data, &data))
	require.True(t, data.ResetNeeded)
}

func TestJSONLWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w, err := NewJSONLWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(&Event{EventType: EventMasterFrozen, Summary: "frozen"}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Event
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, EventMasterFrozen, got.EventType)
	require.Equal(t, "frozen", got.Summary)
}

func TestEmitterNilSinkListIsNoOp(t *testing.T) {
	e := NewEmitter(EmitterConfig{InstanceID: "m-1"})
	require.NoError(t, e.Emit(EventMasterBooting, "booting", 0, nil))
}
