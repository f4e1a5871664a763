package datasets

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loomworks/dataloom/internal/schema"
	"github.com/loomworks/dataloom/internal/table"
)

// fakeGate implements DatasetGate for tests with counters.
type fakeGate struct {
	acquireErr error
	acquires   atomic.Int64
	releases   atomic.Int64
}

func (g *fakeGate) AcquireDataset(ctx context.Context) error {
	g.acquires.Add(1)
	return g.acquireErr
}
func (g *fakeGate) ReleaseDataset() { g.releases.Add(1) }

func testDataset() *table.Dataset {
	return &table.Dataset{
		Headers: []string{"ClientID", "ClientName"},
		Rows: []table.Row{
			{"ClientID": "C1", "ClientName": "Acme"},
			{"ClientID": "C2", "ClientName": "Globex"},
		},
	}
}

func TestAdoptGetClose(t *testing.T) {
	gate := &fakeGate{}
	// Long TTL to avoid eviction; background loop disabled by not calling Start.
	m := NewManager(2*time.Second, time.Second, gate, time.Now)

	h, err := m.Adopt(context.Background(), testDataset(), schema.FileClients)
	require.NoError(t, err)
	require.NotEmpty(t, h.ID)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, 1, m.Count())

	got, ok := m.Get(h.ID)
	require.True(t, ok)
	require.Equal(t, h.ID, got.ID)

	require.NoError(t, m.CloseHandle(context.Background(), h.ID))
	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestTTLExpiryAndEviction(t *testing.T) {
	// Custom clock we can advance.
	var now atomic.Int64
	now.Store(time.Now().UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	gate := &fakeGate{}
	m := NewManager(50*time.Millisecond, 5*time.Millisecond, gate, clock)

	_, err := m.Adopt(context.Background(), testDataset(), schema.FileClients)
	require.NoError(t, err)
	require.Equal(t, 1, m.Count())

	// Advance time beyond TTL and evict.
	now.Store(time.Now().Add(200 * time.Millisecond).UnixNano())
	m.EvictExpired()

	require.Equal(t, 0, m.Count())
	require.Equal(t, int64(1), gate.releases.Load())
}

func TestReadWriteLocking(t *testing.T) {
	m := NewManager(time.Second, time.Second, nil, time.Now)
	h, err := m.Adopt(context.Background(), testDataset(), schema.FileClients)
	require.NoError(t, err)
	id := h.ID

	var r1Acq, r2Acq, wAcq sync.WaitGroup
	r1Acq.Add(1)
	r2Acq.Add(1)
	wAcq.Add(1)

	releaseR1 := make(chan struct{})
	releaseR2 := make(chan struct{})
	writeDone := make(chan struct{})

	// Reader 1
	go func() {
		err := m.WithRead(id, func(*Handle) error {
			r1Acq.Done()
			<-releaseR1
			return nil
		})
		require.NoError(t, err)
	}()

	// Reader 2
	go func() {
		err := m.WithRead(id, func(*Handle) error {
			r2Acq.Done()
			<-releaseR2
			return nil
		})
		require.NoError(t, err)
	}()

	// Writer (should block until both readers release)
	go func() {
		r1Acq.Wait()
		r2Acq.Wait()
		err := m.WithWrite(id, func(*Handle) error {
			wAcq.Done()
			return nil
		})
		require.NoError(t, err)
		close(writeDone)
	}()

	// Ensure writer hasn't acquired yet
	ch := make(chan struct{})
	go func() { wAcq.Wait(); close(ch) }()
	select {
	case <-ch:
		t.Fatal("writer should not acquire while readers hold RLock")
	case <-time.After(30 * time.Millisecond):
		// expected timeout
	}

	// Release readers; writer should proceed
	close(releaseR1)
	close(releaseR2)
	<-writeDone
}

func TestOpen_UnknownFileType(t *testing.T) {
	m := NewManager(time.Second, time.Second, nil, time.Now)
	_, err := m.Open(context.Background(), "clients.csv", schema.FileType("invoices"), nil)
	require.Error(t, err)
}

func TestOpen_GateBusy(t *testing.T) {
	gate := &fakeGate{acquireErr: context.DeadlineExceeded}
	m := NewManager(time.Second, time.Second, gate, time.Now)

	_, err := m.Open(context.Background(), "clients.csv", schema.FileClients, nil)
	require.Error(t, err)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(0), gate.releases.Load())
}

type denyValidator struct{}

func (denyValidator) ValidateOpenPath(string) (string, error) { return "", fmt.Errorf("denied") }

func TestOpen_PathValidatorDenied_ReleasesGate(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(time.Second, time.Second, gate, time.Now)
	m.SetPathValidator(denyValidator{})

	_, err := m.Open(context.Background(), "clients.csv", schema.FileClients, nil)
	require.Error(t, err)
	require.Equal(t, int64(1), gate.acquires.Load())
	require.Equal(t, int64(1), gate.releases.Load())
}
