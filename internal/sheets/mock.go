package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/alco/internal/common"
	"github.com/Veraticus/alco/internal/model"
	"github.com/Veraticus/alco/internal/reconcile"
	"github.com/Veraticus/alco/internal/service"
)

var _ service.VersionedStore = (*MockStore)(nil)

// MockStore is an in-memory report store for testing.
type MockStore struct {
	// Hooks run before the matching operation; a non-nil error aborts it.
	OpenFunc  func(partition string) error
	ReadFunc  func(partition string) error
	WriteFunc func(partition string) error
	tables    map[string]*mockTable
	Calls     []MockCall
	mu        sync.Mutex
}

type mockTable struct {
	header []string
	rows   [][]string
}

// MockCall records one store operation.
type MockCall struct {
	Op        string
	Partition string
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		tables: make(map[string]*mockTable),
		Calls:  make([]MockCall, 0),
	}
}

// Seed sets the raw contents of a partition, creating it if needed.
func (m *MockStore) Seed(partition string, header []string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[partition] = &mockTable{header: cloneCells(header), rows: cloneGrid(rows)}
}

// Table returns a copy of the stored header and rows.
func (m *MockStore) Table(partition string) ([]string, [][]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[partition]
	if !ok {
		return nil, nil, false
	}
	return cloneCells(t.header), cloneGrid(t.rows), true
}

// CallCount returns how many times op was called.
func (m *MockStore) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// OpenOrCreateTable implements service.RecordStore.
func (m *MockStore) OpenOrCreateTable(ctx context.Context, partition string) (service.TableHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("open", partition)

	if err := ctx.Err(); err != nil {
		return service.TableHandle{}, err
	}
	if m.OpenFunc != nil {
		if err := m.OpenFunc(partition); err != nil {
			return service.TableHandle{}, err
		}
	}

	t, ok := m.tables[partition]
	if !ok {
		t = &mockTable{header: model.Header()}
		m.tables[partition] = t
	}
	return service.TableHandle{Partition: partition, Header: cloneCells(t.header)}, nil
}

// ReadAll implements service.RecordStore.
func (m *MockStore) ReadAll(ctx context.Context, handle service.TableHandle) ([]service.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("read", handle.Partition)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ReadFunc != nil {
		if err := m.ReadFunc(handle.Partition); err != nil {
			return nil, err
		}
	}

	t, ok := m.tables[handle.Partition]
	if !ok {
		return nil, fmt.Errorf("%w: partition %q", common.ErrNotFound, handle.Partition)
	}
	return service.ToRows(t.header, t.rows), nil
}

// ReplaceAll implements service.RecordStore.
func (m *MockStore) ReplaceAll(ctx context.Context, handle service.TableHandle, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("replace", handle.Partition)
	return m.replace(ctx, handle.Partition, header, rows)
}

// AppendRow implements service.RecordStore.
func (m *MockStore) AppendRow(ctx context.Context, handle service.TableHandle, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("append", handle.Partition)
	return m.append(ctx, handle.Partition, row)
}

// ReplaceAllIf implements service.VersionedStore.
func (m *MockStore) ReplaceAllIf(ctx context.Context, handle service.TableHandle, expected string, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("replace", handle.Partition)

	if err := m.checkVersion(handle.Partition, expected); err != nil {
		return err
	}
	return m.replace(ctx, handle.Partition, header, rows)
}

// AppendRowIf implements service.VersionedStore.
func (m *MockStore) AppendRowIf(ctx context.Context, handle service.TableHandle, expected string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("append", handle.Partition)

	if err := m.checkVersion(handle.Partition, expected); err != nil {
		return err
	}
	return m.append(ctx, handle.Partition, row)
}

func (m *MockStore) checkVersion(partition, expected string) error {
	t, ok := m.tables[partition]
	if !ok {
		return fmt.Errorf("%w: partition %q", common.ErrNotFound, partition)
	}
	current := reconcile.Fingerprint(t.header, service.ToRows(t.header, t.rows))
	if current != expected {
		return fmt.Errorf("%w: partition %q changed since it was read", common.ErrConflict, partition)
	}
	return nil
}

func (m *MockStore) replace(ctx context.Context, partition string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.WriteFunc != nil {
		if err := m.WriteFunc(partition); err != nil {
			return err
		}
	}
	m.tables[partition] = &mockTable{header: cloneCells(header), rows: cloneGrid(rows)}
	return nil
}

func (m *MockStore) append(ctx context.Context, partition string, row []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.WriteFunc != nil {
		if err := m.WriteFunc(partition); err != nil {
			return err
		}
	}
	t, ok := m.tables[partition]
	if !ok {
		return fmt.Errorf("%w: partition %q", common.ErrNotFound, partition)
	}
	t.rows = append(t.rows, cloneCells(row))
	return nil
}

func (m *MockStore) record(op, partition string) {
	m.Calls = append(m.Calls, MockCall{Op: op, Partition: partition})
}

func cloneCells(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneGrid(in [][]string) [][]string {
	out := make([][]string, len(in))
	for i, row := range in {
		out[i] = cloneCells(row)
	}
	return out
}
