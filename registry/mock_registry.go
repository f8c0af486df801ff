package registry

import "sync"

// MockRegistry is an in-memory Registry for tests that need real
// Register/Discover/Deregister behavior without a live etcd cluster. It
// ignores the TTL/lease machinery EtcdRegistry relies on — entries live
// until explicitly deregistered.
type MockRegistry struct {
	mu        sync.Mutex
	instances map[string][]ServiceInstance
}

// NewMockRegistry returns an empty registry.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{instances: make(map[string][]ServiceInstance)}
}

// Register appends instance under grpcPath. ttl is accepted to satisfy the
// Registry interface but otherwise unused.
func (m *MockRegistry) Register(grpcPath string, instance ServiceInstance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[grpcPath] = append(m.instances[grpcPath], instance)
	return nil
}

// Deregister removes the instance at addr from grpcPath's instance list.
func (m *MockRegistry) Deregister(grpcPath string, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[grpcPath]
	for i, inst := range insts {
		if inst.Addr == addr {
			m.instances[grpcPath] = append(insts[:i], insts[i+1:]...)
			break
		}
	}
	return nil
}

// Discover returns a copy of grpcPath's current instance list.
func (m *MockRegistry) Discover(grpcPath string) ([]ServiceInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ServiceInstance(nil), m.instances[grpcPath]...), nil
}

// Watch is unimplemented: nothing in this module drives Registry.Watch
// against a MockRegistry yet, so it returns a channel that never fires
// rather than faking change notifications no caller observes.
func (m *MockRegistry) Watch(grpcPath string) <-chan []ServiceInstance {
	return nil
}
