// Package registry defines the service discovery interface and data types
// used to locate a gRPC backend for a given gRPC path.
//
// A router's Connector doesn't hardcode the downstream gRPC server's
// IP:port; instead backend processes register themselves here (etcd), and
// grpcbridge queries the registry by gRPC path to get the instance list to
// balance across.
package registry

// ServiceInstance represents a single running instance of a gRPC backend.
type ServiceInstance struct {
	Addr    string // Network address, e.g., "127.0.0.1:8080"
	Weight  int    // Weight for load balancing (higher = more traffic)
	Version string // Backend version, for canary deployments
}

// Registry is the interface for service registration and discovery, keyed
// by gRPC path (e.g. "drone.EchoService/Echo") rather than a bare service
// name, since rpcmoq routes per-method rather than per-service.
// Implementations include EtcdRegistry (production) and MockRegistry
// (testing).
type Registry interface {
	// Register adds a backend instance to the registry with a TTL lease.
	// The instance is automatically removed if KeepAlive stops (e.g. the
	// backend crashes).
	Register(grpcPath string, instance ServiceInstance, ttl int64) error

	// Deregister removes a backend instance from the registry. Called
	// during graceful shutdown before closing the listener.
	Deregister(grpcPath string, addr string) error

	// Discover returns all currently registered instances for a gRPC
	// path. grpcbridge calls this to get the instance list to balance
	// across.
	Discover(grpcPath string) ([]ServiceInstance, error)

	// Watch returns a channel that emits updated instance lists whenever
	// a gRPC path's instances change (new instances, removals, etc.).
	// This enables real-time service discovery without polling.
	Watch(grpcPath string) <-chan []ServiceInstance
}
