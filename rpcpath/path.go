// Package rpcpath implements the path grammar that encodes an RPC target
// inside a MoQ broadcast path: {client_id}/{package}.{service}/{method}.
//
// Parsing always works from the right: the method is the last '/'-segment,
// the service+package is the segment before it (must contain a '.', split
// at its last '.'), and everything remaining is the client id — which may
// itself contain '/' (region/fleet prefixes).
package rpcpath

import (
	"fmt"
	"strings"
)

// GrpcPath identifies an RPC method: {package}.{service}/{method}.
type GrpcPath struct {
	Package string
	Service string
	Method  string
}

// ParseGrpcPath parses "{package}.{service}/{method}", tolerating one
// leading '/'. The package may itself contain dots (nested packages); the
// split is taken at the *last* '.' of the service segment.
func ParseGrpcPath(path string) (GrpcPath, error) {
	path = strings.TrimPrefix(path, "/")

	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		return GrpcPath{}, fmt.Errorf("rpcpath: grpc path must contain '/': %q", path)
	}
	servicePath, method := path[:slash], path[slash+1:]

	dot := strings.LastIndex(servicePath, ".")
	if dot < 0 {
		return GrpcPath{}, fmt.Errorf("rpcpath: service part must contain package.service: %q", servicePath)
	}
	pkg, svc := servicePath[:dot], servicePath[dot+1:]

	if pkg == "" || svc == "" || method == "" {
		return GrpcPath{}, fmt.Errorf("rpcpath: package, service, and method must all be non-empty: %q", path)
	}

	return GrpcPath{Package: pkg, Service: svc, Method: method}, nil
}

// FullService renders "{package}.{service}".
func (p GrpcPath) FullService() string {
	return p.Package + "." + p.Service
}

// FullPath renders "{package}.{service}/{method}".
func (p GrpcPath) FullPath() string {
	return p.FullService() + "/" + p.Method
}

func (p GrpcPath) String() string { return p.FullPath() }

// RpcRequestPath identifies a client's call: {client_id}/{grpc_path}.
type RpcRequestPath struct {
	ClientID string
	Grpc     GrpcPath
}

// ParseRpcRequestPath parses "{client_id}/{package}.{service}/{method}",
// tolerating one leading '/'. Splitting is done from the right: the last
// segment is the method, the one before it is the service part (must
// contain '.'), and everything before that — rejoined with '/' — is the
// client id, which is opaque to this layer and may legitimately contain
// slashes (e.g. "region/fleet/drone-1").
func ParseRpcRequestPath(path string) (RpcRequestPath, error) {
	path = strings.TrimPrefix(path, "/")

	parts := strings.Split(path, "/")
	if len(parts) < 3 {
		return RpcRequestPath{}, fmt.Errorf("rpcpath: path must include client_id, package.service and method: %q", path)
	}

	method := parts[len(parts)-1]
	servicePart := parts[len(parts)-2]
	if !strings.Contains(servicePart, ".") {
		return RpcRequestPath{}, fmt.Errorf("rpcpath: service part must contain package.service: %q", servicePart)
	}

	clientID := strings.Join(parts[:len(parts)-2], "/")

	grpc, err := ParseGrpcPath(servicePart + "/" + method)
	if err != nil {
		return RpcRequestPath{}, err
	}

	return RpcRequestPath{ClientID: clientID, Grpc: grpc}, nil
}

// FullPath renders "{client_id}/{package}.{service}/{method}".
func (p RpcRequestPath) FullPath() string {
	return p.ClientID + "/" + p.Grpc.FullPath()
}

func (p RpcRequestPath) String() string { return p.FullPath() }
