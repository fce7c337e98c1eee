package coordinator

import (
	"encoding/json"

	"github.com/matzehuels/snackager/pkg/cache"
	"github.com/matzehuels/snackager/pkg/deps"
)

// Response is the answer to a bundle request. Pending responses ask the
// caller to poll the same request again.
type Response struct {
	Name         string
	Version      string
	Pending      bool
	Hash         string             // Pinned handle
	Handle       string             // Handle in the requested format
	Dependencies deps.DependencySet // Dependencies the host must provide
}

func pendingResponse(res *deps.Resolution) *Response {
	return &Response{Name: res.QualifiedName(), Version: res.Version, Pending: true}
}

func readyResponse(res *deps.Resolution, keyer cache.Keyer, versioned bool) *Response {
	handle := res.Handle
	if versioned {
		handle = keyer.Prefix() + "/" + handle
	}
	dependencies := res.Dependencies
	if dependencies == nil {
		dependencies = deps.DependencySet{}
	}
	return &Response{
		Name:         res.QualifiedName(),
		Version:      res.Version,
		Hash:         res.Handle,
		Handle:       handle,
		Dependencies: dependencies,
	}
}

type pendingJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Pending bool   `json:"pending"`
}

type readyJSON struct {
	Name         string             `json:"name"`
	Hash         string             `json:"hash"`
	Handle       string             `json:"handle"`
	Version      string             `json:"version"`
	Dependencies deps.DependencySet `json:"dependencies"`
}

// MarshalJSON renders {name, version, pending} or
// {name, hash, handle, version, dependencies}.
func (r *Response) MarshalJSON() ([]byte, error) {
	if r.Pending {
		return json.Marshal(pendingJSON{Name: r.Name, Version: r.Version, Pending: true})
	}
	return json.Marshal(readyJSON{
		Name:         r.Name,
		Hash:         r.Hash,
		Handle:       r.Handle,
		Version:      r.Version,
		Dependencies: r.Dependencies,
	})
}
