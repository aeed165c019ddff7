// Package factory is a registry of named StorageDriver constructors, so a
// Repository can be pointed at "filesystem", "inmemory" or any externally
// registered backend by name and a parameter map, without importing every
// driver package unconditionally. Adapted from the teacher's
// registry/storage/driver/factory package.
package factory

import (
	"context"
	"fmt"

	storagedriver "github.com/spkfs/spfs/pkg/storage/driver"
)

var driverFactories = make(map[string]StorageDriverFactory)

// StorageDriverFactory constructs a StorageDriver from a parameter map.
// Driver packages call Register from an init() func to make themselves
// available by name.
type StorageDriverFactory interface {
	Create(parameters map[string]interface{}) (storagedriver.StorageDriver, error)
}

// Register makes a driver factory available under name. Panics if name is
// already registered or factory is nil - this only ever happens at package
// init time, so a panic surfaces the programming error immediately.
func Register(name string, f StorageDriverFactory) {
	if f == nil {
		panic("factory: nil StorageDriverFactory")
	}
	if _, exists := driverFactories[name]; exists {
		panic(fmt.Sprintf("factory: %q already registered", name))
	}
	driverFactories[name] = f
}

// Create constructs a new StorageDriver registered under name and verifies
// it can read, write and delete.
func Create(ctx context.Context, name string, parameters map[string]interface{}) (storagedriver.StorageDriver, error) {
	f, ok := driverFactories[name]
	if !ok {
		return nil, UnregisteredDriverError{Name: name}
	}
	d, err := f.Create(parameters)
	if err != nil {
		return nil, err
	}
	if err := verify(ctx, d); err != nil {
		return nil, fmt.Errorf("factory: %q failed read/write/delete verification: %w", name, err)
	}
	return d, nil
}

func verify(ctx context.Context, d storagedriver.StorageDriver) error {
	const probe = "/.spfs-driver-probe"
	if err := d.PutContent(ctx, probe, []byte("ok")); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	got, err := d.GetContent(ctx, probe)
	if err != nil {
		return fmt.Errorf("read probe: %w", err)
	}
	if string(got) != "ok" {
		return fmt.Errorf("read probe: content mismatch")
	}
	return d.Delete(ctx, probe)
}

// UnregisteredDriverError records an attempt to construct a driver that no
// package has Register'd.
type UnregisteredDriverError struct {
	Name string
}

func (e UnregisteredDriverError) Error() string {
	return fmt.Sprintf("factory: no storage driver registered under %q", e.Name)
}
