package camera

import(
	"fmt"
	"sort"
	"sync"
)

// A Driver builds a System. `unmarshal` fills in the driver's own config
// struct from whatever configuration the application loaded.
type Driver func(unmarshal func(interface{}) error) (System, error)

var(
	driversMu sync.Mutex
	drivers = map[string]Driver{}
)

// Register makes a driver available by name; drivers call it from init().
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("camera: Register called twice for driver " + name)
	}
	drivers[name] = d
}

func Drivers() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	ret := []string{}
	for name := range drivers {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// NewSystem starts the named driver.
func NewSystem(name string, unmarshal func(interface{}) error) (System, error) {
	driversMu.Lock()
	d, exists := drivers[name]
	driversMu.Unlock()

	if !exists {
		return nil, fmt.Errorf("camera driver '%s' not known (have %v)", name, Drivers())
	}
	return d(unmarshal)
}
