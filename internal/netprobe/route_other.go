//go:build !linux

package netprobe

// TODO: read the default route from the routing socket on BSD and darwin.
func defaultRoutes() (map[string]bool, error) {
	return nil, errNoRouteTable
}
