package netprobe

import "os"

const procRoute = "/proc/net/route"

func defaultRoutes() (map[string]bool, error) {
	f, err := os.Open(procRoute)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseRouteTable(f)
}
