package netprobe

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

var errNoRouteTable = errors.New("netprobe: no route table on this platform")

const rtfUp = 0x1

// parseRouteTable reads the /proc/net/route format and returns the
// interfaces holding a default route. The split default (0.0.0.0/1 plus
// 128.0.0.0/1) many VPN clients install counts as a default too.
func parseRouteTable(r io.Reader) (map[string]bool, error) {
	out := make(map[string]bool)
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 8 {
			continue
		}
		iface, dest, flags, mask := fields[0], fields[1], fields[3], fields[7]
		f, err := strconv.ParseUint(flags, 16, 32)
		if err != nil || f&rtfUp == 0 {
			continue
		}
		switch {
		case dest == "00000000" && mask == "00000000":
			out[iface] = true
		case (dest == "00000000" || dest == "00000080") && mask == "00000080":
			out[iface] = true
		}
	}
	return out, sc.Err()
}
