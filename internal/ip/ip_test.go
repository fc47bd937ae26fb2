package ip

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustNet(t *testing.T, s string) *net.IPNet {
	t.Helper()
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatal(err)
	}
	return &net.IPNet{IP: ip, Mask: n.Mask}
}

func TestMatch(t *testing.T) {
	addrs := []net.Addr{
		mustNet(t, "127.0.0.1/8"),
		mustNet(t, "fe80::1/64"),
		mustNet(t, "10.1.2.3/16"),
		mustNet(t, "192.168.6.20/24"),
	}

	_, artnet, _ := net.ParseCIDR("192.168.6.0/24")
	assert.Equal(t, "192.168.6.20", match(addrs, artnet).String())
	assert.Equal(t, "10.1.2.3", match(addrs, nil).String())

	_, none, _ := net.ParseCIDR("172.16.0.0/12")
	assert.Nil(t, match(addrs, none))
}

func TestFindBadRange(t *testing.T) {
	_, err := Find("not-a-cidr")
	assert.Error(t, err)
}
