/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Forward/reverse endpoint specs (section 6: "Forward specs") and the
 * local;remote / device;host pairs that host:forward: and
 * reverse:forward: carry.
 */

package handlers

import (
	"fmt"
	"strconv"
	"strings"
)

// ForwardKind identifies one of the six endpoint address families a
// forward or reverse spec can name
type ForwardKind int

const (
	KindTCP ForwardKind = iota
	KindLocalAbstract
	KindLocalReserved
	KindLocalFilesystem
	KindDev
	KindJDWP
)

// ForwardSpec is one endpoint of a forward or reverse pair: either a
// TCP port, a JDWP pid, or a named Unix-domain path of some flavor
type ForwardSpec struct {
	Kind ForwardKind
	Port uint16 // KindTCP
	PID  uint32 // KindJDWP
	Name string // KindLocalAbstract/LocalReserved/LocalFilesystem/Dev
}

// ParseForwardSpec parses one "tag:value" endpoint spec, e.g.
// "tcp:1234" or "localabstract:some-socket"
func ParseForwardSpec(s string) (ForwardSpec, error) {
	tag, value, ok := strings.Cut(s, ":")
	if !ok {
		return ForwardSpec{}, fmt.Errorf("invalid forward spec %q: missing ':'", s)
	}

	switch tag {
	case "tcp":
		port, err := strconv.ParseUint(value, 10, 16)
		if err != nil {
			return ForwardSpec{}, fmt.Errorf("invalid tcp port %q: %w", value, err)
		}
		return ForwardSpec{Kind: KindTCP, Port: uint16(port)}, nil
	case "localabstract":
		return ForwardSpec{Kind: KindLocalAbstract, Name: value}, nil
	case "localreserved":
		return ForwardSpec{Kind: KindLocalReserved, Name: value}, nil
	case "localfilesystem":
		return ForwardSpec{Kind: KindLocalFilesystem, Name: value}, nil
	case "dev":
		return ForwardSpec{Kind: KindDev, Name: value}, nil
	case "jdwp":
		pid, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return ForwardSpec{}, fmt.Errorf("invalid jdwp pid %q: %w", value, err)
		}
		return ForwardSpec{Kind: KindJDWP, PID: uint32(pid)}, nil
	default:
		return ForwardSpec{}, fmt.Errorf("unknown forward spec tag %q", tag)
	}
}

// String renders the spec back in "tag:value" form
func (f ForwardSpec) String() string {
	switch f.Kind {
	case KindTCP:
		return fmt.Sprintf("tcp:%d", f.Port)
	case KindLocalAbstract:
		return "localabstract:" + f.Name
	case KindLocalReserved:
		return "localreserved:" + f.Name
	case KindLocalFilesystem:
		return "localfilesystem:" + f.Name
	case KindDev:
		return "dev:" + f.Name
	case KindJDWP:
		return fmt.Sprintf("jdwp:%d", f.PID)
	default:
		return ""
	}
}

// ForwardInfo is a parsed "local;remote" pair carried by
// host:forward:[norebind:]<local>;<remote>
type ForwardInfo struct {
	Local  ForwardSpec
	Remote ForwardSpec
}

// ParseForwardInfo parses "local;remote"
func ParseForwardInfo(s string) (ForwardInfo, error) {
	local, remote, ok := strings.Cut(s, ";")
	if !ok {
		return ForwardInfo{}, fmt.Errorf("invalid forward format %q: expected local;remote", s)
	}
	l, err := ParseForwardSpec(local)
	if err != nil {
		return ForwardInfo{}, err
	}
	r, err := ParseForwardSpec(remote)
	if err != nil {
		return ForwardInfo{}, err
	}
	return ForwardInfo{Local: l, Remote: r}, nil
}

func (f ForwardInfo) String() string {
	return f.Local.String() + ";" + f.Remote.String()
}

// ReverseInfo is a parsed "device;host" pair carried by
// reverse:forward:<device>;<host>
type ReverseInfo struct {
	Device ForwardSpec
	Host   ForwardSpec
}

// ParseReverseInfo parses "device;host"
func ParseReverseInfo(s string) (ReverseInfo, error) {
	device, host, ok := strings.Cut(s, ";")
	if !ok {
		return ReverseInfo{}, fmt.Errorf("invalid reverse format %q: expected device;host", s)
	}
	d, err := ParseForwardSpec(device)
	if err != nil {
		return ReverseInfo{}, err
	}
	h, err := ParseForwardSpec(host)
	if err != nil {
		return ReverseInfo{}, err
	}
	return ReverseInfo{Device: d, Host: h}, nil
}

func (r ReverseInfo) String() string {
	return r.Device.String() + ";" + r.Host.String()
}
