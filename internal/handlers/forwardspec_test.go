/* adbr-server - ADB protocol host daemon with USB transport and TCP client front-end
 *
 * Forward/reverse spec parse/print round trip
 */

package handlers

import "testing"

func TestParseForwardSpecRoundTrip(t *testing.T) {
	tests := []string{
		"tcp:1234",
		"localabstract:some-socket",
		"localreserved:reserved-name",
		"localfilesystem:/tmp/sock",
		"dev:/dev/foo",
		"jdwp:4321",
	}

	for _, s := range tests {
		spec, err := ParseForwardSpec(s)
		if err != nil {
			t.Errorf("ParseForwardSpec(%q): %s", s, err)
			continue
		}
		if got := spec.String(); got != s {
			t.Errorf("ParseForwardSpec(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestParseForwardSpecErrors(t *testing.T) {
	tests := []string{
		"no-colon-here",
		"tcp:not-a-number",
		"jdwp:not-a-pid",
		"unknowntag:value",
	}

	for _, s := range tests {
		if _, err := ParseForwardSpec(s); err == nil {
			t.Errorf("ParseForwardSpec(%q) succeeded, want error", s)
		}
	}
}

func TestParseForwardInfoRoundTrip(t *testing.T) {
	s := "tcp:8080;localabstract:remote-sock"
	info, err := ParseForwardInfo(s)
	if err != nil {
		t.Fatalf("ParseForwardInfo(%q): %s", s, err)
	}
	if info.Local.Kind != KindTCP || info.Local.Port != 8080 {
		t.Errorf("Local = %+v", info.Local)
	}
	if info.Remote.Kind != KindLocalAbstract || info.Remote.Name != "remote-sock" {
		t.Errorf("Remote = %+v", info.Remote)
	}
	if got := info.String(); got != s {
		t.Errorf("ForwardInfo.String() = %q, want %q", got, s)
	}
}

func TestParseForwardInfoMissingSeparator(t *testing.T) {
	if _, err := ParseForwardInfo("tcp:8080"); err == nil {
		t.Error("ParseForwardInfo without ';' should fail")
	}
}

func TestParseReverseInfoRoundTrip(t *testing.T) {
	s := "tcp:9000;tcp:9001"
	info, err := ParseReverseInfo(s)
	if err != nil {
		t.Fatalf("ParseReverseInfo(%q): %s", s, err)
	}
	if info.Device.Port != 9000 || info.Host.Port != 9001 {
		t.Errorf("ReverseInfo = %+v", info)
	}
	if got := info.String(); got != s {
		t.Errorf("ReverseInfo.String() = %q, want %q", got, s)
	}
}
