package console

import (
	"strings"
	"testing"

	"github.com/Redstone-OS/forge/defs"
)

type fakeSink struct {
	buf strings.Builder
}

func (f *fakeSink) WriteByte(b byte) defs.Err_t { f.buf.WriteByte(b); return 0 }
func (f *fakeSink) WriteString(s string) (int, defs.Err_t) {
	f.buf.WriteString(s)
	return len(s), 0
}

func TestPrintfWritesFormattedStringToDevice(t *testing.T) {
	fs := &fakeSink{}
	SetDevice(fs)
	defer SetDevice(nil)
	Printf("fault at %#x\n", 0x1000)
	if fs.buf.String() != "fault at 0x1000\n" {
		t.Fatalf("buf = %q", fs.buf.String())
	}
}

func TestPrintDropsSilentlyWithoutDevice(t *testing.T) {
	SetDevice(nil)
	Print("should not panic")
}
