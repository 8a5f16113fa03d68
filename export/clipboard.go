package export

import (
	"encoding/base64"
	"fmt"
	"io"
)

// maxClipboardBytes bounds the OSC 52 payload; many terminals reject more.
const maxClipboardBytes = 74994

// WriteClipboard copies text to the system clipboard via the OSC 52 terminal
// escape sequence.
func WriteClipboard(w io.Writer, text string) error {
	if len(text) > maxClipboardBytes {
		return fmt.Errorf("export: clipboard payload too large (%d bytes)", len(text))
	}
	seq := "\x1b]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
	if _, err := io.WriteString(w, seq); err != nil {
		return fmt.Errorf("export: clipboard write: %w", err)
	}
	return nil
}
