package metrics

// ReconstructTypedText replays a keystroke log into the text the client
// actually produced. A backspace press removes the last character of the
// running buffer; any other press appends what was typed. Key releases and
// multi-rune payloads are ignored - one press, one character.
//
// This is the text the server trusts for canonical metrics, regardless of
// what the client claims it typed.
func ReconstructTypedText(keystrokes []Keystroke) string {
	var buf []rune
	for _, k := range keystrokes {
		if k.EventType != EventKeyDown {
			continue
		}
		if k.IsBackspace {
			if len(buf) > 0 {
				buf = buf[:len(buf)-1]
			}
			continue
		}
		typed := []rune(k.CharTyped)
		if len(typed) == 1 {
			buf = append(buf, typed[0])
		}
	}
	return string(buf)
}
